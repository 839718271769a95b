package knowledge

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates the referenced document id is unknown.
	ErrNotFound = errors.New("knowledge document not found")

	// ErrEmptyTitle indicates a create request with no title.
	ErrEmptyTitle = errors.New("document title must not be empty")

	// ErrEmptyBody indicates a create request with no body text.
	ErrEmptyBody = errors.New("document body must not be empty")
)

// Tier is a coarse relevance bucket mirroring the L1/L2/L3 support
// escalation hierarchy the product narrative is organized around.
type Tier string

// Tier labels.
const (
	TierL1       Tier = "L1"
	TierL2       Tier = "L2"
	TierL3       Tier = "L3"
	TierMulti    Tier = "Multi"
	TierPlatform Tier = "Platform"
)

// validTiers is the closed set of tier labels accepted from classifier
// output and external callers.
var validTiers = map[Tier]bool{
	TierL1:       true,
	TierL2:       true,
	TierL3:       true,
	TierMulti:    true,
	TierPlatform: true,
}

// ValidTier reports whether t is a known tier label.
func ValidTier(t Tier) bool { return validTiers[t] }

// Audience is a role-based relevance label used to prioritize documents for
// a given reader persona.
type Audience string

// Audience labels.
const (
	AudienceCIO                Audience = "CIO"
	AudienceCTO                Audience = "CTO"
	AudienceCISO               Audience = "CISO"
	AudienceVPITOps            Audience = "VP_IT_Ops"
	AudienceServiceDeskManager Audience = "ServiceDeskManager"
	AudienceSREManager         Audience = "SRE_Manager"
	AudienceChangeManager      Audience = "ChangeManager"
	AudienceHRIT               Audience = "HRIT"
	AudienceBroadExecutive     Audience = "Broad_Executive"
	AudienceGeneral            Audience = "General"
)

var validAudiences = map[Audience]bool{
	AudienceCIO:                true,
	AudienceCTO:                true,
	AudienceCISO:               true,
	AudienceVPITOps:            true,
	AudienceServiceDeskManager: true,
	AudienceSREManager:         true,
	AudienceChangeManager:      true,
	AudienceHRIT:               true,
	AudienceBroadExecutive:     true,
	AudienceGeneral:            true,
}

// ValidAudience reports whether a is a known audience label.
func ValidAudience(a Audience) bool { return validAudiences[a] }

// SourceType records how a document entered the store.
type SourceType string

// Source types.
const (
	SourceManual     SourceType = "manual"
	SourceUpload     SourceType = "upload"
	SourceNotebookLM SourceType = "notebooklm"
)

// Document is a knowledge document: a narrative text about the product,
// labeled for tier and audience relevance.
//
// Tier is a derived display field: the single element of Tiers when there is
// exactly one, otherwise the literal "Multi". The Store keeps it consistent
// on every create and update; code elsewhere treats it as read-only.
type Document struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Tier        Tier              `json:"tier"`
	Tiers       []Tier            `json:"tiers"`
	Audience    []Audience        `json:"audience"`
	Tags        []string          `json:"tags"`
	Summary     string            `json:"summary"`
	Body        string            `json:"body"`
	SourceType  SourceType        `json:"sourceType"`
	SourceMeta  map[string]string `json:"sourceMeta,omitempty"`
	ContentHash string            `json:"contentHash"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// DisplayTier derives the display tier for a tier set: the single element
// when there is exactly one, "Multi" otherwise.
func DisplayTier(tiers []Tier) Tier {
	if len(tiers) == 1 {
		return tiers[0]
	}
	return TierMulti
}

// ScoredDocument is a document with its retrieval score attached.
type ScoredDocument struct {
	Document
	Score float64 `json:"score"`
}

// Classification is the strongly-typed result of a classifier call,
// validated and defaulted at the boundary by the Store.
type Classification struct {
	Tiers    []Tier     `json:"tiers"`
	Audience []Audience `json:"audience"`
	Tags     []string   `json:"tags"`
	Summary  string     `json:"summary"`
}

// Classifier infers tier, audience, tags, and a short summary for a piece of
// document text. Implementations must tolerate truncated input; the Store
// passes at most the first 4000 characters.
//
// Classification failure is never fatal to ingestion: the Store recovers
// with fallback defaults when Classify returns an error.
type Classifier interface {
	Classify(ctx context.Context, text string) (Classification, error)
}

// DocumentRepository is the durable storage interface the Store depends on.
// Interfaces are defined by the consumer; production uses the PostgreSQL
// implementation, tests the in-memory one.
type DocumentRepository interface {
	// Insert persists a new document.
	Insert(ctx context.Context, doc Document) error

	// Update replaces an existing document. Returns ErrNotFound when the
	// id is unknown.
	Update(ctx context.Context, doc Document) error

	// Get returns the document with the given id, or ErrNotFound.
	Get(ctx context.Context, id string) (Document, error)

	// List returns all documents in insertion order.
	List(ctx context.Context) ([]Document, error)
}
