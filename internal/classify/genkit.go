// Package classify implements the document classifier on top of Genkit
// structured generation.
package classify

import (
	"context"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
	"github.com/atomicwork-labs/kbase/internal/log"
)

const classifyPrompt = `You are labeling a knowledge document for a sales-outreach
assistant selling Atomicwork, an agentic IT service management platform.

Classify the document text below:
- tiers: which support tiers it is most relevant to, from exactly
  ["L1", "L2", "L3", "Multi", "Platform"]. Use "Platform" for product-wide
  narrative, "Multi" only when several specific tiers apply equally.
- audience: which buyer personas it speaks to, from exactly
  ["CIO", "CTO", "CISO", "VP_IT_Ops", "ServiceDeskManager", "SRE_Manager",
  "ChangeManager", "HRIT", "Broad_Executive", "General"].
- tags: 3-6 short lowercase topic tags.
- summary: 1-2 sentences a salesperson could skim.

Document text:
%s`

// Classifier labels document text with tiers, audience, tags, and a summary
// using an LLM. It satisfies knowledge.Classifier.
//
// Output is requested as structured JSON matching knowledge.Classification;
// label validation and defaulting happen in the store, not here.
type Classifier struct {
	g      *genkit.Genkit
	model  string
	logger log.Logger
}

// New creates a Classifier using the given model name, e.g.
// "googleai/gemini-2.5-flash". A nil logger falls back to a no-op logger.
func New(g *genkit.Genkit, model string, logger log.Logger) *Classifier {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Classifier{g: g, model: model, logger: logger}
}

// Classify implements knowledge.Classifier.
func (c *Classifier) Classify(ctx context.Context, text string) (knowledge.Classification, error) {
	response, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.model),
		ai.WithPrompt(fmt.Sprintf(classifyPrompt, text)),
		ai.WithOutputType(knowledge.Classification{}),
	)
	if err != nil {
		return knowledge.Classification{}, fmt.Errorf("classification call: %w", err)
	}

	var cls knowledge.Classification
	if err := response.Output(&cls); err != nil {
		return knowledge.Classification{}, fmt.Errorf("decoding classification output: %w", err)
	}

	c.logger.Debug("document classified",
		"tiers", cls.Tiers,
		"audience", cls.Audience,
		"tags", len(cls.Tags))
	return cls, nil
}
