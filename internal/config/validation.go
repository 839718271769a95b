package config

import "fmt"

// validSSLModes are the sslmode values accepted by libpq/pgx.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration and returns the first problem found.
// Errors wrap package sentinels so callers can match with errors.Is.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidHTTPAddr)
	}

	if c.PostgresHost == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}

	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidEmbedderModel)
	}
	if c.ClassifierModel == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidClassifierModel)
	}

	// Chunks below ~100 chars embed too little context; above 4000 they risk
	// truncation by the embedding model.
	if c.ChunkSize < 100 || c.ChunkSize > 4000 {
		return fmt.Errorf("%w: %d (must be 100-4000)", ErrInvalidChunkSize, c.ChunkSize)
	}
	if c.IngestConcurrency < 1 || c.IngestConcurrency > 8 {
		return fmt.Errorf("%w: %d (must be 1-8)", ErrInvalidConcurrency, c.IngestConcurrency)
	}
	if c.AIRateLimit <= 0 {
		return fmt.Errorf("%w: %v (must be positive)", ErrInvalidRateLimit, c.AIRateLimit)
	}

	return nil
}
