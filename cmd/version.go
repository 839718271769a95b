package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atomicwork-labs/kbase/internal/config"
)

// Version information (injected at build time via ldflags)
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version and configuration",
	RunE:  runVersion,
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	fmt.Printf("kbase %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("Configuration:")
	fmt.Printf("  Embedder model:   %s\n", cfg.EmbedderModel)
	fmt.Printf("  Classifier model: %s\n", cfg.ClassifierModel)
	fmt.Printf("  Chunk size:       %d\n", cfg.ChunkSize)
	fmt.Printf("  Concurrency:      %d\n", cfg.IngestConcurrency)
	fmt.Printf("  Database:         %s/%s\n", cfg.PostgresHost, cfg.PostgresDBName)

	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		key = os.Getenv("GOOGLE_API_KEY")
	}
	if len(key) >= 8 {
		fmt.Printf("  Gemini API key:   %s...%s (configured)\n", key[:4], key[len(key)-4:])
	} else if key != "" {
		fmt.Println("  Gemini API key:   (configured)")
	} else {
		fmt.Println("  Gemini API key:   not set")
	}
	return nil
}
