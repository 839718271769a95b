package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomicwork-labs/kbase/internal/ingest"
	"github.com/atomicwork-labs/kbase/internal/knowledge"
)

var (
	ingestTiers    []string
	ingestAudience []string
	ingestPersona  string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Ingest files into the knowledge base",
	Long: `Ingest up to 10 files in one batch. Supported formats: ` +
		strings.Join(ingest.SupportedExtensions(), ", ") + `.

Each file is extracted, deduplicated, classified, and embedded. One file's
failure never aborts the rest of the batch.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestTiers, "tier", nil, "explicit tier labels (overrides classification)")
	ingestCmd.Flags().StringSliceVar(&ingestAudience, "audience", nil, "explicit audience labels (overrides classification)")
	ingestCmd.Flags().StringVar(&ingestPersona, "persona", "", "persona hint recorded in document provenance")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	items := make([]ingest.Item, 0, len(args))
	for _, path := range args {
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("resolving %s: %w", path, err)
		}
		items = append(items, ingest.Item{
			Filename:         filepath.Base(abs),
			Path:             abs,
			ExplicitTiers:    toTiers(ingestTiers),
			ExplicitAudience: toAudience(ingestAudience),
			PersonaHint:      ingestPersona,
		})
	}

	summary, err := a.pipeline.Ingest(ctx, items)
	if err != nil {
		return err
	}

	for _, r := range summary.Results {
		switch {
		case r.Deduped:
			fmt.Printf("= %s (already known: %s)\n", r.Filename, r.Doc.ID)
		case r.Success:
			fmt.Printf("+ %s → %s [%s]\n", r.Filename, r.Doc.ID, r.Doc.Tier)
		default:
			fmt.Printf("! %s: %s\n", r.Filename, r.Error)
		}
	}
	fmt.Printf("\ningested %d, already present %d, failed %d\n",
		summary.Ingested, summary.Deduped, summary.Failed)

	if summary.Failed == len(summary.Results) {
		return fmt.Errorf("all %d items failed", summary.Failed)
	}
	return nil
}

func toTiers(values []string) []knowledge.Tier {
	out := make([]knowledge.Tier, len(values))
	for i, v := range values {
		out[i] = knowledge.Tier(v)
	}
	return out
}

func toAudience(values []string) []knowledge.Audience {
	out := make([]knowledge.Audience, len(values))
	for i, v := range values {
		out[i] = knowledge.Audience(v)
	}
	return out
}
