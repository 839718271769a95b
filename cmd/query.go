package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
)

var (
	queryPersona string
	queryTiers   []string
	queryMax     int
	queryMode    string
)

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Retrieve the most relevant documents for a query",
	Long: `Query the knowledge base. The default "vector" mode embeds the query
and searches chunk embeddings; "keyword" mode uses the lexical ranker and
needs no AI credentials.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVar(&queryPersona, "persona", "", "prospect role, e.g. \"VP of IT Operations\"")
	queryCmd.Flags().StringSliceVar(&queryTiers, "tier", nil, "restrict results to these tiers")
	queryCmd.Flags().IntVar(&queryMax, "max", knowledge.DefaultMaxDocs, "maximum documents to return")
	queryCmd.Flags().StringVar(&queryMode, "mode", "vector", "retrieval mode: vector or keyword")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	query := strings.Join(args, " ")
	tiers := toTiers(queryTiers)

	var scored []knowledge.ScoredDocument
	switch queryMode {
	case "keyword":
		a, err := newLiteApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		scored, err = a.ranker.Query(ctx, query, queryPersona, tiers, queryMax)
		if err != nil {
			return err
		}
	case "vector":
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()
		result, err := a.engine.Query(ctx, query, queryPersona, tiers, queryMax)
		if err != nil {
			return err
		}
		scored = result.MatchedDocs
	default:
		return fmt.Errorf("unknown mode %q (want vector or keyword)", queryMode)
	}

	printScored(os.Stdout, scored)
	return nil
}

// printScored renders ranked results, one document per line with its score
// and tier, followed by an indented summary when one exists.
func printScored(w io.Writer, scored []knowledge.ScoredDocument) {
	if len(scored) == 0 {
		fmt.Fprintln(w, "no matching documents")
		return
	}
	for _, s := range scored {
		fmt.Fprintf(w, "%.3f [%s] %s\n", s.Score, s.Tier, s.Title)
		if s.Summary != "" {
			fmt.Fprintf(w, "      %s\n", s.Summary)
		}
	}
}
