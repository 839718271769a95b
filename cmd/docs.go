package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/atomicwork-labs/kbase/internal/knowledge"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Inspect and manage stored documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all documents",
	Args:  cobra.NoArgs,
	RunE:  runDocsList,
}

var docsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one document in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

var docsDeactivateCmd = &cobra.Command{
	Use:   "deactivate ID",
	Short: "Soft-delete a document so retrieval skips it",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsDeactivate,
}

var docsReembedCmd = &cobra.Command{
	Use:   "reembed ID",
	Short: "Rebuild a document's chunks and embeddings",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsReembed,
}

func init() {
	docsCmd.AddCommand(docsListCmd, docsShowCmd, docsDeactivateCmd, docsReembedCmd)
	rootCmd.AddCommand(docsCmd)
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	a, err := newLiteApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	docs, err := a.docs.List(ctx)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		fmt.Println("no documents")
		return nil
	}
	for _, d := range docs {
		marker := " "
		if !d.IsActive {
			marker = "x"
		}
		fmt.Printf("%s %-36s [%-5s] %s\n", marker, d.ID, d.Tier, d.Title)
	}
	return nil
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newLiteApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	doc, err := a.docs.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("ID:         %s\n", doc.ID)
	fmt.Printf("Title:      %s\n", doc.Title)
	fmt.Printf("Tier:       %s (%s)\n", doc.Tier, joinTiers(doc.Tiers))
	fmt.Printf("Audience:   %s\n", joinAudience(doc.Audience))
	fmt.Printf("Tags:       %s\n", strings.Join(doc.Tags, ", "))
	fmt.Printf("Source:     %s\n", doc.SourceType)
	fmt.Printf("Active:     %t\n", doc.IsActive)
	fmt.Printf("Created:    %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated:    %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Summary:    %s\n", doc.Summary)
	fmt.Printf("\n%s\n", doc.Body)
	return nil
}

func runDocsDeactivate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newLiteApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Deactivation only touches document metadata, so the lite wiring
	// (no embedder, no classifier) is enough.
	store := knowledge.NewStore(a.docs, nil, nil, 0, a.logger)
	inactive := false
	doc, err := store.Update(ctx, args[0], knowledge.UpdateRequest{IsActive: &inactive})
	if err != nil {
		return err
	}
	fmt.Printf("deactivated %s (%s)\n", doc.ID, doc.Title)
	return nil
}

func runDocsReembed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.store.Reembed(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("re-embedded %d chunks\n", n)
	return nil
}

func joinTiers(tiers []knowledge.Tier) string {
	parts := make([]string, len(tiers))
	for i, t := range tiers {
		parts[i] = string(t)
	}
	return strings.Join(parts, ", ")
}

func joinAudience(audience []knowledge.Audience) string {
	parts := make([]string, len(audience))
	for i, a := range audience {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
