// Package cmd contains the kbase command-line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "kbase",
	Short: "Knowledge base for the Atomicwork outreach assistant",
	Long: `kbase ingests product knowledge documents (text, PDF, audio, video),
classifies and embeds them, and answers retrieval queries that ground
outreach generation.

Run "kbase serve" to expose the HTTP API, or use the ingest/query/docs
commands directly against the same store.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
