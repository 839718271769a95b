package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atomicwork-labs/kbase/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the knowledge HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := api.NewServer(api.Config{
		Logger:   a.logger,
		Store:    a.store,
		Ranker:   a.ranker,
		Engine:   a.engine,
		Pipeline: a.pipeline,
		Pool:     a.pool,
	})
	if err != nil {
		return err
	}
	return server.ListenAndServe(ctx, a.cfg.HTTPAddr)
}
