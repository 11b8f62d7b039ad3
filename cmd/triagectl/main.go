package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "triagectl",
		Short:        "Offline tools for the triage pipeline",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("knowledge-dir", "", "Directory containing data/*.yaml (embedded tables when empty)")

	rootCmd.AddCommand(diagnoseCmd())
	rootCmd.AddCommand(urgencyCmd())
	rootCmd.AddCommand(knowledgeCmd())
	rootCmd.AddCommand(eventsCmd())
	return rootCmd
}
