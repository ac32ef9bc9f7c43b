// Package main provides the CLI entry point for gradflow.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/blackms/gradflow/cmd/gradflow/commands"
)

var (
	version = "0.1.0"
)

func main() {
	// Interrupts cancel the command context; a running training session
	// winds down at the next epoch boundary.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "gradflow",
	Short: "Gradflow - training loop orchestration toolkit",
	Long: `Gradflow is a training loop orchestration toolkit.

It provides:
  - An event-driven training loop with a composable callback roster
  - Built-in callbacks for regularization, weight averaging, and early stopping
  - Batch sample mining for metric learning (pairs and triplets)
  - Training history persistence with SQLite and PostgreSQL backends`,
	Version: version,
}

func init() {
	rootCmd.AddCommand(commands.TrainCmd)
	rootCmd.AddCommand(commands.MineCmd)
	rootCmd.AddCommand(commands.HistoryCmd)
}
