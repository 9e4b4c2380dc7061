// Package main provides the operator command line of the job triage pipeline.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "time/tzdata"
)

const defaultConfigPath = "configs/triage-cli/config.yaml"

// rootOptions carries the persistent flags shared by every command
type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "triage-cli",
		Short:         "Train, evaluate and query the job triage model",
		Long:          "triage-cli imports and labels job postings, trains the classifier and prints the ranked shortlist of new postings.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	configPath := os.Getenv("TRIAGE_CLI_CONFIG_PATH")
	if configPath == "" {
		configPath = defaultConfigPath
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", configPath, "Path to configuration file")

	cmd.AddCommand(
		newTrainCmd(opts),
		newPredictCmd(opts),
		newReportCmd(opts),
		newImportCmd(opts),
		newLabelCmd(opts),
	)
	return cmd
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
