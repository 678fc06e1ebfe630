package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/orchestrator"
)

func runCmd() *cobra.Command {
	var (
		model  string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "run [request]",
		Short: "Run one request in the terminal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Log.Format == "json" {
				cfg.Log.Format = "console"
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st := newStack(cmd.Context(), cfg, logger)
			defer func() { _ = st.Close() }()

			parts := st.parts(uuid.NewString())
			if parts.Release != nil {
				defer func() { _ = parts.Release(context.Background()) }()
			}
			runner := orchestrator.NewRunner(parts.Agents, newPrinter(cmd.OutOrStdout(), outDir), st.runnerConfig())

			// The first interrupt stops the task cooperatively.
			sigCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-sigCtx.Done():
					runner.Stop()
				case <-done:
				}
			}()

			return runner.Run(context.Background(), orchestrator.Submission{
				Text:     strings.Join(args, " "),
				ModelTag: models.FindModel(model).Tag,
			})
		},
	}
	cmd.Flags().StringVar(&model, "model", models.Models[0].ID, "model id (lite or max)")
	cmd.Flags().StringVar(&outDir, "out", "", "directory to save file artifacts into")
	return cmd
}
