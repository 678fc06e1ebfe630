package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/agents"
	"github.com/example/nexa-agent/internal/api"
	"github.com/example/nexa-agent/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			st := newStack(cmd.Context(), cfg, logger)
			defer func() { _ = st.Close() }()

			sessions := orchestrator.NewManager(orchestrator.NewHub(), st.parts, orchestrator.ManagerConfig{
				Runner: st.runnerConfig(),
				Logger: logger.Named("sessions"),
			})
			gate := agents.NewGuestGate(cfg.Access.Enabled, cfg.Access.GuestLimit)

			// Cancelling baseCtx ends open event streams so Shutdown can drain.
			baseCtx, cancelBase := context.WithCancel(context.Background())
			defer cancelBase()
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.NewServer(sessions, gate, logger.Named("api")).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				BaseContext:       func(net.Listener) context.Context { return baseCtx },
			}

			var g run.Group

			// HTTP server.
			{
				g.Add(
					func() error {
						logger.Info("Server listening", zap.String("addr", cfg.Addr))
						if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
							return err
						}
						return nil
					},
					func(_ error) {
						ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
						defer cancel()
						cancelBase()
						if err := sessions.Close(ctx); err != nil {
							logger.Warn("Session shutdown incomplete", zap.Error(err))
						}
						if err := srv.Shutdown(ctx); err != nil {
							logger.Warn("HTTP shutdown incomplete", zap.Error(err))
						}
					},
				)
			}

			// OS signals.
			{
				g.Add(run.SignalHandler(cmd.Context(), os.Interrupt, syscall.SIGTERM))
			}

			err = g.Run()
			var sig run.SignalError
			if errors.As(err, &sig) {
				logger.Info("Termination signal received", zap.Stringer("signal", sig.Signal))
				return nil
			}
			return err
		},
	}
}
