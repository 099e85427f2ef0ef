package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/DumpySquare/flipperAgents-sub001/internal/core/reorder"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/api"
	"github.com/DumpySquare/flipperAgents-sub001/internal/shell/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// =============================================================================
// Server
// =============================================================================

// Server serves the reorder API and run history over HTTP.
type Server struct {
	config     *Config
	httpServer *http.Server
	store      store.Store
	logger     *zap.Logger
}

// NewServer creates a new server with the given config.
func NewServer(cfg *Config, s store.Store, engine *reorder.Engine, logger *zap.Logger) *Server {
	handler := api.NewHandler(s, engine, cfg.Engine.SanitizeOptions(), logger.With(zap.String("component", "api")))
	handler.SetVersion(Version)

	return &Server{
		config: cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Address(),
			Handler:      handler.Routes(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		store:  s,
		logger: logger,
	}
}

// Start starts the server and blocks until ctx is cancelled or the listener
// fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start HTTP server in goroutine
	go func() {
		s.logger.Info("starting HTTP server",
			zap.String("address", s.config.Server.Address()))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return &CLIError{
			Op:       "Start",
			Err:      err,
			ExitCode: ExitHTTPServerError,
		}
	case <-ctx.Done():
		s.logger.Info("received shutdown signal")
	}

	return s.Shutdown(context.Background())
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.Server.ShutdownTimeout)
	defer cancel()

	// Shutdown HTTP server
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	s.logger.Info("shutdown complete")
	return nil
}

func newServeCommand(cli *cliContext) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the reorder API and run history over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("host") {
				cli.cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cli.cfg.Server.Port = port
			}

			s, err := cli.openStore()
			if err != nil {
				return err
			}
			defer func() {
				if err := s.Close(); err != nil {
					cli.logger.Error("database close error", zap.Error(err))
				}
			}()

			cli.logger.Info("starting nsorder",
				zap.String("version", Version),
				zap.String("config", cli.configPath),
			)
			return NewServer(cli.cfg, s, cli.engine, cli.logger).Start(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "Listen host (overrides server.host)")
	cmd.Flags().IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	return cmd
}
