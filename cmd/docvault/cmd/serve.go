package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/docvault/internal/config"
	"github.com/kailas-cloud/docvault/internal/metrics"
	chiTransport "github.com/kailas-cloud/docvault/internal/transport/chi"
	"github.com/kailas-cloud/docvault/internal/version"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := flags.load()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.HTTP.Port = port
			}
			return runServe(cmd.Context(), cfg, flags.env, logger)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides http.port)")

	return cmd
}

func runServe(ctx context.Context, cfg config.Config, env string, logger *zap.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting docvault API server",
		zap.String("version", version.Get().Short()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
	)

	metrics.RegisterHTTPMetrics()
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterSearchMetrics()

	a, err := newApp(ctx, cfg, logger)
	defer a.Close()
	if err != nil {
		logger.Error("Startup failed", zap.Error(err))
		return err
	}

	auth, err := chiTransport.NewAuthenticator(chiTransport.AuthOptions{
		APIKeys:   cfg.Auth.APIKeys,
		JWTSecret: cfg.Auth.JWTSecret,
		JWTIssuer: cfg.Auth.JWTIssuer,
	})
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}
	if !auth.Enabled() {
		logger.Warn("Authentication disabled: every caller has the root role")
	}

	rebuildCtx, cancelRebuild := context.WithCancel(ctx)
	rebuildDone := make(chan struct{})
	if a.needsVectorRebuild() {
		logger.Info("Rebuilding vector graph from the record store")
		go func() {
			defer close(rebuildDone)
			a.rebuildVectors(rebuildCtx)
		}()
	} else {
		close(rebuildDone)
	}
	defer func() {
		cancelRebuild()
		<-rebuildDone
	}()

	server := chiTransport.NewServer(a.documents, a.health, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      chiTransport.NewRouter(server, auth, logger),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}
