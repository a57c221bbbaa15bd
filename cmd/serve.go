package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/api"
	"github.com/JakeFAU/profile-scraper/internal/logging"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Starts the HTTP API. The proxy pool is warmed in the background; the server
stops gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config()
			if err := cfg.RequireFeed(); err != nil {
				return err
			}
			logger := appInstance.Logger()
			ctx := cmd.Context()

			apiServer := api.NewServer(
				appInstance.Pool(),
				appInstance.Orchestrator(),
				api.Config{APIKey: cfg.Server.APIKey, RequestTimeout: cfg.RequestTimeout()},
				logging.Component(logger, "api"),
			)
			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
				Handler:           apiServer.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				if err := appInstance.Pool().Warm(ctx); err != nil {
					logger.Warn("Initial pool warm-up failed", zap.Error(err))
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("HTTP server started", zap.Int("port", cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("http server: %w", err)
				}
			}
			logger.Info("Shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown: %w", err)
			}
			logger.Info("Shutdown complete")
			return nil
		},
	}
}
