// Package cmd defines and implements the CLI commands for the profile-scraper executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/app"
	"github.com/JakeFAU/profile-scraper/internal/batch"
	"github.com/JakeFAU/profile-scraper/internal/config"
	"github.com/JakeFAU/profile-scraper/internal/logging"
	"github.com/JakeFAU/profile-scraper/internal/proxy/pool"
	"github.com/JakeFAU/profile-scraper/internal/scrape"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what subcommands use. *app.App satisfies it.
type App interface {
	Close()
	Config() config.Config
	Logger() *zap.Logger
	Pool() *pool.Pool
	Orchestrator() *scrape.Orchestrator
	Runner() *batch.Runner
}

// newApp is the application factory. Tests replace it to inject fakes.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, cfg, logger, app.Options{})
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// NewRootCmd creates and configures the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "profile-scraper",
		Short: "Scrape public profile fields through a rotating pool of validated proxies.",
		Long: `profile-scraper resolves profile URLs into a name and a location by driving
headless Chrome through public proxies. Proxies are fetched from a feed,
validated against a probe URL, and rotated until an attempt succeeds.`,
		SilenceUsage: true,

		// Builds the App once the flags are parsed and stores it in the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")

	cmd.AddCommand(newScrapeCmd(), newBatchCmd(), newProxiesCmd(), newServeCmd())
	return cmd
}

// Execute runs the root command with ctx and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
