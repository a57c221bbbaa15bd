// Package app initializes and holds long-lived application services, acting as a dependency injection container.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/batch"
	"github.com/JakeFAU/profile-scraper/internal/browser"
	"github.com/JakeFAU/profile-scraper/internal/clock/system"
	"github.com/JakeFAU/profile-scraper/internal/config"
	"github.com/JakeFAU/profile-scraper/internal/id/uuid"
	"github.com/JakeFAU/profile-scraper/internal/logging"
	"github.com/JakeFAU/profile-scraper/internal/proxy/pool"
	"github.com/JakeFAU/profile-scraper/internal/proxy/source"
	"github.com/JakeFAU/profile-scraper/internal/proxy/validator"
	"github.com/JakeFAU/profile-scraper/internal/ratelimit"
	"github.com/JakeFAU/profile-scraper/internal/scrape"
	"github.com/JakeFAU/profile-scraper/internal/storage"
	"github.com/JakeFAU/profile-scraper/internal/storage/memory"
	"github.com/JakeFAU/profile-scraper/internal/storage/postgres"
)

// App holds the shared, long-lived services. It is built once per process
// and handed to the command that runs.
type App struct {
	cfg          config.Config
	logger       *zap.Logger
	pool         *pool.Pool
	orchestrator *scrape.Orchestrator
	store        storage.ProfileStore
	runner       *batch.Runner
	closers      []func()
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Source  pool.Source
	Checker pool.Validator
	Fetcher scrape.Fetcher
	Store   storage.ProfileStore
}

// New wires every service from cfg. Nil fields in opts use the real implementations.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{cfg: cfg, logger: logger}

	src := opts.Source
	if src == nil {
		src = source.NewFeed(source.Config{
			FeedURL:   cfg.Proxy.FeedURL,
			UserAgent: cfg.Proxy.UserAgent,
			Timeout:   cfg.FeedTimeout(),
		}, logging.Component(logger, "source"))
	}

	checker := opts.Checker
	if checker == nil {
		v, err := validator.New(validator.Config{
			ProbeURL:  cfg.Proxy.ProbeURL,
			Timeout:   cfg.ProbeTimeout(),
			UserAgent: cfg.Proxy.UserAgent,
		}, logging.Component(logger, "validator"))
		if err != nil {
			return nil, fmt.Errorf("build validator: %w", err)
		}
		checker = v
	}

	clock := system.New()
	a.pool = pool.New(src, checker, pool.Config{Concurrency: cfg.Proxy.ProbeConcurrency}, clock, logging.Component(logger, "pool"))

	fetcher := opts.Fetcher
	if fetcher == nil {
		f, err := a.newBrowser()
		if err != nil {
			return nil, err
		}
		fetcher = f
	}

	a.orchestrator = scrape.NewOrchestrator(
		a.pool,
		fetcher,
		ratelimit.New(ratelimit.Config{QPS: cfg.Scrape.TargetQPS}),
		scrape.Config{ExtractionTimeout: cfg.ExtractionTimeout(), MaxAttempts: cfg.Scrape.MaxAttempts},
		logging.Component(logger, "scrape"),
	)

	store := opts.Store
	if store == nil {
		s, err := a.newStore(ctx)
		if err != nil {
			return nil, err
		}
		store = s
	}
	a.store = store

	a.runner = batch.NewRunner(a.orchestrator, store, clock, uuid.NewUUIDGenerator(), batch.Columns{
		URL:       cfg.Batch.URLColumn,
		FirstName: cfg.Batch.FirstNameColumn,
		LastName:  cfg.Batch.LastNameColumn,
		Location:  cfg.Batch.LocationColumn,
	}, logging.Component(logger, "batch"))

	logger.Info("Application services initialized",
		zap.String("probe_url", cfg.Proxy.ProbeURL),
		zap.Int("probe_concurrency", cfg.Proxy.ProbeConcurrency),
		zap.Duration("extraction_timeout", cfg.ExtractionTimeout()),
	)
	return a, nil
}

func (a *App) newBrowser() (*browser.Fetcher, error) {
	bc := a.cfg.Browser
	if bc.ExecPath == "" {
		if _, ok := browser.LookupChrome(); !ok {
			a.logger.Warn("No Chrome executable found on PATH; set browser.exec_path")
		}
	}
	f, err := browser.New(browser.Config{
		Headless:         bc.Headless,
		ExecPath:         bc.ExecPath,
		NoSandbox:        bc.NoSandbox,
		UserAgent:        bc.UserAgent,
		NameSelector:     bc.NameSelector,
		LocationSelector: bc.LocationSelector,
		DismissSelector:  bc.DismissSelector,
		Login: browser.LoginConfig{
			Enabled:       bc.Login.Enabled,
			URL:           bc.Login.URL,
			Email:         bc.Login.Email,
			Password:      bc.Login.Password,
			ReadySelector: bc.Login.ReadySelector,
		},
	}, logging.Component(a.logger, "browser"))
	if err != nil {
		return nil, fmt.Errorf("build browser: %w", err)
	}
	return f, nil
}

func (a *App) newStore(ctx context.Context) (storage.ProfileStore, error) {
	db := a.cfg.Database
	if db.DSN == "" {
		a.logger.Info("Using in-memory profile store")
		return memory.NewProfileStore(), nil
	}
	s, err := postgres.NewProfileStore(ctx, postgres.Config{DSN: db.DSN, Table: db.Table, MaxConns: db.MaxConns})
	if err != nil {
		return nil, fmt.Errorf("init profile store: %w", err)
	}
	if err := s.EnsureSchema(ctx); err != nil {
		s.Close()
		return nil, err
	}
	a.closers = append(a.closers, s.Close)
	a.logger.Info("Using Postgres profile store", zap.String("table", db.Table))
	return s, nil
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Pool returns the shared proxy pool.
func (a *App) Pool() *pool.Pool { return a.pool }

// Orchestrator returns the scrape orchestrator.
func (a *App) Orchestrator() *scrape.Orchestrator { return a.orchestrator }

// Store returns the profile store.
func (a *App) Store() storage.ProfileStore { return a.store }

// Runner returns the batch runner.
func (a *App) Runner() *batch.Runner { return a.runner }

// Close releases every service in reverse order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
