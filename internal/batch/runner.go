// Package batch scrapes every profile URL in a CSV sheet and writes the
// extracted fields back into the same rows.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/scrape"
	"github.com/JakeFAU/profile-scraper/internal/storage"
)

// Default column names.
const (
	DefaultURLColumn       = "prooflink"
	DefaultFirstNameColumn = "first_name"
	DefaultLastNameColumn  = "last_name"
	DefaultLocationColumn  = "geo"
)

// Columns names the sheet columns the runner reads and writes.
type Columns struct {
	URL       string
	FirstName string
	LastName  string
	Location  string
}

func (c Columns) withDefaults() Columns {
	if c.URL == "" {
		c.URL = DefaultURLColumn
	}
	if c.FirstName == "" {
		c.FirstName = DefaultFirstNameColumn
	}
	if c.LastName == "" {
		c.LastName = DefaultLastNameColumn
	}
	if c.Location == "" {
		c.Location = DefaultLocationColumn
	}
	return c
}

// Scraper resolves one URL.
type Scraper interface {
	ScrapeWithRotation(ctx context.Context, rawURL string) (scrape.Result, error)
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// SaveFunc persists the whole table after a row changes.
type SaveFunc func(*Table) error

// Summary counts what happened to each row.
type Summary struct {
	RunID     string `json:"run_id"`
	Rows      int    `json:"rows"`
	Skipped   int    `json:"skipped"`
	Succeeded int    `json:"succeeded"`
	Exhausted int    `json:"exhausted"`
}

// Runner walks a table row by row.
type Runner struct {
	scraper Scraper
	store   storage.ProfileStore
	clock   Clock
	ids     IDGenerator
	columns Columns
	logger  *zap.Logger
}

// NewRunner wires a Runner. store may be nil.
func NewRunner(scraper Scraper, store storage.ProfileStore, clock Clock, ids IDGenerator, columns Columns, logger *zap.Logger) *Runner {
	if store == nil {
		store = storage.NoOpStore{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		scraper: scraper,
		store:   store,
		clock:   clock,
		ids:     ids,
		columns: columns.withDefaults(),
		logger:  logger,
	}
}

// Run scrapes every row with an absolute http(s) URL; other rows count as skipped. Rows whose rotation is exhausted
// are skipped; the table is saved after every successful row. Any other error
// stops the run.
func (r *Runner) Run(ctx context.Context, table *Table, save SaveFunc) (Summary, error) {
	runID, err := r.ids.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("generate run id: %w", err)
	}
	summary := Summary{RunID: runID, Rows: table.Len()}
	if !table.HasColumn(r.columns.URL) {
		return summary, fmt.Errorf("column %q not found", r.columns.URL)
	}
	logger := r.logger.With(zap.String("run_id", runID))

	for row := range table.Len() {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		rawURL := strings.TrimSpace(table.Get(row, r.columns.URL))
		if err := scrape.ValidateURL(rawURL); err != nil {
			summary.Skipped++
			if rawURL != "" {
				logger.Debug("Skipping row without a usable URL", zap.Int("row", row), zap.String("url", rawURL))
			}
			continue
		}

		res, err := r.scraper.ScrapeWithRotation(ctx, rawURL)
		switch {
		case err == nil:
		case errors.Is(err, scrape.ErrExhausted), errors.Is(err, scrape.ErrAttemptLimit):
			summary.Exhausted++
			logger.Warn("Skipping row", zap.Int("row", row), zap.String("url", rawURL), zap.Error(err))
			continue
		default:
			return summary, fmt.Errorf("row %d: %w", row, err)
		}

		first, last := SplitName(res.Profile.Name)
		table.Set(row, r.columns.FirstName, first)
		table.Set(row, r.columns.LastName, last)
		table.Set(row, r.columns.Location, res.Profile.Location)
		summary.Succeeded++

		if err := r.record(ctx, runID, res, first, last); err != nil {
			return summary, err
		}
		if save != nil {
			if err := save(table); err != nil {
				return summary, fmt.Errorf("save table: %w", err)
			}
		}
		logger.Info("Row scraped", zap.Int("row", row), zap.String("url", rawURL), zap.Int("attempts", len(res.Attempts)))
	}
	logger.Info("Batch finished",
		zap.Int("rows", summary.Rows),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("exhausted", summary.Exhausted),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}

func (r *Runner) record(ctx context.Context, runID string, res scrape.Result, first, last string) error {
	id, err := r.ids.NewID()
	if err != nil {
		return fmt.Errorf("generate record id: %w", err)
	}
	rec := storage.ProfileRecord{
		ID:        id,
		RunID:     runID,
		URL:       res.URL,
		FirstName: first,
		LastName:  last,
		Location:  res.Profile.Location,
		Proxy:     res.Proxy.String(),
		Attempts:  len(res.Attempts),
		ScrapedAt: r.clock.Now(),
	}
	if err := r.store.SaveProfile(ctx, rec); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	return nil
}
