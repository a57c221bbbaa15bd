// Package pool owns the validated working set of proxies and rotates through
// it, re-fetching and re-validating the whole set whenever a pass completes.
package pool

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"sync"
	"time"

	conc "github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/profile-scraper/internal/clock/system"
	"github.com/JakeFAU/profile-scraper/internal/metrics"
	"github.com/JakeFAU/profile-scraper/internal/proxy"
)

const defaultConcurrency = 50

// Source returns raw candidates. An unreachable feed yields an empty slice.
type Source interface {
	Fetch(ctx context.Context) []proxy.Proxy
}

// Validator decides whether a single candidate is alive.
type Validator interface {
	Validate(ctx context.Context, candidate proxy.Proxy) bool
}

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Config tunes the pool.
type Config struct {
	// Concurrency caps in-flight validation probes.
	Concurrency int
}

// Snapshot is a point-in-time copy of the pool state.
type Snapshot struct {
	Working         []proxy.Proxy `json:"working"`
	Cursor          int           `json:"cursor"`
	LastValidatedAt time.Time     `json:"last_validated_at"`
	Generation      uint64        `json:"generation"`
}

// Pool is safe for concurrent use. The working slice is never edited in
// place; every initialize builds a new slice and swaps it in under mu
// together with the cursor.
type Pool struct {
	source      Source
	validator   Validator
	clock       Clock
	logger      *zap.Logger
	concurrency int

	group singleflight.Group

	mu              sync.Mutex
	working         []proxy.Proxy
	cursor          int
	lastValidatedAt time.Time
	generation      uint64
}

// New constructs an empty pool. It is populated lazily on the first Next.
func New(source Source, validator Validator, cfg Config, clock Clock, logger *zap.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if clock == nil {
		clock = system.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		source:      source,
		validator:   validator,
		clock:       clock,
		logger:      logger,
		concurrency: cfg.Concurrency,
	}
}

// Initialize fetches candidates, validates them concurrently and swaps in the
// survivors in completion order with the cursor reset. On ErrNoCandidates or
// ErrNoWorkingProxies the working set is replaced by an empty one. A canceled
// context leaves the current state untouched.
func (p *Pool) Initialize(ctx context.Context) error {
	return p.initialize(ctx)
}

// Warm populates a pool that has never been initialized. It joins the same
// shared refresh a first Next would start, so a concurrent consumer neither
// triggers a second fan-out nor has its cursor reset. It is a no-op once any
// initialize has completed.
func (p *Pool) Warm(ctx context.Context) error {
	return p.refreshFrom(ctx, 0)
}

// Next returns the next proxy in rotation. When the cursor reaches the end of
// the working set the pool re-initializes first; concurrent callers share that
// refresh. An error wrapping proxy.ErrExhausted means no working proxies remain.
func (p *Pool) Next(ctx context.Context) (proxy.Proxy, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		p.mu.Lock()
		if p.cursor < len(p.working) {
			next := p.working[p.cursor]
			p.cursor++
			p.mu.Unlock()
			return next, nil
		}
		gen := p.generation
		p.mu.Unlock()

		err := p.refreshFrom(ctx, gen)
		switch {
		case err == nil:
			continue
		case ctx.Err() != nil:
			return "", ctx.Err()
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			// The shared refresh belonged to a caller that gave up; run our own.
			continue
		default:
			return "", fmt.Errorf("%w: %w", proxy.ErrExhausted, err)
		}
	}
}

// Proxies exposes rotation as a sequence. It ends when the pool is exhausted
// or ctx is done; breaking out of the range stops it.
func (p *Pool) Proxies(ctx context.Context) iter.Seq[proxy.Proxy] {
	return func(yield func(proxy.Proxy) bool) {
		for {
			next, err := p.Next(ctx)
			if err != nil {
				if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
					p.logger.Info("Proxy rotation ended", zap.Error(err))
				}
				return
			}
			if !yield(next) {
				return
			}
		}
	}
}

// Snapshot returns a copy of the current state.
func (p *Pool) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	working := make([]proxy.Proxy, len(p.working))
	copy(working, p.working)
	return Snapshot{
		Working:         working,
		Cursor:          p.cursor,
		LastValidatedAt: p.lastValidatedAt,
		Generation:      p.generation,
	}
}

// refreshFrom re-initializes unless the set observed at gen was already replaced.
func (p *Pool) refreshFrom(ctx context.Context, gen uint64) error {
	ch := p.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		p.mu.Lock()
		stale := p.generation != gen
		p.mu.Unlock()
		if stale {
			return nil, nil
		}
		return nil, p.initialize(ctx)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (p *Pool) initialize(ctx context.Context) error {
	started := time.Now()
	candidates := proxy.Dedupe(p.source.Fetch(ctx))
	if err := ctx.Err(); err != nil {
		metrics.ObservePoolRefresh(metrics.RefreshCanceled, p.size())
		return fmt.Errorf("initialize pool: %w", err)
	}
	if len(candidates) == 0 {
		p.swap(nil)
		metrics.ObservePoolRefresh(metrics.RefreshNoCandidates, 0)
		p.logger.Warn("Proxy feed returned no candidates")
		return proxy.ErrNoCandidates
	}

	working := p.validateAll(ctx, candidates)
	if err := ctx.Err(); err != nil {
		metrics.ObservePoolRefresh(metrics.RefreshCanceled, p.size())
		return fmt.Errorf("initialize pool: %w", err)
	}

	p.logger.Info("Validated proxy candidates",
		zap.Int("candidates", len(candidates)),
		zap.Int("working", len(working)),
		zap.Int("failed", len(candidates)-len(working)),
		zap.Duration("took", time.Since(started)),
	)

	if len(working) == 0 {
		p.swap(nil)
		metrics.ObservePoolRefresh(metrics.RefreshNoWorking, 0)
		return proxy.ErrNoWorkingProxies
	}
	p.swap(working)
	metrics.ObservePoolRefresh(metrics.RefreshOK, len(working))
	return nil
}

// validateAll probes every candidate with bounded concurrency and returns the
// survivors in the order their probes completed.
func (p *Pool) validateAll(ctx context.Context, candidates []proxy.Proxy) []proxy.Proxy {
	var (
		mu      sync.Mutex
		working = make([]proxy.Proxy, 0, len(candidates))
	)
	workers := conc.New().WithMaxGoroutines(min(p.concurrency, len(candidates)))
	for _, candidate := range candidates {
		workers.Go(func() {
			if !p.validator.Validate(ctx, candidate) {
				return
			}
			mu.Lock()
			working = append(working, candidate)
			mu.Unlock()
		})
	}
	workers.Wait()
	return working
}

func (p *Pool) swap(working []proxy.Proxy) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.working = working
	p.cursor = 0
	p.lastValidatedAt = p.clock.Now()
	p.generation++
}

func (p *Pool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.working)
}
