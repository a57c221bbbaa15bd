// Package scrape resolves a profile URL into its name and location by trying
// one proxy at a time until an attempt succeeds or the pool runs dry.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/metrics"
	"github.com/JakeFAU/profile-scraper/internal/proxy"
)

const defaultExtractionTimeout = 60 * time.Second

// Profile holds the extracted fields.
type Profile struct {
	Name     string `json:"name"`
	Location string `json:"location"`
}

// Complete reports whether both fields are present.
func (p Profile) Complete() bool {
	return strings.TrimSpace(p.Name) != "" && strings.TrimSpace(p.Location) != ""
}

// Request is one page fetch. A zero Proxy means a direct connection.
type Request struct {
	URL     string
	Proxy   proxy.Proxy
	Timeout time.Duration
}

// Fetcher resolves one URL through one optional proxy.
type Fetcher interface {
	FetchProfile(ctx context.Context, req Request) (Profile, error)
}

// Rotator hands out proxies. It returns an error wrapping proxy.ErrExhausted
// when none remain.
type Rotator interface {
	Next(ctx context.Context) (proxy.Proxy, error)
}

// Limiter throttles attempts per target host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Outcome labels a single attempt.
type Outcome string

// Attempt outcomes. Failures use the extraction Kind as their outcome.
const (
	OutcomeSuccess Outcome = "success"
)

// Attempt records one proxy tried for one URL.
type Attempt struct {
	URL      string        `json:"url"`
	Proxy    proxy.Proxy   `json:"proxy"`
	Outcome  Outcome       `json:"outcome"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Result is the final outcome for a URL. Attempts is filled in on error too.
type Result struct {
	URL      string      `json:"url"`
	Profile  Profile     `json:"profile"`
	Proxy    proxy.Proxy `json:"proxy"`
	Attempts []Attempt   `json:"attempts"`
}

// Config tunes the orchestrator.
type Config struct {
	ExtractionTimeout time.Duration
	// MaxAttempts caps attempts per URL; zero means until exhaustion.
	MaxAttempts int
}

// Orchestrator runs retry-with-rotation for single URLs. Attempts for one URL
// are strictly sequential.
type Orchestrator struct {
	rotator Rotator
	fetcher Fetcher
	limiter Limiter
	cfg     Config
	logger  *zap.Logger
}

// NewOrchestrator wires an orchestrator. limiter may be nil.
func NewOrchestrator(rotator Rotator, fetcher Fetcher, limiter Limiter, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.ExtractionTimeout <= 0 {
		cfg.ExtractionTimeout = defaultExtractionTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		rotator: rotator,
		fetcher: fetcher,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
	}
}

// ScrapeWithRotation tries proxies in rotation order until one yields a
// complete profile. It never retries the same proxy for the same call.
func (o *Orchestrator) ScrapeWithRotation(ctx context.Context, rawURL string) (Result, error) {
	result := Result{URL: rawURL}
	if err := ValidateURL(rawURL); err != nil {
		return result, err
	}
	logger := o.logger.With(zap.String("url", rawURL))

	for {
		if o.cfg.MaxAttempts > 0 && len(result.Attempts) >= o.cfg.MaxAttempts {
			metrics.ObserveScrape(metrics.ScrapeStatusExhausted)
			return result, fmt.Errorf("%w: %d attempts", ErrAttemptLimit, len(result.Attempts))
		}

		// Throttle before taking a proxy so a denied slot never spends one.
		if err := o.wait(ctx, rawURL); err != nil {
			metrics.ObserveScrape(metrics.ScrapeStatusFailed)
			logger.Warn("Rate limiter denied attempt", zap.Int("attempts", len(result.Attempts)), zap.Error(err))
			return result, err
		}

		next, err := o.rotator.Next(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				metrics.ObserveScrape(metrics.ScrapeStatusFailed)
				return result, ctxErr
			}
			if errors.Is(err, proxy.ErrExhausted) {
				metrics.ObserveScrape(metrics.ScrapeStatusExhausted)
				logger.Warn("Proxy rotation exhausted", zap.Int("attempts", len(result.Attempts)), zap.Error(err))
				return result, fmt.Errorf("%w: %w", ErrExhausted, err)
			}
			metrics.ObserveScrape(metrics.ScrapeStatusFailed)
			return result, fmt.Errorf("next proxy: %w", err)
		}

		profile, attempt, err := o.attempt(ctx, rawURL, next)
		result.Attempts = append(result.Attempts, attempt)
		if err == nil {
			result.Profile = profile
			result.Proxy = next
			metrics.ObserveScrape(metrics.ScrapeStatusSucceeded)
			logger.Info("Scraped profile", zap.String("proxy", next.String()), zap.Int("attempts", len(result.Attempts)))
			return result, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ObserveScrape(metrics.ScrapeStatusFailed)
			return result, ctxErr
		}
		kind := KindOf(err)
		if kind.Fatal() {
			metrics.ObserveScrape(metrics.ScrapeStatusFailed)
			logger.Error("Scrape aborted", zap.String("proxy", next.String()), zap.Error(err))
			return result, err
		}
		logger.Info("Attempt failed, rotating proxy",
			zap.String("proxy", next.String()),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

// ScrapeDirect performs a single attempt without a proxy.
func (o *Orchestrator) ScrapeDirect(ctx context.Context, rawURL string) (Result, error) {
	result := Result{URL: rawURL}
	if err := ValidateURL(rawURL); err != nil {
		return result, err
	}
	if err := o.wait(ctx, rawURL); err != nil {
		metrics.ObserveScrape(metrics.ScrapeStatusFailed)
		return result, err
	}
	profile, attempt, err := o.attempt(ctx, rawURL, "")
	result.Attempts = append(result.Attempts, attempt)
	if err != nil {
		metrics.ObserveScrape(metrics.ScrapeStatusFailed)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, err
	}
	result.Profile = profile
	metrics.ObserveScrape(metrics.ScrapeStatusSucceeded)
	return result, nil
}

func (o *Orchestrator) attempt(ctx context.Context, rawURL string, via proxy.Proxy) (Profile, Attempt, error) {
	attempt := Attempt{URL: rawURL, Proxy: via}
	start := time.Now()
	profile, err := o.fetch(ctx, rawURL, via)
	attempt.Duration = time.Since(start)
	if err != nil {
		attempt.Outcome = Outcome(KindOf(err))
		attempt.Err = err.Error()
	} else {
		attempt.Outcome = OutcomeSuccess
	}
	metrics.ObserveAttempt(string(attempt.Outcome))
	return profile, attempt, err
}

// wait blocks on the per-host limiter. Caller cancellation is returned as is;
// any other refusal wraps ErrRateLimited.
func (o *Orchestrator) wait(ctx context.Context, rawURL string) error {
	if o.limiter == nil {
		return nil
	}
	if err := o.limiter.Wait(ctx, rawURL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %w", ErrRateLimited, err)
	}
	return nil
}

func (o *Orchestrator) fetch(ctx context.Context, rawURL string, via proxy.Proxy) (Profile, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.cfg.ExtractionTimeout)
	defer cancel()

	profile, err := o.fetcher.FetchProfile(attemptCtx, Request{URL: rawURL, Proxy: via, Timeout: o.cfg.ExtractionTimeout})
	if err != nil {
		var extractionErr *ExtractionError
		if !errors.As(err, &extractionErr) && errors.Is(err, context.DeadlineExceeded) {
			return Profile{}, NewExtractionError(KindTimeout, err)
		}
		return Profile{}, err
	}
	profile.Name = strings.TrimSpace(profile.Name)
	profile.Location = strings.TrimSpace(profile.Location)
	if !profile.Complete() {
		return Profile{}, NewExtractionError(KindEmptyField, fmt.Errorf("name=%q location=%q", profile.Name, profile.Location))
	}
	return profile, nil
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	return nil
}
