// Package validator probes proxy candidates for liveness and latency.
package validator

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/metrics"
	"github.com/JakeFAU/profile-scraper/internal/proxy"
)

const defaultProbeTimeout = 2 * time.Second

// Config controls the liveness probe.
type Config struct {
	ProbeURL  string
	Timeout   time.Duration
	UserAgent string
}

// Result captures a single probe.
type Result struct {
	Proxy      proxy.Proxy
	Alive      bool
	StatusCode int
	Latency    time.Duration
}

// Validator sends a GET to the probe URL through each candidate. Certificate
// verification is disabled on probe traffic only; proxies commonly intercept TLS.
type Validator struct {
	cfg    Config
	logger *zap.Logger
}

// New builds a Validator.
func New(cfg Config, logger *zap.Logger) (*Validator, error) {
	if cfg.ProbeURL == "" {
		return nil, errors.New("probe url is required")
	}
	if _, err := url.ParseRequestURI(cfg.ProbeURL); err != nil {
		return nil, fmt.Errorf("parse probe url: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultProbeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{cfg: cfg, logger: logger}, nil
}

// Validate reports whether the candidate answered the probe with a 2xx
// status within the timeout. Every failure mode counts as "not alive".
func (v *Validator) Validate(ctx context.Context, candidate proxy.Proxy) bool {
	res, err := v.Probe(ctx, candidate)
	if err != nil {
		v.logger.Debug("Proxy probe failed", zap.String("proxy", candidate.String()), zap.Error(err))
	}
	metrics.ObserveValidation(res.Alive, res.Latency)
	return res.Alive
}

// Probe performs one probe and returns its details. The error explains why a
// candidate is not alive; it is never fatal to the caller.
func (v *Validator) Probe(ctx context.Context, candidate proxy.Proxy) (Result, error) {
	res := Result{Proxy: candidate}
	client, err := v.client(candidate)
	if err != nil {
		return res, err
	}
	defer client.GetClient().CloseIdleConnections()

	probeCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := client.R().SetContext(probeCtx).Get(v.cfg.ProbeURL)
	elapsed := time.Since(start)
	if err != nil {
		return res, fmt.Errorf("probe via %s: %w", candidate, err)
	}
	if body := resp.RawBody(); body != nil {
		_ = body.Close()
	}

	res.StatusCode = resp.StatusCode()
	res.Latency = elapsed
	if !resp.IsSuccess() {
		return res, fmt.Errorf("probe via %s: unexpected status %d", candidate, res.StatusCode)
	}
	if elapsed > v.cfg.Timeout {
		return res, fmt.Errorf("probe via %s: took %s, limit %s", candidate, elapsed, v.cfg.Timeout)
	}
	res.Alive = true
	return res, nil
}

func (v *Validator) client(candidate proxy.Proxy) (*resty.Client, error) {
	if candidate.IsZero() {
		return nil, errors.New("empty proxy")
	}
	// resty silently probes direct when SetProxy cannot parse the URL.
	if _, err := url.Parse(candidate.URL()); err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	client := resty.New().
		SetProxy(candidate.URL()).
		SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true}). //nolint:gosec // liveness probe only
		SetTimeout(v.cfg.Timeout).
		SetCloseConnection(true).
		SetDoNotParseResponse(true).
		SetRetryCount(0)
	if v.cfg.UserAgent != "" {
		client.SetHeader("User-Agent", v.cfg.UserAgent)
	}
	return client, nil
}
