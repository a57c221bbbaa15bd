// Package source downloads the raw proxy candidate list from a plain-text feed.
package source

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/proxy"
)

// Config controls how the feed is downloaded.
type Config struct {
	FeedURL   string
	UserAgent string
	Timeout   time.Duration
}

// Feed fetches CRLF-delimited `host:port` entries with a Colly collector.
type Feed struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// NewFeed builds a Feed source.
func NewFeed(cfg Config, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.WithTransport(newHTTPTransport())
	return &Feed{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch downloads the feed and returns the parsed candidates. Network and
// parse failures are logged and reported as an empty list.
func (f *Feed) Fetch(ctx context.Context) []proxy.Proxy {
	body, err := f.download(ctx)
	if err != nil {
		f.logger.Error("Failed to fetch proxy feed", zap.String("feed_url", f.cfg.FeedURL), zap.Error(err))
		return nil
	}
	candidates, skipped := ParseList(body)
	f.logger.Info("Fetched proxy candidates",
		zap.Int("count", len(candidates)),
		zap.Int("skipped", skipped),
	)
	return candidates
}

func (f *Feed) download(ctx context.Context) ([]byte, error) {
	if f.cfg.FeedURL == "" {
		return nil, fmt.Errorf("%w: feed url not configured", proxy.ErrFeedUnavailable)
	}
	var (
		body     []byte
		fetchErr error
	)
	collector := f.buildCollector(&body, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(f.cfg.FeedURL)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: feed fetch canceled: %w", proxy.ErrFeedUnavailable, ctx.Err())
	case err := <-done:
		if fetchErr != nil {
			return nil, fmt.Errorf("%w: feed response failed: %w", proxy.ErrFeedUnavailable, fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: feed visit failed: %w", proxy.ErrFeedUnavailable, err)
		}
		return body, nil
	}
}

func (f *Feed) buildCollector(body *[]byte, fetchErr *error) *colly.Collector {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	f.configureCollectorHooks(collector, body, fetchErr)
	return collector
}

func (f *Feed) configureCollectorHooks(hooks collectorHooks, body *[]byte, fetchErr *error) {
	hooks.OnResponse(func(r *colly.Response) {
		*body = append([]byte(nil), r.Body...)
	})
	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

// ParseList splits a feed body on line boundaries and returns the unique,
// well-formed candidates in feed order together with the number of entries
// that were dropped as malformed.
func ParseList(body []byte) ([]proxy.Proxy, int) {
	lines := strings.FieldsFunc(strings.TrimSpace(string(body)), func(r rune) bool {
		return r == '\r' || r == '\n'
	})
	candidates := make([]proxy.Proxy, 0, len(lines))
	skipped := 0
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		p, err := proxy.Parse(line)
		if err != nil {
			skipped++
			continue
		}
		candidates = append(candidates, p)
	}
	return proxy.Dedupe(candidates), skipped
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
