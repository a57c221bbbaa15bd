// Package metrics exposes Prometheus collectors for the proxy pool and the
// scrape orchestrator.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	proxyValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_scraper_proxy_validations_total",
			Help: "Total number of proxy liveness probes, labeled by result.",
		},
		[]string{"result"},
	)

	proxyProbeDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "profile_scraper_proxy_probe_duration_seconds",
			Help:    "Histogram of proxy probe latencies for probes that reached the target.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	poolRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_scraper_pool_refreshes_total",
			Help: "Total number of pool initializations, labeled by result.",
		},
		[]string{"result"},
	)

	poolWorkingProxies = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "profile_scraper_pool_working_proxies",
			Help: "Number of proxies in the current working set.",
		},
	)

	scrapeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_scraper_scrape_attempts_total",
			Help: "Total number of page extraction attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	scrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_scraper_scrapes_total",
			Help: "Total number of URLs scraped, labeled by final status.",
		},
		[]string{"status"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profile_scraper_rate_limit_delay_seconds",
			Help:    "Histogram of per-host rate limit wait durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"host"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_scraper_http_requests_total",
			Help: "Total number of API requests, labeled by method, route and status code.",
		},
		[]string{"method", "route", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "profile_scraper_http_request_duration_seconds",
			Help:    "Histogram of API request latencies.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 120, 300},
		},
		[]string{"method", "route"},
	)
)

// Validation result labels.
const (
	ValidationAlive = "alive"
	ValidationDead  = "dead"
)

// Refresh result labels.
const (
	RefreshOK           = "ok"
	RefreshNoCandidates = "no_candidates"
	RefreshNoWorking    = "no_working"
	RefreshCanceled     = "canceled"
)

// Scrape status labels.
const (
	ScrapeStatusSucceeded = "succeeded"
	ScrapeStatusExhausted = "exhausted"
	ScrapeStatusFailed    = "failed"
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveValidation records a single probe outcome.
func ObserveValidation(alive bool, latency time.Duration) {
	if !alive {
		proxyValidationsTotal.WithLabelValues(ValidationDead).Inc()
		return
	}
	proxyValidationsTotal.WithLabelValues(ValidationAlive).Inc()
	proxyProbeDurationSeconds.Observe(latency.Seconds())
}

// ObservePoolRefresh records an initialize pass and the resulting working set size.
func ObservePoolRefresh(result string, working int) {
	poolRefreshesTotal.WithLabelValues(result).Inc()
	poolWorkingProxies.Set(float64(working))
}

// ObserveAttempt increments the attempt counter for the given outcome.
func ObserveAttempt(outcome string) {
	scrapeAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveScrape increments the per-URL counter for the given final status.
func ObserveScrape(status string) {
	scrapesTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(SanitizeSite(host)).Observe(duration.Seconds())
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// SanitizeSite extracts a lowercase hostname for use as a label value.
// It returns "unknown" if the input cannot be parsed.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
