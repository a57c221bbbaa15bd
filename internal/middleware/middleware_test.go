package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-scraper/internal/metrics"
)

func TestMetricsRecordsRoutePattern(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Use(Metrics)
	r.Get("/v1/things/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/things/42", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	exposed := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(exposed, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := exposed.Body.String()
	require.True(t, strings.Contains(body, `profile_scraper_http_requests_total{code="418",method="GET",route="/v1/things/{id}"} 1`), body)
}
