package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/proxy"
)

func TestFeedFetchSplitsCRLF(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "feed-agent", r.UserAgent())
		fmt.Fprint(w, "1.1.1.1:80\r\n2.2.2.2:8080\r\n")
	}))
	defer srv.Close()

	feed := NewFeed(Config{FeedURL: srv.URL, UserAgent: "feed-agent", Timeout: time.Second}, zap.NewNop())

	got := feed.Fetch(context.Background())
	require.Equal(t, []proxy.Proxy{"1.1.1.1:80", "2.2.2.2:8080"}, got)

	// The same feed URL is fetched again on every pool refresh.
	got = feed.Fetch(context.Background())
	require.Len(t, got, 2)
	require.EqualValues(t, 2, hits.Load())
}

func TestFeedFetchEmptyBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	feed := NewFeed(Config{FeedURL: srv.URL, Timeout: time.Second}, nil)
	require.Empty(t, feed.Fetch(context.Background()))
}

func TestFeedFetchServerErrorReturnsEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	feed := NewFeed(Config{FeedURL: srv.URL, Timeout: time.Second}, zap.NewNop())
	require.Empty(t, feed.Fetch(context.Background()))

	_, err := feed.download(context.Background())
	require.ErrorIs(t, err, proxy.ErrFeedUnavailable)
}

func TestFeedFetchCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		fmt.Fprint(w, "1.1.1.1:80")
	}))
	defer srv.Close()
	defer close(release)

	feed := NewFeed(Config{FeedURL: srv.URL, Timeout: 5 * time.Second}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := feed.download(ctx)
	require.ErrorIs(t, err, proxy.ErrFeedUnavailable)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFeedMissingURL(t *testing.T) {
	t.Parallel()

	feed := NewFeed(Config{}, zap.NewNop())
	require.Empty(t, feed.Fetch(context.Background()))
}

func TestParseList(t *testing.T) {
	t.Parallel()

	body := []byte("\r\n1.1.1.1:80\r\nnot-a-proxy\r\n2.2.2.2:8080\n1.1.1.1:80\r\n3.3.3.3:99999\r\n\r\n")
	got, skipped := ParseList(body)
	require.Equal(t, []proxy.Proxy{"1.1.1.1:80", "2.2.2.2:8080"}, got)
	require.Equal(t, 2, skipped)

	got, skipped = ParseList(nil)
	require.Empty(t, got)
	require.Zero(t, skipped)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := NewFeed(Config{}, zap.NewNop())
	var body []byte
	var fetchErr error

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, &body, &fetchErr)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	hooks.onResponse(&colly.Response{Body: []byte("1.1.1.1:80")})
	require.Equal(t, "1.1.1.1:80", string(body))

	hooks.onError(nil, errors.New("boom"))
	require.EqualError(t, fetchErr, "boom")
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
