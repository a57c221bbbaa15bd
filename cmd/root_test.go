package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/app"
	"github.com/JakeFAU/profile-scraper/internal/batch"
	"github.com/JakeFAU/profile-scraper/internal/config"
	"github.com/JakeFAU/profile-scraper/internal/proxy"
	"github.com/JakeFAU/profile-scraper/internal/proxy/pool"
	"github.com/JakeFAU/profile-scraper/internal/scrape"
	"github.com/JakeFAU/profile-scraper/internal/storage/memory"
)

type staticSource []proxy.Proxy

func (s staticSource) Fetch(context.Context) []proxy.Proxy { return s }

type allowList map[proxy.Proxy]bool

func (a allowList) Validate(_ context.Context, p proxy.Proxy) bool { return a[p] }

type profileFetcher map[string]scrape.Profile

func (f profileFetcher) FetchProfile(_ context.Context, req scrape.Request) (scrape.Profile, error) {
	if req.Proxy != "2.2.2.2:8080" && !req.Proxy.IsZero() {
		return scrape.Profile{}, scrape.NewExtractionError(scrape.KindNavigation, errors.New("blocked"))
	}
	profile, ok := f[req.URL]
	if !ok {
		return scrape.Profile{}, scrape.NewExtractionError(scrape.KindSelectorNotFound, errors.New("authwall"))
	}
	return profile, nil
}

// useFakeApp swaps the factory for one wired with in-process fakes.
func useFakeApp(t *testing.T, feedURL string) {
	t.Helper()
	original := newApp
	t.Cleanup(func() { newApp = original })

	newApp = func(ctx context.Context, _ string) (App, error) {
		cfg, err := config.Load("")
		if err != nil {
			return nil, err
		}
		cfg.Proxy.FeedURL = feedURL
		cfg.Scrape.MaxAttempts = 3
		return app.New(ctx, cfg, zap.NewNop(), app.Options{
			Source:  staticSource{"1.1.1.1:80", "2.2.2.2:8080"},
			Checker: allowList{"2.2.2.2:8080": true},
			Fetcher: profileFetcher{"https://www.linkedin.com/in/ada": {Name: "Ada Lovelace", Location: "London"}},
			Store:   memory.NewProfileStore(),
		})
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestScrapeCommand(t *testing.T) {
	useFakeApp(t, "https://feed.example/list")

	out, err := execute(t, "scrape", "https://www.linkedin.com/in/ada")
	require.NoError(t, err)

	var res scrape.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, "Ada Lovelace", res.Profile.Name)
	require.Equal(t, proxy.Proxy("2.2.2.2:8080"), res.Proxy)
}

func TestScrapeCommandDirect(t *testing.T) {
	useFakeApp(t, "")

	out, err := execute(t, "scrape", "--direct", "https://www.linkedin.com/in/ada")
	require.NoError(t, err)
	require.Contains(t, out, "London")
}

func TestScrapeCommandRequiresFeed(t *testing.T) {
	useFakeApp(t, "")

	_, err := execute(t, "scrape", "https://www.linkedin.com/in/ada")
	require.ErrorContains(t, err, "proxy.feed_url")
}

func TestScrapeCommandExhausted(t *testing.T) {
	useFakeApp(t, "https://feed.example/list")

	_, err := execute(t, "scrape", "https://www.linkedin.com/in/unknown")
	require.ErrorIs(t, err, scrape.ErrAttemptLimit)
}

func TestProxiesCommand(t *testing.T) {
	useFakeApp(t, "https://feed.example/list")

	out, err := execute(t, "proxies")
	require.NoError(t, err)

	var snap pool.Snapshot
	require.NoError(t, json.Unmarshal([]byte(out), &snap))
	require.Equal(t, []proxy.Proxy{"2.2.2.2:8080"}, snap.Working)
}

func TestBatchCommand(t *testing.T) {
	useFakeApp(t, "https://feed.example/list")

	dir := t.TempDir()
	input := filepath.Join(dir, "in.csv")
	output := filepath.Join(dir, "out.csv")
	require.NoError(t, os.WriteFile(input, []byte("prooflink\nhttps://www.linkedin.com/in/ada\n"), 0o600))

	out, err := execute(t, "batch", "--input", input, "--output", output)
	require.NoError(t, err)

	var summary batch.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Equal(t, 1, summary.Succeeded)

	written, err := os.ReadFile(output)
	require.NoError(t, err)
	require.Equal(t, "prooflink,first_name,last_name,geo\nhttps://www.linkedin.com/in/ada,Ada,Lovelace,London\n", string(written))
}

func TestBatchCommandRequiresInput(t *testing.T) {
	useFakeApp(t, "https://feed.example/list")

	_, err := execute(t, "batch")
	require.ErrorContains(t, err, "--input")
}

func TestRootFailsWhenAppCannotStart(t *testing.T) {
	original := newApp
	t.Cleanup(func() { newApp = original })
	newApp = func(context.Context, string) (App, error) { return nil, errors.New("no config") }

	_, err := execute(t, "proxies")
	require.ErrorContains(t, err, "no config")
}
