package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/profile-scraper/internal/clock/system"
	"github.com/JakeFAU/profile-scraper/internal/proxy"
	"github.com/JakeFAU/profile-scraper/internal/scrape"
	"github.com/JakeFAU/profile-scraper/internal/storage"
	"github.com/JakeFAU/profile-scraper/internal/storage/memory"
)

type fakeScraper struct {
	results map[string]scrape.Profile
	errs    map[string]error
	calls   []string
}

func (f *fakeScraper) ScrapeWithRotation(_ context.Context, rawURL string) (scrape.Result, error) {
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return scrape.Result{URL: rawURL}, err
	}
	return scrape.Result{
		URL:      rawURL,
		Profile:  f.results[rawURL],
		Proxy:    proxy.Proxy("2.2.2.2:8080"),
		Attempts: []scrape.Attempt{{URL: rawURL}, {URL: rawURL}},
	}, nil
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NewID() (string, error) {
	return fmt.Sprintf("id-%d", s.n.Add(1)), nil
}

var fixedClock = system.NewFixed(time.Unix(1700000000, 0))

func TestRunnerFillsRowsAndSkips(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader(
		"prooflink,note\nhttps://p/ada,\n,blank\nnot-a-link,\nhttps://p/gone,\nhttps://p/grace,\n"))
	require.NoError(t, err)

	scraper := &fakeScraper{
		results: map[string]scrape.Profile{
			"https://p/ada":   {Name: "Ada Lovelace", Location: "London"},
			"https://p/grace": {Name: "Grace Brewster Hopper", Location: "New York"},
		},
		errs: map[string]error{"https://p/gone": fmt.Errorf("%w: pool empty", scrape.ErrExhausted)},
	}
	store := memory.NewProfileStore()
	var saves int
	runner := NewRunner(scraper, store, fixedClock, &seqIDs{}, Columns{}, zap.NewNop())

	summary, err := runner.Run(context.Background(), table, func(*Table) error {
		saves++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, Summary{RunID: "id-1", Rows: 5, Skipped: 2, Succeeded: 2, Exhausted: 1}, summary)
	require.Equal(t, 2, saves)
	require.Equal(t, []string{"https://p/ada", "https://p/gone", "https://p/grace"}, scraper.calls)

	require.Equal(t, "Ada", table.Get(0, DefaultFirstNameColumn))
	require.Equal(t, "Lovelace", table.Get(0, DefaultLastNameColumn))
	require.Equal(t, "London", table.Get(0, DefaultLocationColumn))
	require.Empty(t, table.Get(3, DefaultFirstNameColumn))
	require.Empty(t, table.Get(1, DefaultFirstNameColumn))
	require.Equal(t, "Brewster Hopper", table.Get(4, DefaultLastNameColumn))

	records := store.List("id-1")
	require.Len(t, records, 2)
	require.Equal(t, storage.ProfileRecord{
		ID:        "id-2",
		RunID:     "id-1",
		URL:       "https://p/ada",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Location:  "London",
		Proxy:     "2.2.2.2:8080",
		Attempts:  2,
		ScrapedAt: fixedClock.Now(),
	}, records[0])
}

func TestRunnerSkipsMalformedHTTPLookalikes(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader("prooflink,note\nhttpfoo,\nhttps://,\nhttp:/p/x,\nhttps://p/ada,\n"))
	require.NoError(t, err)

	scraper := &fakeScraper{results: map[string]scrape.Profile{
		"https://p/ada": {Name: "Ada Lovelace", Location: "London"},
	}}
	summary, err := NewRunner(scraper, nil, fixedClock, &seqIDs{}, Columns{}, nil).Run(context.Background(), table, nil)
	require.NoError(t, err)
	require.Equal(t, Summary{RunID: "id-1", Rows: 4, Skipped: 3, Succeeded: 1}, summary)
	require.Equal(t, []string{"https://p/ada"}, scraper.calls)
}

func TestRunnerStopsOnFatalError(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader("prooflink\nhttps://p/a\nhttps://p/b\n"))
	require.NoError(t, err)

	fatal := scrape.NewExtractionError(scrape.KindBrowser, errors.New("chrome missing"))
	scraper := &fakeScraper{errs: map[string]error{"https://p/a": fatal}}
	runner := NewRunner(scraper, nil, fixedClock, &seqIDs{}, Columns{}, nil)

	_, err = runner.Run(context.Background(), table, nil)
	require.ErrorIs(t, err, fatal)
	require.Len(t, scraper.calls, 1)
}

func TestRunnerSaveFailureStops(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader("prooflink\nhttps://p/a\nhttps://p/b\n"))
	require.NoError(t, err)

	scraper := &fakeScraper{results: map[string]scrape.Profile{"https://p/a": {Name: "A B", Location: "C"}}}
	runner := NewRunner(scraper, nil, fixedClock, &seqIDs{}, Columns{}, nil)

	boom := errors.New("disk full")
	_, err = runner.Run(context.Background(), table, func(*Table) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestRunnerCustomColumns(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader("link\nhttps://p/a\n"))
	require.NoError(t, err)

	scraper := &fakeScraper{results: map[string]scrape.Profile{"https://p/a": {Name: "A B", Location: "C"}}}
	cols := Columns{URL: "link", FirstName: "fn", LastName: "ln", Location: "loc"}
	runner := NewRunner(scraper, nil, fixedClock, &seqIDs{}, cols, nil)

	_, err = runner.Run(context.Background(), table, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"link", "fn", "ln", "loc"}, table.Header())

	_, err = NewRunner(scraper, nil, fixedClock, &seqIDs{}, Columns{}, nil).Run(context.Background(), table, nil)
	require.ErrorContains(t, err, "prooflink")
}

func TestRunnerHonorsCanceledContext(t *testing.T) {
	t.Parallel()

	table, err := ReadTable(strings.NewReader("prooflink\nhttps://p/a\n"))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scraper := &fakeScraper{}
	_, err = NewRunner(scraper, nil, fixedClock, &seqIDs{}, Columns{}, nil).Run(ctx, table, nil)
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, scraper.calls)
}
