package browser

import (
	"context"
	"errors"

	"github.com/JakeFAU/profile-scraper/internal/scrape"
)

// ErrUnavailable is returned by Noop for every request.
var ErrUnavailable = errors.New("browser not configured")

// Noop implements scrape.Fetcher when no browser is available. Its failures
// are fatal so rotation stops immediately.
type Noop struct{}

// NewNoop creates a new Noop fetcher.
func NewNoop() *Noop {
	return &Noop{}
}

// FetchProfile always fails with a browser-kind extraction error.
func (Noop) FetchProfile(context.Context, scrape.Request) (scrape.Profile, error) {
	return scrape.Profile{}, scrape.NewExtractionError(scrape.KindBrowser, ErrUnavailable)
}
