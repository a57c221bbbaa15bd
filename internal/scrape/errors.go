package scrape

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted reports that rotation ran out of working proxies before any
	// attempt succeeded. It also wraps proxy.ErrExhausted.
	ErrExhausted = errors.New("scrape exhausted")
	// ErrAttemptLimit reports that the configured attempt cap was reached.
	ErrAttemptLimit = errors.New("scrape attempt limit reached")
	// ErrInvalidURL rejects targets that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid target url")
	// ErrRateLimited reports that the per-host limiter could not grant a
	// slot before the caller's deadline. No proxy is consumed.
	ErrRateLimited = errors.New("scrape rate limited")
)

// Kind classifies an extraction failure.
type Kind string

// Extraction failure kinds.
const (
	KindTimeout          Kind = "timeout"
	KindNavigation       Kind = "navigation"
	KindSelectorNotFound Kind = "selector_not_found"
	KindEmptyField       Kind = "empty_field"
	KindLogin            Kind = "login"
	KindBrowser          Kind = "browser"
)

// Fatal reports whether no other proxy could fix a failure of this kind.
func (k Kind) Fatal() bool {
	return k == KindBrowser
}

// ExtractionError is returned by a Fetcher for a failed attempt.
type ExtractionError struct {
	Kind Kind
	Err  error
}

// NewExtractionError wraps err with the given kind.
func NewExtractionError(kind Kind, err error) *ExtractionError {
	return &ExtractionError{Kind: kind, Err: err}
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extraction failed: %s", e.Kind)
	}
	return fmt.Sprintf("extraction failed (%s): %v", e.Kind, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// KindOf returns the failure kind of err. Errors that are not ExtractionErrors
// are treated as navigation failures.
func KindOf(err error) Kind {
	var extractionErr *ExtractionError
	if errors.As(err, &extractionErr) {
		return extractionErr.Kind
	}
	return KindNavigation
}
