package proxy

import "errors"

// ErrFeedUnavailable indicates the candidate feed could not be downloaded or
// read. Sources recover from it locally by returning no candidates.
var ErrFeedUnavailable = errors.New("proxy feed unavailable")

// ErrNoCandidates indicates the feed returned no usable candidates, so the
// pool could not be initialized.
var ErrNoCandidates = errors.New("no proxy candidates")

// ErrNoWorkingProxies indicates every candidate failed validation.
var ErrNoWorkingProxies = errors.New("no working proxies")

// ErrExhausted marks the end of a rotation: re-initialization produced no
// working proxies. Consumers treat it as end-of-sequence rather than a crash.
var ErrExhausted = errors.New("proxy pool exhausted")
