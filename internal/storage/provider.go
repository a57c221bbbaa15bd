// Package storage defines where scraped profiles are persisted.
package storage

import (
	"context"
	"time"
)

// ProfileRecord is one successfully scraped profile.
type ProfileRecord struct {
	ID        string
	RunID     string
	URL       string
	FirstName string
	LastName  string
	Location  string
	Proxy     string
	Attempts  int
	ScrapedAt time.Time
}

// ProfileStore persists scraped profiles.
type ProfileStore interface {
	SaveProfile(ctx context.Context, record ProfileRecord) error
}

// NoOpStore discards every record. It is used when no database is configured.
type NoOpStore struct{}

// SaveProfile does nothing and always returns nil.
func (NoOpStore) SaveProfile(context.Context, ProfileRecord) error {
	return nil
}
