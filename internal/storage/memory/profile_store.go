// Package memory keeps scraped profiles in process memory for development and tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/JakeFAU/profile-scraper/internal/storage"
)

// ProfileStore is a concurrency-safe in-memory storage.ProfileStore.
type ProfileStore struct {
	mu      sync.RWMutex
	records []storage.ProfileRecord
}

// NewProfileStore constructs an empty ProfileStore.
func NewProfileStore() *ProfileStore {
	return &ProfileStore{}
}

// SaveProfile appends the record.
func (s *ProfileStore) SaveProfile(_ context.Context, record storage.ProfileRecord) error {
	if record.URL == "" {
		return errors.New("record url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

// List returns a copy of every record, optionally filtered by run.
func (s *ProfileStore) List(runID string) []storage.ProfileRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]storage.ProfileRecord, 0, len(s.records))
	for _, rec := range s.records {
		if runID == "" || rec.RunID == runID {
			out = append(out, rec)
		}
	}
	return out
}
