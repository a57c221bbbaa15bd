package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/profile-scraper/internal/storage"
)

func TestProfileStoreSaveAndList(t *testing.T) {
	t.Parallel()

	s := NewProfileStore()
	ctx := context.Background()
	require.NoError(t, s.SaveProfile(ctx, storage.ProfileRecord{RunID: "a", URL: "https://x/1"}))
	require.NoError(t, s.SaveProfile(ctx, storage.ProfileRecord{RunID: "b", URL: "https://x/2"}))
	require.Error(t, s.SaveProfile(ctx, storage.ProfileRecord{RunID: "b"}))

	require.Len(t, s.List(""), 2)
	runA := s.List("a")
	require.Len(t, runA, 1)
	require.Equal(t, "https://x/1", runA[0].URL)

	runA[0].URL = "mutated"
	require.Equal(t, "https://x/1", s.List("a")[0].URL)
}

func TestProfileStoreConcurrentSaves(t *testing.T) {
	t.Parallel()

	s := NewProfileStore()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.SaveProfile(context.Background(), storage.ProfileRecord{URL: "https://x"})
		}()
	}
	wg.Wait()
	require.Len(t, s.List(""), 20)
}
