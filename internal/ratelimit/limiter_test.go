package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterWaitSpacesAttempts(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.example.com/in/a"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://WWW.example.com/in/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterDisabled(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 50 {
		require.NoError(t, l.Wait(ctx, "https://a.example/"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiterWaitCanceled(t *testing.T) {
	t.Parallel()

	l := New(Config{QPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://a.example/"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, l.Wait(ctx, "https://a.example/"), context.Canceled)
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "www.linkedin.com", hostOf("https://WWW.LinkedIn.com/in/x"))
	require.Equal(t, "unknown", hostOf("not a url"))
	require.Equal(t, "unknown", hostOf("://"))
}
