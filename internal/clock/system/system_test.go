package system

import (
	"testing"
	"time"
)

func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	if got.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", got.Location())
	}
	if got.Before(before) || got.After(after) {
		t.Fatalf("expected %v to be between %v and %v", got, before, after)
	}
}

func TestFixedClockIsFrozenInUTC(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))
	clk := NewFixed(at)

	first := clk.Now()
	second := clk.Now()
	if !first.Equal(second) {
		t.Fatalf("expected frozen clock, got %v then %v", first, second)
	}
	if first.Location() != time.UTC {
		t.Fatalf("expected UTC location, got %v", first.Location())
	}
	if !first.Equal(at) {
		t.Fatalf("expected %v, got %v", at, first)
	}
}
