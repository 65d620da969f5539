package system

import (
	"testing"
	"time"
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
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

func TestFixedClock(t *testing.T) {
	t.Parallel()

	zurich := time.FixedZone("CET", 3600)
	start := time.Date(2024, 1, 2, 11, 0, 0, 0, zurich)
	clk := NewFixed(start)

	if got := clk.Now(); !got.Equal(start) || got.Location() != time.UTC {
		t.Fatalf("expected %v in UTC, got %v", start, got)
	}
	clk.Advance(5 * time.Minute)
	if got := clk.Now(); !got.Equal(start.Add(5 * time.Minute)) {
		t.Fatalf("expected clock to advance, got %v", got)
	}
}
