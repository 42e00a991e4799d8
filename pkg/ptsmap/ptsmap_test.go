package ptsmap

import (
	"testing"

	"github.com/drgolem/musictools/pkg/timebase"
)

func TestGetUnknownOffsetReturnsNoPTS(t *testing.T) {
	m := New()
	if got := m.Get(10, false); got != timebase.NoPTS {
		t.Fatalf("Get on empty map = %d, want NoPTS", got)
	}
}

func TestGetResolvesOffsetWithinEntry(t *testing.T) {
	m := New()
	m.Add(200, 2000) // oldest
	m.Add(100, 1000) // newest

	if got := m.Get(50, false); got != 1000 {
		t.Fatalf("Get(50) = %d, want 1000", got)
	}
	if got := m.Get(150, false); got != 2000 {
		t.Fatalf("Get(150) = %d, want 2000", got)
	}
}

func TestGetBeyondAllEntriesReturnsNoPTS(t *testing.T) {
	m := New()
	m.Add(100, 1000)
	if got := m.Get(1000, false); got != timebase.NoPTS {
		t.Fatalf("Get beyond range = %d, want NoPTS", got)
	}
}

// A later Get must never return a pts older than one already consumed,
// even as new entries are added in front (I4 in the original system).
func TestConsumeNeverReturnsOlderPTSThanAlreadyConsumed(t *testing.T) {
	m := New()
	m.Add(100, 2000)
	m.Add(100, 1000)

	got := m.Get(150, true) // resolves into the older (2000) entry, consumes it
	if got != 2000 {
		t.Fatalf("Get(150, consume) = %d, want 2000", got)
	}
	if m.Len() != 2 {
		t.Fatalf("Len after consume = %d, want 2 (truncated at hit)", m.Len())
	}

	m.Add(50, 3000) // newest packet submitted after consumption
	if got := m.Get(10, false); got != 3000 {
		t.Fatalf("Get(10) after new Add = %d, want 3000", got)
	}
}

func TestFlushDiscardsAllEntries(t *testing.T) {
	m := New()
	m.Add(100, 1000)
	m.Add(100, 2000)
	m.Flush()

	if m.Len() != 0 {
		t.Fatalf("Len after Flush = %d, want 0", m.Len())
	}
	if got := m.Get(0, false); got != timebase.NoPTS {
		t.Fatalf("Get after Flush = %d, want NoPTS", got)
	}
}

func TestAddOrdersNewestFirst(t *testing.T) {
	m := New()
	m.Add(10, 100)
	m.Add(10, 200)
	m.Add(10, 300)

	if got := m.Get(5, false); got != 300 {
		t.Fatalf("Get(5) = %d, want 300 (most recently added)", got)
	}
	if got := m.Get(15, false); got != 200 {
		t.Fatalf("Get(15) = %d, want 200", got)
	}
	if got := m.Get(25, false); got != 100 {
		t.Fatalf("Get(25) = %d, want 100", got)
	}
}
