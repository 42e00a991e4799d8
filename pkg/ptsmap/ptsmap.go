// Package ptsmap recovers presentation timestamps for decoded audio bytes
// whose codec doesn't carry its own per-frame pts. It mirrors the
// teacher's CPTSInputQueue: an insertion-ordered list of (byteCount, pts)
// entries covering the most recently submitted packets.
package ptsmap

import (
	"sync"

	"github.com/drgolem/musictools/pkg/timebase"
)

type entry struct {
	byteCount int64
	pts       int64
}

// PtsMap maps decoded-byte offsets back to the presentation timestamp of
// the input packet they came from.
//
// Invariant: the sum of byteCount across all entries is always at least
// the number of decoded bytes still in-flight inside the codec, so a
// Get() for any offset the codec could still report is always resolvable.
type PtsMap struct {
	mu   sync.Mutex
	list []entry // entries[0] is the most recently Added (front)
}

// New returns an empty PtsMap.
func New() *PtsMap {
	return &PtsMap{}
}

// Add prepends a new (byteCount, pts) entry, representing the most
// recently submitted packet.
func (m *PtsMap) Add(byteCount int64, pts int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.list = append([]entry{{byteCount: byteCount, pts: pts}}, m.list...)
}

// Flush discards all entries, used on seek/flush/reset (I4).
func (m *PtsMap) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.list = nil
}

// Get walks the list from the front, subtracting byteCount from offset
// until offset falls inside an entry, and returns that entry's pts. If
// consume is true, all entries strictly older than the hit are discarded
// and the hit itself is kept whole — I4: a later Get never
// returns an older entry than one already consumed.
//
// Returns timebase.NoPTS if offset isn't covered by any entry.
func (m *PtsMap) Get(offset int64, consume bool) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	remaining := offset
	for i, e := range m.list {
		if remaining <= e.byteCount {
			pts := e.pts
			if consume {
				m.list = m.list[:i+1]
			}
			return pts
		}
		remaining -= e.byteCount
	}
	return timebase.NoPTS
}

// Len reports the number of tracked entries, for tests and diagnostics.
func (m *PtsMap) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.list)
}
