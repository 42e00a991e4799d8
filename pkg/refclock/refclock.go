// Package refclock models the external wall clock the streaming audio
// path locks its primary sink to (video's reference clock in the source
// system). The audio core only ever consumes this contract; nothing here
// renders video.
package refclock

import (
	"sync"
	"time"

	"github.com/drgolem/musictools/pkg/timebase"
)

// RefClock is the external clock the sync controller measures error
// against and occasionally corrects via Discontinuity.
type RefClock interface {
	// Now returns the clock's current position, in timebase ticks.
	Now() int64
	// Discontinuity forces the clock to a new position, used for coarse
	// resync (a hard jump) and for the periodic DISCON correction.
	Discontinuity(ticks int64)
	// Speed returns the current playback speed multiplier (1.0 normal).
	Speed() float64
	// RefreshPeriod returns the display's refresh period in ticks and
	// true, or (0, false) when the clock can't expose one (e.g. no video
	// is being rendered), matching spec.md's "if RefClock exposes a
	// refresh period T".
	RefreshPeriod() (int64, bool)
	// SetMaxSpeedAdjust tells the clock how far RESAMPLE sync is allowed
	// to bend playback speed; 0 disables resample-driven adjustment.
	// Returns false when no consumer of speed adjustment exists (e.g. no
	// video renderer attached), in which case callers must fall back to
	// DISCON.
	SetMaxSpeedAdjust(maxAdjust float64) bool
}

// WallClock is a free-running RefClock anchored to the monotonic clock,
// for use when there is no external video pipeline to lock to. It always
// reports its refresh period as absent, forcing the sync controller's
// DISCON fallback limit.
type WallClock struct {
	mu      sync.Mutex
	started time.Time
	offset  int64 // ticks added on top of elapsed wall time
	speed   float64
}

// NewWallClock returns a WallClock started at ticks 0.
func NewWallClock() *WallClock {
	return &WallClock{started: time.Now(), speed: 1.0}
}

func (c *WallClock) Now() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	elapsed := time.Since(c.started)
	return int64(float64(timebase.FromDuration(elapsed))*c.speed) + c.offset
}

func (c *WallClock) Discontinuity(ticks int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = time.Now()
	c.offset = ticks
}

func (c *WallClock) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// SetSpeed adjusts the playback speed multiplier (used for FF/RW).
func (c *WallClock) SetSpeed(speed float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// re-anchor so the speed change takes effect from now, not from start
	elapsed := time.Since(c.started)
	c.offset += int64(float64(timebase.FromDuration(elapsed)) * c.speed)
	c.started = time.Now()
	c.speed = speed
}

func (c *WallClock) RefreshPeriod() (int64, bool) {
	return 0, false
}

func (c *WallClock) SetMaxSpeedAdjust(maxAdjust float64) bool {
	// No video renderer is attached in the wall-clock case: resample-based
	// speed bending has nothing to serve, so report unavailable.
	return false
}
