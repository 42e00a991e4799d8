package streamplayer

import (
	"testing"

	"github.com/drgolem/musictools/pkg/settings"
	"github.com/drgolem/musictools/pkg/timebase"
)

// fakeClock is a deterministic refclock.RefClock for sync-controller tests.
type fakeClock struct {
	now            int64
	speed          float64
	refreshPeriod  int64
	hasRefresh     bool
	maxAdjustOK    bool
	lastDiscon     int64
	disconCalls    int
	lastMaxAdjust  float64
}

func newFakeClock() *fakeClock {
	return &fakeClock{speed: 1.0, maxAdjustOK: true}
}

func (c *fakeClock) Now() int64             { return c.now }
func (c *fakeClock) Discontinuity(t int64)  { c.lastDiscon = t; c.disconCalls++; c.now = t }
func (c *fakeClock) Speed() float64         { return c.speed }
func (c *fakeClock) RefreshPeriod() (int64, bool) {
	return c.refreshPeriod, c.hasRefresh
}
func (c *fakeClock) SetMaxSpeedAdjust(maxAdjust float64) bool {
	c.lastMaxAdjust = maxAdjust
	return c.maxAdjustOK
}

func TestSetModeForcesSkipDupUnderPassthrough(t *testing.T) {
	c := newSyncController(newFakeClock(), settings.SyncResample, 1.0)
	got := c.setMode(settings.SyncResample, true)
	if got != settings.SyncSkipDup {
		t.Fatalf("setMode(resample, passthrough=true) = %v, want SkipDup", got)
	}
}

func TestSetModeFallsBackToDisconWithoutSpeedAdjust(t *testing.T) {
	clock := newFakeClock()
	clock.maxAdjustOK = false
	c := newSyncController(clock, settings.SyncResample, 1.0)

	got := c.setMode(settings.SyncResample, false)
	if got != settings.SyncDiscon {
		t.Fatalf("setMode with no speed-adjust consumer = %v, want Discon", got)
	}
}

func TestSetModeKeepsResampleWhenSupported(t *testing.T) {
	c := newSyncController(newFakeClock(), settings.SyncResample, 1.0)
	got := c.setMode(settings.SyncResample, false)
	if got != settings.SyncResample {
		t.Fatalf("setMode = %v, want Resample", got)
	}
}

func TestHandleErrorCoarseDiscontinuityOnLargeDrift(t *testing.T) {
	clock := newFakeClock()
	clock.now = 0
	c := newSyncController(clock, settings.SyncDiscon, 1.0)

	// playingPts far ahead of the clock: error exceeds the 100ms threshold.
	playingPts := int64(500 * timebase.Base / 1000)
	c.handleError(playingPts, false, timebase.Base/50)

	if clock.disconCalls != 1 {
		t.Fatalf("disconCalls = %d, want 1 coarse resync", clock.disconCalls)
	}
	if c.window.samples != 0 {
		t.Fatalf("window not reset after coarse discontinuity")
	}
}

func TestHandleErrorAccumulatesUntilWindowReady(t *testing.T) {
	clock := newFakeClock()
	c := newSyncController(clock, settings.SyncDiscon, 1.0)

	frameDur := timebase.Base / 10 // 100ms frames
	// Small steady error (20ms) well under the coarse-discontinuity threshold.
	smallErr := int64(20 * timebase.Base / 1000)
	clock.now = 0

	for i := 0; i < 19; i++ { // 1.9s of frames, window closes at 2s
		c.handleError(clock.now+smallErr, false, frameDur)
	}
	if c.window.ready() {
		t.Fatalf("window reported ready before covering 2s of audio")
	}
}

func TestHandleErrorAppliesResampleOnceWindowFull(t *testing.T) {
	clock := newFakeClock()
	c := newSyncController(clock, settings.SyncResample, 1.0)

	frameDur := timebase.Base / 10
	steadyErr := int64(20 * timebase.Base / 1000)

	var lastErr int64
	for i := 0; i < 21; i++ {
		lastErr = c.handleError(clock.now+steadyErr, false, frameDur)
	}
	if c.resampleRate == 1.0 {
		t.Fatalf("resampleRate unchanged, want adjustment applied once window filled")
	}
	_ = lastErr
}

func TestSkipDupWritesOnceWhenBehindThenAlternatesToDrop(t *testing.T) {
	c := newSyncController(newFakeClock(), settings.SyncSkipDup, 1.0)
	frameDur := int64(20 * timebase.Base / 1000) // 20ms frame
	c.error = -int64(50 * timebase.Base / 1000)  // well behind

	first := c.skipDupDecision(frameDur)
	if first != actionWriteOnce {
		t.Fatalf("first decision = %v, want actionWriteOnce (latch flips on)", first)
	}
	second := c.skipDupDecision(frameDur)
	if second != actionDrop {
		t.Fatalf("second decision = %v, want actionDrop (alternation)", second)
	}
}

func TestSkipDupWritesTwiceWhenAhead(t *testing.T) {
	c := newSyncController(newFakeClock(), settings.SyncSkipDup, 1.0)
	frameDur := int64(20 * timebase.Base / 1000)
	c.error = int64(50 * timebase.Base / 1000)

	got := c.skipDupDecision(frameDur)
	if got != actionWriteTwice {
		t.Fatalf("decision = %v, want actionWriteTwice", got)
	}
}

func TestSkipDupWritesOnceWithinTolerance(t *testing.T) {
	c := newSyncController(newFakeClock(), settings.SyncSkipDup, 1.0)
	frameDur := int64(20 * timebase.Base / 1000)
	c.error = int64(5 * timebase.Base / 1000)

	got := c.skipDupDecision(frameDur)
	if got != actionWriteOnce {
		t.Fatalf("decision = %v, want actionWriteOnce", got)
	}
}
