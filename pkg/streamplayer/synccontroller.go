package streamplayer

import (
	"github.com/drgolem/musictools/pkg/refclock"
	"github.com/drgolem/musictools/pkg/settings"
	"github.com/drgolem/musictools/pkg/timebase"
)

// Proportional-integral constants for RESAMPLE mode, grounded on the
// original player's HandleSyncError tuning.
const (
	proportionalGain = 20.0
	proportionalRef  = 0.01
	proportionalMin  = 2.0
	proportionalMax  = 40.0
	integralGain     = 200.0
)

const discontinuityThreshold = 100 * timebase.Base / 1000 // 100ms in ticks
const disconFallbackLimit = 10 * timebase.Base / 1000     // 10ms in ticks
const errorWindowSize = 2 * timebase.Base                 // 2 seconds of ticks

// errorWindow accumulates one error sample per produced frame until the
// covered audio duration reaches a 2-second span, then yields the mean.
type errorWindow struct {
	sum      int64
	samples  int64
	duration int64
}

func (w *errorWindow) add(errTicks, durTicks int64) {
	w.sum += errTicks
	w.samples++
	w.duration += durTicks
}

func (w *errorWindow) ready() bool {
	return w.duration >= errorWindowSize
}

// drain returns the window's mean error (ticks) and resets it.
func (w *errorWindow) drain() int64 {
	if w.samples == 0 {
		return 0
	}
	mean := w.sum / w.samples
	w.sum, w.samples, w.duration = 0, 0, 0
	return mean
}

// syncController tracks audio/clock drift and decides how each frame
// should be emitted to the sinks, grounded on HandleSyncError/
// SetSyncType/OutputPacket.
type syncController struct {
	mode         settings.SyncType
	clock        refclock.RefClock
	maxAdjust    float64

	window       errorWindow
	error        int64 // ticks, smoothed error used by SKIPDUP/RESAMPLE this period
	integral     float64
	resampleRate float64

	prevSkipped bool
}

func newSyncController(clock refclock.RefClock, mode settings.SyncType, maxAdjust float64) *syncController {
	return &syncController{clock: clock, mode: mode, maxAdjust: maxAdjust, resampleRate: 1.0}
}

// setMode applies SetSyncType's passthrough override (RESAMPLE forced to
// SKIPDUP for passthrough frames) and falls back to DISCON if the clock
// can't accept a max-speed-adjust (no video renderer attached).
func (c *syncController) setMode(requested settings.SyncType, passthrough bool) settings.SyncType {
	mode := requested
	if passthrough && mode == settings.SyncResample {
		mode = settings.SyncSkipDup
	}

	adjust := 0.0
	if mode == settings.SyncResample {
		adjust = c.maxAdjust
	}
	if !c.clock.SetMaxSpeedAdjust(adjust) {
		mode = settings.SyncDiscon
	}
	c.mode = mode
	return mode
}

// handleError runs HandleSyncError's per-frame accounting: compute the
// instantaneous error against the clock, coarse-correct on large drift,
// else accumulate into the rolling window and, once full, apply the
// selected mode's correction. Returns the error (ticks) OutputPacket's
// SKIPDUP branch should consult this period.
func (c *syncController) handleError(playingPts int64, forceSync bool, frameDuration int64) int64 {
	clock := c.clock.Now()
	err := playingPts - clock

	if abs64(err) > discontinuityThreshold || forceSync {
		c.clock.Discontinuity(clock + err)
		c.window = errorWindow{}
		c.error = 0
		return c.error
	}

	c.window.add(err, frameDuration)
	if !c.window.ready() {
		return c.error
	}

	mean := c.window.drain()
	c.error = mean

	switch c.mode {
	case settings.SyncDiscon:
		c.applyDiscon(clock, mean)
	case settings.SyncResample:
		c.applyResample(mean)
	}
	return c.error
}

func (c *syncController) applyDiscon(clock, meanErr int64) {
	limit := int64(disconFallbackLimit)
	correctedErr := meanErr

	if period, ok := c.clock.RefreshPeriod(); ok && period > 0 {
		limit = period
		// Quantize toward zero to a multiple of the refresh period.
		correctedErr = (meanErr / limit) * limit
	}

	if abs64(correctedErr) > limit-1 {
		c.clock.Discontinuity(clock + correctedErr)
	}
}

func (c *syncController) applyResample(meanErr int64) {
	errSeconds := float64(meanErr) / float64(timebase.Base)

	if abs64(meanErr) > timebase.Base {
		c.integral = 0
	} else if abs64(meanErr) > 5*timebase.Base/1000 {
		c.integral += errSeconds / integralGain
	}

	proportional := 0.0
	if errSeconds != 0 {
		div := proportionalGain * (proportionalRef / abs(errSeconds))
		if div < proportionalMin {
			div = proportionalMin
		} else if div > proportionalMax {
			div = proportionalMax
		}
		proportional = errSeconds / div
	}

	c.resampleRate = 1.0/c.clock.Speed() + proportional + c.integral
}

// skipDupDecision is OutputPacket's SYNC_SKIPDUP branch: given the
// current error and a frame's duration, decide whether to drop, write
// twice, or write once. A drop credits the frame's duration to c.error and
// a double write debits it.
type skipDupAction int

const (
	actionWriteOnce skipDupAction = iota
	actionDrop
	actionWriteTwice
)

func (c *syncController) skipDupDecision(frameDuration int64) skipDupAction {
	limit := max64(10*timebase.Base/1000, frameDuration*2/3)

	if c.error < -limit {
		c.prevSkipped = !c.prevSkipped
		if c.prevSkipped {
			return actionWriteOnce
		}
		c.error += frameDuration
		return actionDrop
	}
	if c.error > limit {
		c.error -= frameDuration
		return actionWriteTwice
	}
	return actionWriteOnce
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
