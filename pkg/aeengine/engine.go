// Package aeengine is the process-wide registry of the two audio output
// engines, adapted from the teacher's single-sink audioplayer.Player/
// internal/fileplayer.FilePlayer device-open logic and grounded on
// AEFactory's two-engine (AE/AE2) bookkeeping.
package aeengine

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/drgolem/musictools/pkg/aesink"
)

// Slot identifies which of the two output engines a call targets.
type Slot int

const (
	Primary Slot = iota
	Secondary
)

// ErrEngineAbsent names the condition of a slot whose device can't be
// opened. Nothing in this package returns it: CanInit reports a bool, and
// MakeStream/MakeSound degrade to a null handle instead (spec's
// "secondary-slot failure" policy).
var ErrEngineAbsent = errors.New("aeengine: engine not available")

// Engine is one output slot: a device index plus the currently open
// sinks it owns.
type Engine struct {
	slot        Slot
	deviceIndex int
	isSecondary bool

	mu    sync.Mutex
	sinks map[*aesink.LocalSink]struct{}

	volume atomicFloat
	mute   bool
}

func newEngine(slot Slot, deviceIndex int) *Engine {
	e := &Engine{slot: slot, deviceIndex: deviceIndex, isSecondary: slot == Secondary, sinks: make(map[*aesink.LocalSink]struct{})}
	e.volume.Store(1.0)
	return e
}

// CanInit reports whether this slot's device is usable. No probe stream is
// opened: PortAudio enumerates devices at process start, so CanInit only
// checks that the device index is in [0, deviceCount).
func (e *Engine) CanInit(deviceCount int) bool {
	return e.deviceIndex >= 0 && e.deviceIndex < deviceCount
}

// MakeStream opens a new sink in the given format, tracking it for
// volume/mute fan-out. Returns nil if the device rejects the format.
func (e *Engine) MakeStream(format aesink.Format, framesPerBuffer int, bufferBytes uint64) *aesink.LocalSink {
	sink, err := aesink.NewLocalSink(e.deviceIndex, framesPerBuffer, bufferBytes, format)
	if err != nil {
		slog.Warn("aeengine: make stream failed", "slot", e.slot, "error", err)
		return nil
	}
	sink.SetVolume(e.currentVolume())

	e.mu.Lock()
	e.sinks[sink] = struct{}{}
	e.mu.Unlock()
	return sink
}

// FreeStream closes a sink previously returned by MakeStream and forgets it.
func (e *Engine) FreeStream(sink *aesink.LocalSink) error {
	e.mu.Lock()
	delete(e.sinks, sink)
	e.mu.Unlock()
	return sink.Close()
}

func (e *Engine) currentVolume() float64 {
	if e.mute {
		return 0
	}
	return e.volume.Load()
}

func (e *Engine) setVolume(vol float64, mute bool) {
	e.mu.Lock()
	e.volume.Store(vol)
	e.mute = mute
	sinks := make([]*aesink.LocalSink, 0, len(e.sinks))
	for s := range e.sinks {
		sinks = append(sinks, s)
	}
	e.mu.Unlock()

	applied := e.currentVolume()
	for _, s := range sinks {
		s.SetVolume(applied)
	}
}

// atomicFloat is a tiny float64 box guarded by its own mutex; the volume
// fan-out in this package only ever happens from settings-change calls,
// not a real-time audio thread, so a plain mutex (unlike aesink's atomic
// bit-store) is in keeping with its call frequency.
type atomicFloat struct {
	mu  sync.Mutex
	val float64
}

func (f *atomicFloat) Store(v float64) {
	f.mu.Lock()
	f.val = v
	f.mu.Unlock()
}

func (f *atomicFloat) Load() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.val
}
