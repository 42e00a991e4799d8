package aeengine

import (
	"time"

	"github.com/drgolem/musictools/pkg/aesink"
)

// Renderer wraps one Factory slot as the single sink StreamingAudioPlayer
// pushes a format's frames into, re-creating the underlying sink whenever
// the format changes. It owns no decode logic — it's the output half of
// the pipeline the teacher's FilePlayer inlined into one struct, split out
// here because the dual-sink player needs two of these side by side.
type Renderer struct {
	factory *Factory
	slot    Slot

	framesPerBuffer int
	bufferBytes     uint64

	sink   *aesink.LocalSink
	format aesink.Format
}

// NewRenderer returns a Renderer bound to one Factory slot. It owns no
// sink until the first EnsureFormat call negotiates a format.
func NewRenderer(factory *Factory, slot Slot, framesPerBuffer int, bufferBytes uint64) *Renderer {
	return &Renderer{factory: factory, slot: slot, framesPerBuffer: framesPerBuffer, bufferBytes: bufferBytes}
}

// EnsureFormat re-creates the sink if the current one can't accept format
// (IsValidFormat returns false), draining the old one first if it's
// playing. Returns false if the slot can't produce a sink for this format
// at all (device absent or format rejected).
func (r *Renderer) EnsureFormat(format aesink.Format) bool {
	if r.sink != nil && r.sink.IsValidFormat(format) {
		return true
	}
	if r.sink != nil {
		r.sink.Drain()
		r.factory.FreeStream(r.slot, r.sink)
		r.sink = nil
	}

	sink := r.factory.MakeStream(r.slot, format, r.framesPerBuffer, r.bufferBytes)
	if sink == nil {
		return false
	}
	r.sink = sink
	r.format = format
	return true
}

// Loaded reports whether this renderer currently owns a live sink.
func (r *Renderer) Loaded() bool {
	return r.sink != nil
}

// AddPackets pushes bytes to the current sink, returning the accepted
// count. Callers must have called EnsureFormat first.
func (r *Renderer) AddPackets(data []byte) int {
	if r.sink == nil {
		return 0
	}
	return r.sink.AddData(data)
}

func (r *Renderer) GetSpace() int {
	if r.sink == nil {
		return 0
	}
	return r.sink.GetSpace()
}

// IsBuffering reports whether the underlying sink is still pre-buffering.
// A renderer with no sink yet is considered buffering.
func (r *Renderer) IsBuffering() bool {
	if r.sink == nil {
		return true
	}
	return r.sink.IsBuffering()
}

// RegisterSlaveTo arranges for next to start the instant this renderer's
// sink finishes draining, for sample-exact gapless handoff.
func (r *Renderer) RegisterSlaveTo(next *Renderer) {
	if r.sink == nil || next == nil || next.sink == nil {
		return
	}
	r.sink.RegisterSlave(next.sink)
}

// SetVolume forwards to the underlying sink, a no-op if none is open yet.
func (r *Renderer) SetVolume(vol float64) {
	if r.sink != nil {
		r.sink.SetVolume(vol)
	}
}

// FadeVolume forwards to the underlying sink, a no-op if none is open yet.
func (r *Renderer) FadeVolume(from, to float64, duration time.Duration) {
	if r.sink != nil {
		r.sink.FadeVolume(from, to, duration)
	}
}

// IsFading forwards to the underlying sink; false if none is open.
func (r *Renderer) IsFading() bool {
	if r.sink == nil {
		return false
	}
	return r.sink.IsFading()
}

// IsDrained forwards to the underlying sink; true (nothing to drain) if
// none is open.
func (r *Renderer) IsDrained() bool {
	if r.sink == nil {
		return true
	}
	return r.sink.IsDrained()
}

// SetReplayGain forwards to the underlying sink, a no-op if none is open.
func (r *Renderer) SetReplayGain(gain float64) {
	if r.sink != nil {
		r.sink.SetReplayGain(gain)
	}
}

func (r *Renderer) GetDelay() time.Duration {
	if r.sink == nil {
		return 0
	}
	return r.sink.GetDelay()
}

func (r *Renderer) GetCacheTime() time.Duration {
	if r.sink == nil {
		return 0
	}
	return r.sink.GetCacheTime()
}

func (r *Renderer) Dumb() bool {
	if r.sink == nil {
		return true
	}
	return r.sink.Dumb()
}

func (r *Renderer) SetPlayingPts(ticks int64) {
	if r.sink != nil {
		r.sink.SetPlayingPts(ticks)
	}
}

func (r *Renderer) PlayingPts() int64 {
	if r.sink == nil {
		return -1
	}
	return r.sink.PlayingPts()
}

func (r *Renderer) SetResampleRatio(ratio float64) {
	if r.sink != nil {
		r.sink.SetResampleRatio(ratio)
	}
}

// Pause forwards to the underlying sink's Pause, a no-op if none is open.
// The sink stays open with its buffered data; Resume restarts it.
func (r *Renderer) Pause() {
	if r.sink != nil {
		r.sink.Pause()
	}
}

func (r *Renderer) Resume() {
	if r.sink != nil {
		r.sink.Resume()
	}
}

func (r *Renderer) Drain() {
	if r.sink != nil {
		r.sink.Drain()
	}
}

func (r *Renderer) Flush() {
	if r.sink != nil {
		r.sink.Flush()
	}
}

// Close releases the underlying sink, if any.
func (r *Renderer) Close() error {
	if r.sink == nil {
		return nil
	}
	err := r.factory.FreeStream(r.slot, r.sink)
	r.sink = nil
	return err
}
