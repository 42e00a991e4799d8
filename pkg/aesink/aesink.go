// Package aesink defines the AudioSink contract every audio output endpoint
// implements (the teacher's "IAEStream" equivalent, per spec.md §6) plus
// concrete sinks built on top of the teacher's portaudio binding and ring
// buffer.
package aesink

import "time"

// Format describes a sink's negotiated audio format. Two formats are
// format-compatible iff every field matches.
type Format struct {
	SampleRate        int
	EncodedSampleRate int
	Channels          int
	BitsPerSample     int
	IsPassthrough     bool
	CodecID           string
}

// BytesPerSample returns the byte width of one sample on one channel.
func (f Format) BytesPerSample() int {
	return f.BitsPerSample / 8
}

// BytesPerFrame returns the byte width of one multi-channel audio frame.
func (f Format) BytesPerFrame() int {
	return f.BytesPerSample() * f.Channels
}

// AudioSink is a single open output endpoint created by an AudioEngine. It
// consumes byte buffers of PCM or passthrough-encoded audio.
//
// Ownership: a sink is owned by the engine that created it; callers return
// it via the engine's FreeStream. No lock in the owning packages ever
// spans a call into a sink (sinks may block in a driver).
type AudioSink interface {
	// AddData pushes PCM/encoded bytes, returning how many were accepted.
	// Implementations never block past GetSpace()'s reported capacity.
	AddData(data []byte) int
	// GetSpace reports free capacity in bytes.
	GetSpace() int
	// GetDelay reports the estimated time until the most recently added
	// byte reaches the speaker.
	GetDelay() time.Duration
	// GetCacheTime reports how much audio is currently buffered in time.
	GetCacheTime() time.Duration
	// GetCacheTotal reports the sink's total buffering capacity in time.
	GetCacheTotal() time.Duration
	// IsBuffering reports whether the sink is still pre-buffering before
	// it will start producing audible output.
	IsBuffering() bool
	// IsDrained reports whether all buffered audio has finished playing.
	IsDrained() bool
	// Drain blocks (bounded) until all buffered audio has played out.
	Drain()
	// Flush discards all buffered audio immediately.
	Flush()
	Pause()
	Resume()
	SetVolume(vol float64)
	// FadeVolume linearly ramps volume from `from` to `to` over duration.
	FadeVolume(from, to float64, duration time.Duration)
	IsFading() bool
	SetReplayGain(gain float64)
	// SetResampleRatio sets the output/input rate multiplier used by
	// RESAMPLE sync; a no-op for sinks that can't resample.
	SetResampleRatio(ratio float64)
	// RegisterSlave arranges for slave to start the instant this sink
	// finishes draining, for sample-exact gapless handoff.
	RegisterSlave(slave AudioSink)
	// SetPlayingPts stamps the pts currently audible at the speaker.
	SetPlayingPts(ticks int64)
	// PlayingPts returns the most recently stamped playing pts.
	PlayingPts() int64
	// IsValidFormat reports whether this sink can continue accepting data
	// in the given format without being re-created.
	IsValidFormat(f Format) bool
	// Dumb reports whether this sink can't reliably report delay/cache
	// time, in which case dual-sink alignment logic must be suppressed.
	Dumb() bool
	Close() error
}
