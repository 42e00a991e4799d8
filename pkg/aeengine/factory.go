package aeengine

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/drgolem/musictools/pkg/aesink"
	"github.com/drgolem/musictools/pkg/decoders"
	"github.com/drgolem/musictools/pkg/settings"
)

// Factory is the process-wide registry of the two output engines. Zero
// value is unusable; use NewFactory.
type Factory struct {
	mu          sync.Mutex
	primary     *Engine
	secondary   *Engine
	deviceCount int

	sounds map[string][]byte // cached decoded PCM, keyed by file path
}

// NewFactory returns an unloaded factory. deviceCount is the number of
// output devices PortAudio enumerated at process start.
func NewFactory(deviceCount int) *Factory {
	return &Factory{deviceCount: deviceCount, sounds: make(map[string][]byte)}
}

// Load instantiates engine 0 unconditionally, and engine 1 only if
// dual-audio output is enabled. A failed CanInit on either engine
// releases only that engine; engine 1 failing never fails Load.
func (f *Factory) Load(primaryDevice int, dualAudioEnabled bool, secondaryDevice int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.primary != nil {
		// Already loaded; UnloadEngine must run before Load can succeed again.
		return false
	}

	primary := newEngine(Primary, primaryDevice)
	if !primary.CanInit(f.deviceCount) {
		slog.Warn("aeengine: primary device unavailable", "device", primaryDevice)
		return false
	}
	f.primary = primary

	if dualAudioEnabled {
		secondary := newEngine(Secondary, secondaryDevice)
		if secondary.CanInit(f.deviceCount) {
			f.secondary = secondary
		} else {
			slog.Warn("aeengine: secondary device unavailable, continuing primary-only", "device", secondaryDevice)
		}
	}
	return true
}

// UnloadEngine releases both engines; the factory can be re-Loaded after.
func (f *Factory) UnloadEngine() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.primary = nil
	f.secondary = nil
}

// engine returns the Engine for the given slot, or nil if that slot isn't
// loaded. Callers must treat nil as "feature unavailable for this slot".
func (f *Factory) engine(slot Slot) *Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	if slot == Secondary {
		return f.secondary
	}
	return f.primary
}

// MakeStream opens a sink on the requested slot. Returns nil if that slot
// isn't loaded or rejects the format — callers continue with whichever
// slot succeeded.
func (f *Factory) MakeStream(slot Slot, format aesink.Format, framesPerBuffer int, bufferBytes uint64) *aesink.LocalSink {
	e := f.engine(slot)
	if e == nil {
		return nil
	}
	return e.MakeStream(format, framesPerBuffer, bufferBytes)
}

// FreeStream closes and forgets a sink previously returned by MakeStream.
func (f *Factory) FreeStream(slot Slot, sink *aesink.LocalSink) error {
	e := f.engine(slot)
	if e == nil || sink == nil {
		return nil
	}
	return e.FreeStream(sink)
}

// MakeSound decodes file into PCM (cached by path) and fires it through a
// throwaway sink on the requested slot. Returns nil if the slot isn't
// loaded, the decoder rejects the file, or the format probe fails — the
// caller must treat this as "no sound this time", not an error.
func (f *Factory) MakeSound(slot Slot, file string, format aesink.Format) *aesink.LocalSink {
	e := f.engine(slot)
	if e == nil {
		return nil
	}

	pcm, err := f.decodeSound(file)
	if err != nil {
		slog.Warn("aeengine: make sound failed", "file", file, "error", err)
		return nil
	}

	sink := e.MakeStream(format, 1024, uint64(len(pcm)))
	if sink == nil {
		return nil
	}
	sink.AddData(pcm)
	sink.Drain()
	return sink
}

func (f *Factory) decodeSound(file string) ([]byte, error) {
	f.mu.Lock()
	cached, ok := f.sounds[file]
	f.mu.Unlock()
	if ok {
		return cached, nil
	}

	if _, err := os.Stat(file); err != nil {
		return nil, fmt.Errorf("aeengine: stat sound %s: %w", file, err)
	}
	dec, err := decoders.NewDecoder(file)
	if err != nil {
		return nil, fmt.Errorf("aeengine: open sound %s: %w", file, err)
	}
	defer dec.Close()

	_, channels, bitsPerSample := dec.GetFormat()
	bytesPerSample := channels * bitsPerSample / 8
	if bytesPerSample == 0 {
		return nil, fmt.Errorf("aeengine: invalid format for %s", file)
	}

	const samplesPerChunk = 4096
	buf := make([]byte, 0, samplesPerChunk*bytesPerSample)
	tmp := make([]byte, samplesPerChunk*bytesPerSample)
	for {
		n, err := dec.DecodeSamples(samplesPerChunk, tmp)
		if n > 0 {
			buf = append(buf, tmp[:n*bytesPerSample]...)
		}
		if err != nil || n == 0 {
			break
		}
	}

	f.mu.Lock()
	f.sounds[file] = buf
	f.mu.Unlock()
	return buf, nil
}

// SetMute applies to both engines.
func (f *Factory) SetMute(mute bool) {
	for _, e := range f.loadedEngines() {
		e.setVolume(e.volume.Load(), mute)
	}
}

// SetVolume applies to both engines.
func (f *Factory) SetVolume(vol float64) {
	for _, e := range f.loadedEngines() {
		e.setVolume(vol, e.mute)
	}
}

func (f *Factory) loadedEngines() []*Engine {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Engine
	if f.primary != nil {
		out = append(out, f.primary)
	}
	if f.secondary != nil {
		out = append(out, f.secondary)
	}
	return out
}

// SupportsRaw reports whether the given slot's output config allows
// passthrough for this format: per-codec passthrough setting enabled, the
// overall output config not pinned to "fixed", and the slot itself loaded.
func (f *Factory) SupportsRaw(slot Slot, codecEnabled bool, s settings.PassthroughSettings) bool {
	if f.engine(slot) == nil {
		return false
	}
	return s.PassthroughAllowed(codecEnabled)
}

// EnumerateDevices reports how many output devices are visible to the
// factory (PortAudio device count at process start).
func (f *Factory) EnumerateDevices() int {
	return f.deviceCount
}

// OnSettingsChange reads no keys from s and changes nothing. Volume/mute
// flow through SetVolume/SetMute directly from the host; slot-specific
// settings (passthrough, dual-audio toggle) take effect only through a new
// Load after UnloadEngine.
func (f *Factory) OnSettingsChange(s *settings.Settings) {
	_ = s
}
