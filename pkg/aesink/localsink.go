package aesink

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/musictools/pkg/ringbuffer"

	"github.com/drgolem/go-portaudio/portaudio"
)

// LocalSink is a PortAudio-backed AudioSink, adapted from the teacher's
// FilePlayer callback/ring-buffer design (internal/fileplayer.FilePlayer):
// the goroutine that calls AddData writes decoded bytes into a lock-free
// byte ring buffer, and PortAudio's own callback thread drains it. Unlike
// FilePlayer, data arrives via AddData (push) rather than pulling from a
// decoder, since callers here may be feeding either a streaming decode
// loop or a music-file stream.
type LocalSink struct {
	format Format
	stream *portaudio.PaStream
	ring   *ringbuffer.RingBuffer

	deviceIndex     int
	framesPerBuffer int

	volume     atomic.Uint64 // math.Float64bits
	replayGain atomic.Uint64

	fadeMu    sync.Mutex
	fading    atomic.Bool
	fadeFrom  float64
	fadeTo    float64
	fadeStart time.Time
	fadeDur   time.Duration

	paused  atomic.Bool
	closed  atomic.Bool
	drained atomic.Bool

	playingPts   atomic.Int64
	resampleRatio atomic.Uint64

	slaveMu sync.Mutex
	slave   AudioSink

	bufferingThreshold int // bytes; IsBuffering() true until this much is queued
	bytesWritten       atomic.Int64
	bytesPlayed        atomic.Int64
}

// NewLocalSink opens a paused PortAudio output stream for the given
// format. bufferCapacityBytes sizes the internal ring buffer (rounded up
// to a power of 2 by ringbuffer.New).
func NewLocalSink(deviceIndex int, framesPerBuffer int, bufferCapacityBytes uint64, format Format) (*LocalSink, error) {
	s := &LocalSink{
		format:             format,
		deviceIndex:        deviceIndex,
		framesPerBuffer:    framesPerBuffer,
		ring:               ringbuffer.New(bufferCapacityBytes),
		bufferingThreshold: framesPerBuffer * format.BytesPerFrame() * 2,
	}
	s.volume.Store(floatBits(1.0))
	s.resampleRatio.Store(floatBits(1.0))
	s.playingPts.Store(-1)
	s.paused.Store(true)

	if err := s.openStream(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LocalSink) openStream() error {
	var sampleFormat portaudio.PaSampleFormat
	switch s.format.BitsPerSample {
	case 16:
		sampleFormat = portaudio.SampleFmtInt16
	case 24:
		sampleFormat = portaudio.SampleFmtInt24
	case 32:
		sampleFormat = portaudio.SampleFmtInt32
	default:
		return fmt.Errorf("aesink: unsupported bit depth %d", s.format.BitsPerSample)
	}

	stream := &portaudio.PaStream{
		OutputParameters: &portaudio.PaStreamParameters{
			DeviceIndex:  s.deviceIndex,
			ChannelCount: s.format.Channels,
			SampleFormat: sampleFormat,
		},
		SampleRate: float64(s.format.SampleRate),
	}

	if err := stream.OpenCallback(s.framesPerBuffer, s.audioCallback); err != nil {
		return fmt.Errorf("aesink: open stream: %w", err)
	}
	s.stream = stream
	return nil
}

func (s *LocalSink) audioCallback(
	input, output []byte,
	frameCount uint,
	timeInfo *portaudio.StreamCallbackTimeInfo,
	statusFlags portaudio.StreamCallbackFlags,
) portaudio.StreamCallbackResult {
	bytesNeeded := int(frameCount) * s.format.BytesPerFrame()

	n, _ := s.ring.Read(output[:bytesNeeded])
	if n < bytesNeeded {
		clear(output[n:bytesNeeded])
	}
	s.applyVolume(output[:n])
	s.bytesPlayed.Add(int64(n))

	if s.drained.Load() && s.ring.AvailableRead() == 0 {
		s.fireSlave()
		return portaudio.Complete
	}
	return portaudio.Continue
}

func (s *LocalSink) applyVolume(buf []byte) {
	vol := s.currentVolume()
	if vol == 1.0 {
		return
	}
	scaleSamples(buf, s.format.BitsPerSample/8, vol)
}

func (s *LocalSink) currentVolume() float64 {
	base := floatFromBits(s.volume.Load())
	if !s.fading.Load() {
		return base
	}
	s.fadeMu.Lock()
	from, to, start, dur := s.fadeFrom, s.fadeTo, s.fadeStart, s.fadeDur
	s.fadeMu.Unlock()
	if dur <= 0 {
		return to
	}
	t := float64(time.Since(start)) / float64(dur)
	if t >= 1 {
		s.fading.Store(false)
		s.volume.Store(floatBits(to))
		return to
	}
	return from + (to-from)*t
}

func (s *LocalSink) AddData(data []byte) int {
	n, err := s.ring.Write(data)
	if err != nil {
		// Partial-capacity write: trim to what fits and retry once.
		avail := int(s.ring.AvailableWrite())
		if avail == 0 {
			return 0
		}
		n, _ = s.ring.Write(data[:avail])
	}
	s.bytesWritten.Add(int64(n))
	return n
}

func (s *LocalSink) GetSpace() int {
	return int(s.ring.AvailableWrite())
}

func (s *LocalSink) bytesPerSecond() int {
	return s.format.SampleRate * s.format.BytesPerFrame()
}

func (s *LocalSink) GetDelay() time.Duration {
	bps := s.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	buffered := int64(s.ring.AvailableRead())
	return time.Duration(buffered) * time.Second / time.Duration(bps)
}

func (s *LocalSink) GetCacheTime() time.Duration {
	return s.GetDelay()
}

func (s *LocalSink) GetCacheTotal() time.Duration {
	bps := s.bytesPerSecond()
	if bps == 0 {
		return 0
	}
	return time.Duration(s.ring.Size()) * time.Second / time.Duration(bps)
}

func (s *LocalSink) IsBuffering() bool {
	return int(s.ring.AvailableRead()) < s.bufferingThreshold && !s.drained.Load()
}

func (s *LocalSink) IsDrained() bool {
	return s.drained.Load() && s.ring.AvailableRead() == 0
}

func (s *LocalSink) Drain() {
	s.drained.Store(true)
	deadline := time.Now().Add(5 * time.Second)
	for s.ring.AvailableRead() > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

func (s *LocalSink) Flush() {
	s.ring.Reset()
	s.drained.Store(false)
	s.bytesWritten.Store(0)
	s.bytesPlayed.Store(0)
}

func (s *LocalSink) Pause() {
	if s.paused.CompareAndSwap(false, true) && s.stream != nil {
		if err := s.stream.StopStream(); err != nil {
			slog.Warn("aesink: pause failed", "error", err)
		}
	}
}

func (s *LocalSink) Resume() {
	if s.paused.CompareAndSwap(true, false) && s.stream != nil {
		if err := s.stream.StartStream(); err != nil {
			slog.Warn("aesink: resume failed", "error", err)
		}
	}
}

func (s *LocalSink) SetVolume(vol float64) {
	s.fading.Store(false)
	s.volume.Store(floatBits(vol))
}

func (s *LocalSink) FadeVolume(from, to float64, duration time.Duration) {
	s.fadeMu.Lock()
	s.fadeFrom, s.fadeTo, s.fadeStart, s.fadeDur = from, to, time.Now(), duration
	s.fadeMu.Unlock()
	s.volume.Store(floatBits(from))
	s.fading.Store(true)
}

func (s *LocalSink) IsFading() bool {
	return s.fading.Load()
}

func (s *LocalSink) SetReplayGain(gain float64) {
	s.replayGain.Store(floatBits(gain))
}

func (s *LocalSink) SetResampleRatio(ratio float64) {
	s.resampleRatio.Store(floatBits(ratio))
}

func (s *LocalSink) RegisterSlave(slave AudioSink) {
	s.slaveMu.Lock()
	s.slave = slave
	s.slaveMu.Unlock()
}

func (s *LocalSink) fireSlave() {
	s.slaveMu.Lock()
	slave := s.slave
	s.slave = nil
	s.slaveMu.Unlock()
	if slave != nil {
		go slave.Resume()
	}
}

func (s *LocalSink) SetPlayingPts(ticks int64) {
	s.playingPts.Store(ticks)
}

func (s *LocalSink) PlayingPts() int64 {
	return s.playingPts.Load()
}

func (s *LocalSink) IsValidFormat(f Format) bool {
	return f == s.format
}

func (s *LocalSink) Dumb() bool {
	return false
}

func (s *LocalSink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.stream == nil {
		return nil
	}
	if err := s.stream.StopStream(); err != nil {
		slog.Warn("aesink: stop on close failed", "error", err)
	}
	return s.stream.CloseCallback()
}
