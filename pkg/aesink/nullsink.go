package aesink

import (
	"sync"
	"sync/atomic"
	"time"
)

// NullSink discards everything written to it immediately. It can stand in
// for a real device where PortAudio hardware isn't wanted; nothing in this
// module constructs one.
type NullSink struct {
	format Format

	mu     sync.Mutex
	slave  AudioSink
	closed atomic.Bool

	playingPts atomic.Int64
	bytes      atomic.Int64
}

// NewNullSink returns a NullSink reporting the given format.
func NewNullSink(format Format) *NullSink {
	s := &NullSink{format: format}
	s.playingPts.Store(-1)
	return s
}

func (s *NullSink) AddData(data []byte) int {
	s.bytes.Add(int64(len(data)))
	return len(data)
}

func (s *NullSink) GetSpace() int { return 1 << 30 }

func (s *NullSink) GetDelay() time.Duration      { return 0 }
func (s *NullSink) GetCacheTime() time.Duration  { return 0 }
func (s *NullSink) GetCacheTotal() time.Duration { return 0 }
func (s *NullSink) IsBuffering() bool            { return false }
func (s *NullSink) IsDrained() bool              { return true }

func (s *NullSink) Drain() {
	s.mu.Lock()
	slave := s.slave
	s.slave = nil
	s.mu.Unlock()
	if slave != nil {
		slave.Resume()
	}
}

func (s *NullSink) Flush()  { s.bytes.Store(0) }
func (s *NullSink) Pause()  {}
func (s *NullSink) Resume() {}

func (s *NullSink) SetVolume(float64)                           {}
func (s *NullSink) FadeVolume(float64, float64, time.Duration) {}
func (s *NullSink) IsFading() bool                              { return false }
func (s *NullSink) SetReplayGain(float64)                       {}
func (s *NullSink) SetResampleRatio(float64)                    {}

func (s *NullSink) RegisterSlave(slave AudioSink) {
	s.mu.Lock()
	s.slave = slave
	s.mu.Unlock()
}

func (s *NullSink) SetPlayingPts(ticks int64) { s.playingPts.Store(ticks) }
func (s *NullSink) PlayingPts() int64         { return s.playingPts.Load() }

func (s *NullSink) IsValidFormat(f Format) bool { return f == s.format }

// Dumb always reports true: a NullSink can't report real delay, so
// dual-sink alignment logic must suppress itself rather than trust it.
func (s *NullSink) Dumb() bool { return true }

func (s *NullSink) Close() error {
	s.closed.Store(true)
	return nil
}
