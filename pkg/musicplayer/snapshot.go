package musicplayer

import "time"

// Snapshot is a point-in-time view of the current stream, for GUI/status
// consumers that shouldn't reach into Player's internal locking.
type Snapshot struct {
	File           string
	ElapsedTime    time.Duration
	TotalTime      time.Duration
	Crossfading    bool
	HasSecondary   bool
	QueuedStreams  int
}

// GetSnapshot returns a Snapshot of the current stream; if nothing is
// playing, only QueuedStreams is set.
func (p *Player) GetSnapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return Snapshot{QueuedStreams: len(p.streams)}
	}
	si := p.current
	var elapsed time.Duration
	if si.sampleRate > 0 {
		elapsed = time.Duration(si.framesSent) * time.Second / time.Duration(si.sampleRate)
	}
	return Snapshot{
		File:          si.file,
		ElapsedTime:   elapsed,
		TotalTime:     si.decoder.TotalTime(),
		Crossfading:   si.fadeOutTriggered,
		HasSecondary:  si.hasSecondary,
		QueuedStreams: len(p.streams),
	}
}
