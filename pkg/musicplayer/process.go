package musicplayer

import (
	"time"
)

const syncStreams2MinInterval = 50 * time.Millisecond
const syncStreams2Threshold = 50 * time.Millisecond

// Tick runs one scheduling pass: reap finished streams, advance or retire
// the current stream, fire the queue-next callback, and trigger crossfade
// once playNextAtFrame is reached. Returns the minimum delay/buffer across
// active sinks, for the caller's outer sleep.
func (p *Player) Tick() (delay, buffer time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.reapFinishing()

	if p.current == nil {
		p.current = p.firstUnstarted()
	}

	delay, buffer = time.Hour, time.Hour
	for _, si := range p.streams {
		if si.finishing {
			continue
		}

		retire := (si.playNextTriggered && si.renderer != nil && !si.renderer.IsFading()) || !p.processStream(si)
		if retire {
			p.retireStream(si)
			continue
		}

		if !si.prepareTriggered && si.framesSent >= si.prepareNextAtFrame {
			si.prepareTriggered = true
			if p.onQueueNext != nil {
				p.onQueueNext()
			}
		}

		if !si.playNextTriggered && si.framesSent >= si.playNextAtFrame {
			si.playNextTriggered = true
			p.startCrossfade(si)
			if p.current == si {
				p.current = nil
			}
		}

		d := si.renderer.GetDelay()
		if d < delay {
			delay = d
		}
		if b := si.renderer.GetCacheTime(); b < buffer {
			buffer = b
		}
		if si.renderer2 != nil {
			delay = min(delay, si.renderer2.GetDelay())
			buffer = min(buffer, si.renderer2.GetCacheTime())
		}
	}

	if delay == time.Hour {
		delay, buffer = 0, 0
	}
	return delay, buffer
}

func (p *Player) firstUnstarted() *streamInfo {
	for _, si := range p.streams {
		if !si.started && !si.finishing {
			return si
		}
	}
	return nil
}

func (p *Player) startCrossfade(si *streamInfo) {
	if p.upcomingCrossfade <= 0 {
		return
	}
	si.renderer.FadeVolume(1.0, 0.0, p.upcomingCrossfade)
	if si.renderer2 != nil {
		si.renderer2.FadeVolume(1.0, 0.0, p.upcomingCrossfade)
	}
	si.fadeOutTriggered = true
}

func (p *Player) retireStream(si *streamInfo) {
	si.finishing = true
	si.renderer.Drain()
	if si.renderer2 != nil {
		si.renderer2.Drain()
	}
	p.finishing = append(p.finishing, si)
	if p.current == si {
		p.current = p.nextAfter(si)
	}
}

func (p *Player) nextAfter(si *streamInfo) *streamInfo {
	found := false
	for _, s := range p.streams {
		if found && !s.finishing {
			return s
		}
		if s == si {
			found = true
		}
	}
	return nil
}

// reapFinishing drops finishing entries whose primary sink has drained.
func (p *Player) reapFinishing() {
	kept := p.finishing[:0]
	for _, si := range p.finishing {
		if si.renderer.IsDrained() {
			si.decoder.Close()
			if si.decoder2 != nil {
				si.decoder2.Close()
			}
			si.renderer.Close()
			if si.renderer2 != nil {
				si.renderer2.Close()
			}
			p.streams = removeStream(p.streams, si)
		} else {
			kept = append(kept, si)
		}
	}
	p.finishing = kept
}

func removeStream(streams []*streamInfo, target *streamInfo) []*streamInfo {
	out := streams[:0]
	for _, s := range streams {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}

// processStream is the sample pump (ProcessStream): handles first-play
// resume, then reads one packet and queues it. Returns false when the
// stream has no more data and its sinks have drained (signal to retire).
func (p *Player) processStream(si *streamInfo) bool {
	if !si.started {
		si.started = true
		si.renderer.Resume()
		if si.renderer2 != nil {
			si.renderer2.Resume()
		}
	}

	if si.decoder.GetStatus() != 0 && si.decoder.GetDataSize() == 0 {
		return !si.renderer.IsDrained()
	}

	p.queueData(si)
	if si.hasSecondary {
		if si.useDecoder2 {
			p.queueData2(si)
		}
		p.syncStreams2(si)
	}
	return true
}

// queueData copies up to min(decoder.available, sink.space/bytesPerFrame)
// samples into the primary sink in one shot. In shared-decoder mode (a
// live secondary sink with no dedicated decoder2) the same buffer is also
// forked to the secondary sink, minus any pending discard credit from
// syncStreams2.
func (p *Player) queueData(si *streamInfo) {
	if si.bytesPerFrame == 0 {
		return
	}
	avail := si.decoder.GetDataSize()
	space := si.renderer.GetSpace()
	n := min(avail, space)
	if n <= 0 {
		return
	}
	data := si.decoder.GetData(n)
	written := si.renderer.AddPackets(data)
	si.framesSent += int64(written / si.bytesPerFrame)

	if si.hasSecondary && !si.useDecoder2 {
		p.forkToSecondary(si, data)
	}
}

// forkToSecondary pushes the primary decoder's just-read buffer into the
// secondary sink in shared-decoder mode, skipping any pending discard
// credit from syncStreams2 before writing. The credit reduces what's
// written to the secondary only; it never touches the primary's decode.
func (p *Player) forkToSecondary(si *streamInfo, data []byte) {
	if si.bytesPerFrame2 == 0 {
		return
	}
	if si.discardSamples > 0 {
		discardBytes := min(si.discardSamples*si.bytesPerFrame2, len(data))
		data = data[discardBytes:]
		si.discardSamples -= discardBytes / si.bytesPerFrame2
		si.framesSent2 += int64(discardBytes / si.bytesPerFrame2)
	}
	if len(data) == 0 {
		return
	}
	n := min(len(data), si.renderer2.GetSpace())
	if n <= 0 {
		return
	}
	written := si.renderer2.AddPackets(data[:n])
	si.framesSent2 += int64(written / si.bytesPerFrame2)
}

// queueData2 performs the dedicated-decoder analog of queueData.
func (p *Player) queueData2(si *streamInfo) {
	if si.decoder2 == nil || si.bytesPerFrame2 == 0 {
		return
	}
	avail := si.decoder2.GetDataSize()
	space := si.renderer2.GetSpace()
	n := min(avail, space)
	if n <= 0 {
		return
	}
	data := si.decoder2.GetData(n)
	written := si.renderer2.AddPackets(data)
	si.framesSent2 += int64(written / si.bytesPerFrame2)
}

// syncStreams2 keeps the secondary sink's logical playback position
// within 50ms of the primary, padding it with silence when its position is
// ahead of the primary's and discarding secondary samples when it's
// behind, grounded on PAPlayer::SyncStreams2.
func (p *Player) syncStreams2(si *streamInfo) {
	if si.renderer.Dumb() || si.renderer2.Dumb() {
		return
	}

	t1 := logicalPosition(si.framesSent, si.sampleRate, si.renderer.GetDelay())
	t2 := logicalPosition(si.framesSent2, si.sampleRate2, si.renderer2.GetDelay())
	timediff := t2 - t1

	if timediff > syncStreams2Threshold {
		padFrames := int(timediff.Seconds() * float64(si.sampleRate2))
		padBytes := min(padFrames*si.bytesPerFrame2, si.renderer2.GetSpace())
		if padBytes > 0 {
			si.renderer2.AddPackets(make([]byte, padBytes))
		}
		return
	}

	if timediff < -syncStreams2Threshold {
		if si.useDecoder2 && si.decoder2 != nil {
			// Dedicated-decoder mode: drain ahead directly from decoder2.
			over := int((-timediff).Seconds() * float64(si.sampleRate2))
			drainBytes := min(over*si.bytesPerFrame2, si.decoder2.GetDataSize())
			if drainBytes > 0 {
				si.decoder2.GetData(drainBytes)
				si.framesSent2 += int64(drainBytes / si.bytesPerFrame2)
			}
		} else {
			si.discardSamples += int((-timediff).Seconds() * float64(si.sampleRate2))
		}
	}
}

func logicalPosition(framesSent int64, sampleRate int, delay time.Duration) time.Duration {
	if sampleRate == 0 {
		return 0
	}
	played := time.Duration(framesSent) * time.Second / time.Duration(sampleRate)
	return played - delay
}
