package musicplayer

import "time"

// SetSpeed adjusts the current stream's frame counters for FF/RW: each
// call nudges framesSent once by sampleRate*(speed-1) (and framesSent2 in
// dedicated-decoder mode) and schedules reseekToDecoderPosition half a
// second out. The decoder itself is neither sped up nor seeked.
func (p *Player) SetSpeed(speed float64) {
	p.mu.Lock()
	si := p.current
	p.mu.Unlock()
	if si == nil || speed == 1.0 {
		return
	}

	adjust := int64(float64(si.sampleRate) * (speed - 1))
	si.framesSent += adjust
	if si.useDecoder2 {
		adjust2 := int64(float64(si.sampleRate2) * (speed - 1))
		si.framesSent2 += adjust2
	}

	time.AfterFunc(500*time.Millisecond, func() {
		p.reseekToDecoderPosition(si)
	})
}

// reseekToDecoderPosition runs half a second after SetSpeed. It leaves
// framesSent unchanged: the wrapped decoders report no position to
// re-synchronize it against.
func (p *Player) reseekToDecoderPosition(si *streamInfo) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if si.decoder == nil {
		return
	}
}

// Seek requests a direct jump to ms milliseconds into the current
// stream. Per-sink seekFrame is computed from each sink's own sample
// rate since the primary and secondary decoders can run at different
// rates.
func (p *Player) Seek(ms int) error {
	p.mu.Lock()
	si := p.current
	p.mu.Unlock()
	if si == nil {
		return nil
	}

	if err := si.decoder.Seek(ms); err != nil {
		return err
	}
	si.seekFrame = int64(ms) * int64(si.sampleRate) / 1000
	si.framesSent = si.seekFrame

	if si.useDecoder2 && si.decoder2 != nil {
		if err := si.decoder2.Seek(ms); err == nil {
			si.seekFrame2 = int64(ms) * int64(si.sampleRate2) / 1000
			si.framesSent2 = si.seekFrame2
		}
	}
	return nil
}
