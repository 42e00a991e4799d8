package musicplayer

import "time"

// SoftStart fades every active stream's sinks in from silence over
// fastCrossfade (80ms), in lock-step across both sinks. wait blocks until
// the fade completes, polling IsFading with 1ms spins.
func (p *Player) SoftStart(wait bool) {
	p.mu.Lock()
	streams := append([]*streamInfo(nil), p.streams...)
	p.mu.Unlock()

	for _, si := range streams {
		si.renderer.FadeVolume(0.0, 1.0, fastCrossfade)
		if si.renderer2 != nil {
			si.renderer2.FadeVolume(0.0, 1.0, fastCrossfade)
		}
	}
	if wait {
		p.waitForFade(streams)
	}
}

// SoftStop is SoftStart's inverse, fading to silence; close additionally
// tears down every stream once the fade completes.
func (p *Player) SoftStop(wait bool, closeStreams bool) {
	p.mu.Lock()
	streams := append([]*streamInfo(nil), p.streams...)
	p.mu.Unlock()

	for _, si := range streams {
		si.renderer.FadeVolume(1.0, 0.0, fastCrossfade)
		if si.renderer2 != nil {
			si.renderer2.FadeVolume(1.0, 0.0, fastCrossfade)
		}
	}
	if wait {
		p.waitForFade(streams)
	}

	if closeStreams {
		p.mu.Lock()
		for _, si := range streams {
			si.decoder.Close()
			if si.decoder2 != nil {
				si.decoder2.Close()
			}
			si.renderer.Close()
			if si.renderer2 != nil {
				si.renderer2.Close()
			}
		}
		p.streams = nil
		p.finishing = nil
		p.current = nil
		p.mu.Unlock()
	}
}

func (p *Player) waitForFade(streams []*streamInfo) {
	time.Sleep(fastCrossfade)
	for {
		stillFading := false
		for _, si := range streams {
			if si.renderer.IsFading() || (si.renderer2 != nil && si.renderer2.IsFading()) {
				stillFading = true
				break
			}
		}
		if !stillFading {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// Paused reports whether the player is currently paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Pause soft-stops without closing, so resume can soft-start back in.
func (p *Player) Pause() {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	p.SoftStop(true, false)
}

// Resume soft-starts every active stream back to full volume.
func (p *Player) Resume() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	p.SoftStart(false)
}
