package musicplayer

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/drgolem/musictools/pkg/aeengine"
	"github.com/drgolem/musictools/pkg/aesink"
	"github.com/drgolem/musictools/pkg/decoders/pulldecoder"
	"github.com/drgolem/musictools/pkg/settings"
)

// QueueCallback is invoked once per stream, a configurable lead time
// before it ends, so the host can queue the next file (OnQueueNextItem).
type QueueCallback func()

// Player manages an overlapping list of streams transitioning via gapless
// chaining or crossfade, grounded on PAPlayer.
type Player struct {
	factory *aeengine.Factory
	cfg     *settings.MusicPlayerSettings

	framesPerBuffer int
	bufferBytes     uint64

	mu        sync.Mutex
	streams   []*streamInfo
	finishing []*streamInfo
	current   *streamInfo

	upcomingCrossfade time.Duration
	lastAlbumKey      string

	onQueueNext QueueCallback

	paused bool
}

// New returns a Player bound to factory's two slots, configured from cfg.
func New(factory *aeengine.Factory, cfg *settings.MusicPlayerSettings, onQueueNext QueueCallback) *Player {
	return &Player{
		factory:         factory,
		cfg:             cfg,
		framesPerBuffer: 1024,
		bufferBytes:     2 * 1024 * 1024,
		onQueueNext:     onQueueNext,
	}
}

// updateCrossfadeTime recomputes upcomingCrossfade from settings, and
// suppresses it when the new file is a consecutive album track and
// album-gapless playback is configured (spec's crossfade policy).
func (p *Player) updateCrossfadeTime(albumKey string, isConsecutiveAlbumTrack bool) {
	p.upcomingCrossfade = time.Duration(p.cfg.CrossfadeSeconds * float64(time.Second))
	if p.upcomingCrossfade > 0 && isConsecutiveAlbumTrack && !p.cfg.CrossfadeAlbumTrack {
		p.upcomingCrossfade = 0
	}
	p.lastAlbumKey = albumKey
}

// QueueNextFile opens file's decoders, primes its sinks, and appends it
// to the stream list. wantSecondary requests dual-output for this file;
// it's downgraded to primary-only silently on any secondary-side failure.
func (p *Player) QueueNextFile(file string, albumKey string, wantSecondary bool) error {
	return p.QueueNextFileEx(file, albumKey, false, wantSecondary)
}

// QueueNextFileEx is QueueNextFile plus fadeIn, which requests a fade-in
// from silence when a crossfade is configured. In both, the file counts as
// a consecutive album track (crossfade suppressed unless
// CrossfadeAlbumTrack) when albumKey is non-empty and equals the previous
// file's albumKey.
func (p *Player) QueueNextFileEx(file string, albumKey string, fadeIn bool, wantSecondary bool) error {
	dec, err := pulldecoder.Create(file, 0)
	if err != nil {
		return fmt.Errorf("musicplayer: create decoder for %s: %w", file, err)
	}
	dec.Start()

	for dec.GetDataSize() == 0 {
		status := dec.GetStatus()
		if status == pulldecoder.StatusEnded || status == pulldecoder.StatusNoFile || dec.ReadSamples(packetSamples) == pulldecoder.ReadError {
			dec.Close()
			if p.onQueueNext != nil {
				p.onQueueNext()
			}
			return fmt.Errorf("musicplayer: no data from %s", file)
		}
		time.Sleep(time.Millisecond)
	}

	si := &streamInfo{file: file, decoder: dec}

	if wantSecondary {
		if dec.IsReusableForAudio2() {
			si.useDecoder2 = false // primary decoder's bytes are forked to the secondary sink
			si.hasSecondary = true
		} else if dec2, err := pulldecoder.Create(file, 0); err == nil {
			dec2.Start()
			ready := true
			for dec2.GetDataSize() == 0 {
				status := dec2.GetStatus()
				if status == pulldecoder.StatusEnded || status == pulldecoder.StatusNoFile || dec2.ReadSamples(packetSamples) == pulldecoder.ReadError {
					dec2.Close()
					ready = false
					break
				}
				time.Sleep(time.Millisecond)
			}
			if ready {
				si.decoder2 = dec2
				si.useDecoder2 = true
				si.hasSecondary = true
			}
		} else {
			slog.Warn("musicplayer: secondary decoder unavailable, continuing primary-only", "file", file)
		}
	}

	isConsecutive := albumKey != "" && albumKey == p.lastAlbumKey
	p.updateCrossfadeTime(albumKey, isConsecutive)

	format := si.decoder.GetDataFormat()
	si.sampleRate = format.SampleRate
	si.bytesPerFrame = format.Channels * format.BitsPerSample / 8
	if si.useDecoder2 {
		format2 := si.decoder2.GetDataFormat()
		si.sampleRate2 = format2.SampleRate
		si.bytesPerFrame2 = format2.Channels * format2.BitsPerSample / 8
	} else {
		// Shared-decoder mode (or no secondary at all): secondary format
		// mirrors primary since it's fed the same decoded bytes.
		si.sampleRate2, si.bytesPerFrame2 = si.sampleRate, si.bytesPerFrame
	}

	si.volume = 1.0
	if fadeIn && p.upcomingCrossfade > 0 {
		si.volume = 0.0
	}

	streamTotal := si.decoder.TotalTime()
	si.prepareNextAtFrame = 0
	threshold := cacheNextFileAhead + p.upcomingCrossfade
	if streamTotal >= threshold {
		si.prepareNextAtFrame = int64((streamTotal - threshold).Seconds() * float64(si.sampleRate))
	}

	if err := p.prepareStream(si); err != nil {
		si.decoder.Close()
		if si.decoder2 != nil {
			si.decoder2.Close()
		}
		return fmt.Errorf("musicplayer: prepare %s: %w", file, err)
	}

	p.mu.Lock()
	p.streams = append(p.streams, si)
	p.updatePlayNextAtFrame(p.current, p.upcomingCrossfade)
	p.mu.Unlock()
	return nil
}

// updatePlayNextAtFrame recomputes when the current stream should begin
// handing off to the next, given crossFadingTime.
func (p *Player) updatePlayNextAtFrame(si *streamInfo, crossFadingTime time.Duration) {
	if si == nil {
		return
	}
	total := si.decoder.TotalTime()
	if total < crossFadingTime {
		si.playNextAtFrame = int64(total.Seconds()/2*float64(si.sampleRate))
	} else {
		si.playNextAtFrame = int64((total - crossFadingTime).Seconds() * float64(si.sampleRate))
	}
}

// prepareStream opens paused sinks for si and primes them by pumping
// decoder samples until IsBuffering is false. It applies neither si.volume
// nor the decoder's replay gain to the sinks. If
// there's a current stream and no crossfade is configured, the new
// sink(s) are chained via RegisterSlave for sample-exact gapless handoff.
func (p *Player) prepareStream(si *streamInfo) error {
	format := si.decoder.GetDataFormat()
	si.renderer = aeengine.NewRenderer(p.factory, aeengine.Primary, p.framesPerBuffer, p.bufferBytes)
	if !si.renderer.EnsureFormat(aesink.Format{SampleRate: format.SampleRate, Channels: format.Channels, BitsPerSample: format.BitsPerSample}) {
		return fmt.Errorf("primary sink rejected format")
	}

	if si.hasSecondary {
		secondaryFormat := format // shared-decoder mode: mirror the primary's negotiated format
		if si.useDecoder2 {
			secondaryFormat = si.decoder2.GetDataFormat()
		}
		si.renderer2 = aeengine.NewRenderer(p.factory, aeengine.Secondary, p.framesPerBuffer, p.bufferBytes)
		if !si.renderer2.EnsureFormat(aesink.Format{SampleRate: secondaryFormat.SampleRate, Channels: secondaryFormat.Channels, BitsPerSample: secondaryFormat.BitsPerSample}) {
			slog.Warn("musicplayer: secondary sink rejected format, continuing primary-only")
			si.hasSecondary = false
			si.useDecoder2 = false
			if si.decoder2 != nil {
				si.decoder2.Close()
				si.decoder2 = nil
			}
			si.renderer2 = nil
		}
	}

	si.renderer.Pause()
	if si.renderer2 != nil {
		si.renderer2.Pause()
	}

	for p.sinkBuffering(si) {
		p.pumpOnce(si)
	}

	if p.current != nil && p.current != si && p.upcomingCrossfade == 0 {
		p.current.renderer.RegisterSlaveTo(si.renderer)
		if p.current.renderer2 != nil && si.renderer2 != nil {
			p.current.renderer2.RegisterSlaveTo(si.renderer2)
		}
		si.isSlaved = true
	}
	return nil
}

func (p *Player) sinkBuffering(si *streamInfo) bool {
	return si.renderer.IsBuffering() || (si.renderer2 != nil && si.renderer2.IsBuffering())
}

// pumpOnce reads one packet from the decoder(s) and queues it; used both
// during priming (prepareStream) and the steady-state tick.
func (p *Player) pumpOnce(si *streamInfo) {
	p.queueData(si)
	if si.useDecoder2 {
		p.queueData2(si)
	}
}
