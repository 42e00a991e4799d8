// Package streamplayer implements the dual-output streaming audio
// player: a decode loop driven by a typed message queue that keeps a
// primary PCM output locked to an external clock while mirroring frames
// to a best-effort secondary output, grounded on CDVDPlayerAudio.
package streamplayer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/drgolem/musictools/pkg/aeengine"
	"github.com/drgolem/musictools/pkg/aesink"
	"github.com/drgolem/musictools/pkg/decoders/pulldecoder"
	"github.com/drgolem/musictools/pkg/msgqueue"
	"github.com/drgolem/musictools/pkg/ptsmap"
	"github.com/drgolem/musictools/pkg/refclock"
	"github.com/drgolem/musictools/pkg/settings"
	"github.com/drgolem/musictools/pkg/timebase"
)

// StreamHints describes the file (and, if dual-audio is enabled, the
// independently-decoded secondary view of the same file) the player
// should open.
type StreamHints struct {
	File         string
	OffsetMs     int
	HasSecondary bool
}

// Player is a long-running decode/output loop driven by a message queue,
// decoding one compressed stream into two parallel PCM outputs.
type Player struct {
	queue *msgqueue.Queue
	clock refclock.RefClock

	factory *aeengine.Factory
	primary *aeengine.Renderer
	// secondary is created once in New; EnsureFormat re-creates its sink
	// on a format change. Per Open Question (b), emit guards secondary-slot
	// calls on a freshly-read hasSecondary flag rather than a bool cached
	// at Open time.
	secondary *aeengine.Renderer

	cfg *settings.Settings

	mu            sync.Mutex
	primaryDec    *pulldecoder.Decoder
	secondaryDec  *pulldecoder.Decoder
	hasSecondary  bool
	ptsMap        *ptsmap.PtsMap
	hints         StreamHints

	sync    *syncController
	aligner *dualSinkAligner

	stopped    atomic.Bool
	stalled    atomic.Bool
	speed      atomic.Int32
	silence    atomic.Bool
	audioClock atomic.Int64

	coalesced []byte // growing buffer for small secondary frames
}

// New returns a Player bound to factory's two engine slots and clock,
// configured from cfg. Call Open to load a stream, then Run to drive the
// decode loop (normally in its own goroutine).
func New(factory *aeengine.Factory, clock refclock.RefClock, cfg *settings.Settings) *Player {
	p := &Player{
		queue:   msgqueue.New(0, 0),
		clock:   clock,
		factory: factory,
		cfg:     cfg,
		ptsMap:  ptsmap.New(),
		aligner: &dualSinkAligner{},
	}
	p.primary = aeengine.NewRenderer(factory, aeengine.Primary, 1024, 2*1024*1024)
	p.secondary = aeengine.NewRenderer(factory, aeengine.Secondary, 1024, 2*1024*1024)
	p.sync = newSyncController(clock, cfg.VideoPlayer.SyncType, cfg.VideoPlayer.MaxSpeedAdjust)
	p.speed.Store(1)
	return p
}

// Open opens the primary (and, if requested, secondary) decoder for
// hints.File. A secondary-decoder failure never fails Open — spec's
// secondary-slot degradation policy applies from the very first frame.
func (p *Player) Open(hints StreamHints) error {
	primaryDec, err := pulldecoder.Create(hints.File, hints.OffsetMs)
	if err != nil {
		return fmt.Errorf("streamplayer: open %s: %w", hints.File, err)
	}
	primaryDec.Start()

	p.mu.Lock()
	p.primaryDec = primaryDec
	p.hints = hints
	p.hasSecondary = false
	p.secondaryDec = nil
	p.mu.Unlock()

	if hints.HasSecondary {
		secondaryDec, err := pulldecoder.Create(hints.File, hints.OffsetMs)
		if err != nil {
			slog.Warn("streamplayer: secondary decoder unavailable, continuing primary-only", "file", hints.File, "error", err)
		} else {
			secondaryDec.Start()
			p.mu.Lock()
			p.secondaryDec = secondaryDec
			p.hasSecondary = true
			p.mu.Unlock()
		}
	}

	return nil
}

// enqueueControl pushes a control message (priority 1), used by SendResync etc.
func (p *Player) enqueueControl(t msgqueue.Type, payload any) {
	p.queue.Push(msgqueue.Message{Type: t, Priority: msgqueue.PriorityControl, Payload: payload})
}

func (p *Player) SendResync(ts int64, setClock bool) {
	p.enqueueControl(msgqueue.GeneralResync, &msgqueue.ResyncPayload{Timestamp: ts, SetClock: setClock})
}

func (p *Player) SendReset()                 { p.enqueueControl(msgqueue.GeneralReset, nil) }
func (p *Player) SendFlush()                 { p.enqueueControl(msgqueue.GeneralFlush, nil) }
func (p *Player) SendEOF()                   { p.enqueueControl(msgqueue.GeneralEOF, nil) }
func (p *Player) SendDelay(seconds float64)  { p.enqueueControl(msgqueue.GeneralDelay, seconds) }
func (p *Player) SendSynchronize()           { p.enqueueControl(msgqueue.GeneralSynchronize, nil) }
func (p *Player) SendSetSpeed(speed int32)   { p.speed.Store(speed); p.enqueueControl(msgqueue.PlayerSetSpeed, speed) }
func (p *Player) SendSilence(on bool)        { p.silence.Store(on); p.enqueueControl(msgqueue.AudioSilence, on) }

// Stop aborts the message queue, causing Run to return.
func (p *Player) Stop() {
	p.stopped.Store(true)
	p.queue.Abort()
}

// readHasSecondary re-reads the secondary-enabled flag under lock — Open
// Question (b): never trust a value cached before this iteration.
func (p *Player) readHasSecondary() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasSecondary && p.secondaryDec != nil
}

// Run drives the decode loop until Stop is called or a fatal error
// occurs. Intended to run in its own goroutine.
func (p *Player) Run(ctx context.Context) error {
	for !p.stopped.Load() {
		p.mu.Lock()
		primaryDec := p.primaryDec
		p.mu.Unlock()
		if primaryDec == nil {
			if err := p.waitForMessage(ctx); err != nil {
				return p.handleLoopErr(err)
			}
			continue
		}

		if primaryDec.GetDataSize() > 0 {
			if err := p.decodeAndEmitOne(); err != nil {
				slog.Warn("streamplayer: decode error, resetting codec", "error", err)
				p.resetPrimaryDecoder()
			}
			continue
		}

		if err := p.waitForMessage(ctx); err != nil {
			return p.handleLoopErr(err)
		}
	}
	return nil
}

func (p *Player) handleLoopErr(err error) error {
	if err == msgqueue.ErrAborted || err == context.Canceled {
		return nil
	}
	return err
}

// waitForMessage pops and dispatches one message, timing out at
// 1000*primary.CacheTime + 100ms per spec's decode-loop step 3.
func (p *Player) waitForMessage(ctx context.Context) error {
	cacheTime := p.primary.GetCacheTime()
	timeout := cacheTime + 100*time.Millisecond

	msg, err := p.queue.Pop(ctx, timeout)
	if err != nil {
		if err == context.DeadlineExceeded {
			p.stalled.Store(true)
			p.primary.Drain()
			p.primary.Flush()
			return nil
		}
		return err
	}
	p.stalled.Store(false)
	p.dispatch(msg)
	return nil
}

func (p *Player) dispatch(msg msgqueue.Message) {
	switch msg.Type {
	case msgqueue.GeneralReset, msgqueue.GeneralFlush:
		p.resetState()
	case msgqueue.GeneralResync:
		payload, _ := msg.Payload.(*msgqueue.ResyncPayload)
		if payload == nil {
			return
		}
		p.audioClock.Store(payload.Timestamp)
		p.ptsMap.Flush()
		if payload.SetClock {
			p.clock.Discontinuity(p.primary.PlayingPts())
		}
	case msgqueue.GeneralEOF:
		p.primary.Drain()
		p.secondary.Drain()
	case msgqueue.GeneralDelay:
		if secs, ok := msg.Payload.(float64); ok {
			time.Sleep(time.Duration(secs * float64(time.Second)))
		}
	case msgqueue.GeneralStreamChange:
		payload, _ := msg.Payload.(*msgqueue.StreamChangePayload)
		if payload != nil {
			p.reopenForStreamChange(payload)
		}
	case msgqueue.PlayerSetSpeed:
		if speed, ok := msg.Payload.(int32); ok {
			p.speed.Store(speed)
		}
	case msgqueue.AudioSilence:
		if on, ok := msg.Payload.(bool); ok {
			p.silence.Store(on)
		}
	case msgqueue.GeneralSynchronize:
		// Barrier: nothing queued ahead of this point needs draining by
		// itself — the decode loop having reached this message is the
		// synchronize point.
	}
}

func (p *Player) resetState() {
	p.mu.Lock()
	if p.primaryDec != nil {
		p.primaryDec.Close()
		p.primaryDec = nil
	}
	if p.secondaryDec != nil {
		p.secondaryDec.Close()
		p.secondaryDec = nil
	}
	p.hasSecondary = false
	p.mu.Unlock()

	p.queue.Clear()
	p.ptsMap.Flush()
	p.sync = newSyncController(p.clock, p.cfg.VideoPlayer.SyncType, p.cfg.VideoPlayer.MaxSpeedAdjust)
	p.aligner = &dualSinkAligner{}
	p.coalesced = nil
}

func (p *Player) resetPrimaryDecoder() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.primaryDec != nil {
		p.primaryDec.Close()
		p.primaryDec = nil
	}
}

func (p *Player) reopenForStreamChange(payload *msgqueue.StreamChangePayload) {
	if err := p.Open(StreamHints{File: p.hints.File, HasSecondary: payload.NewCodec2 != ""}); err != nil {
		slog.Error("streamplayer: stream change reopen failed", "error", err)
	}
}

// decodeAndEmitOne runs one iteration of the decode loop: recover a pts
// for the about-to-be-decoded bytes, pull a primary (and, independently,
// secondary) frame, run SwitchCodecIfNeeded, then hand both frames to the
// output stage.
func (p *Player) decodeAndEmitOne() error {
	p.mu.Lock()
	primaryDec := p.primaryDec
	secondaryDec := p.secondaryDec
	hasSecondary := p.hasSecondary && secondaryDec != nil
	p.mu.Unlock()

	if primaryDec == nil {
		return fmt.Errorf("streamplayer: no primary decoder")
	}

	size := primaryDec.GetDataSize()
	if size == 0 {
		return nil
	}
	p.ptsMap.Add(int64(size), p.audioClock.Load())

	data := primaryDec.GetData(size)
	pts := p.ptsMap.Get(int64(len(data)), true)
	frame := p.buildFrame(data, primaryDec, pts)

	var frame2 *frameOut
	if hasSecondary {
		frame2 = p.coalesceSecondary(secondaryDec, len(data))
	}

	if p.switchCodecIfNeeded(primaryDec, frame) {
		// Re-decode attempted at most once per frame by switchCodecIfNeeded
		// itself; nothing further to do this iteration.
		return nil
	}

	p.emit(frame, frame2)
	return nil
}

type frameOut struct {
	data     []byte
	pts      int64
	duration int64
	rate     int
	channels int
	bits     int
	passthru bool
}

func (p *Player) buildFrame(data []byte, dec *pulldecoder.Decoder, pts int64) *frameOut {
	format := dec.GetDataFormat()
	bytesPerSample := format.Channels * format.BitsPerSample / 8
	var samples int64
	if bytesPerSample > 0 {
		samples = int64(len(data)) / int64(bytesPerSample)
	}
	var duration int64
	if format.SampleRate > 0 {
		duration = samples * timebase.Base / int64(format.SampleRate)
	}
	return &frameOut{
		data:     data,
		pts:      pts,
		duration: duration,
		rate:     format.SampleRate,
		channels: format.Channels,
		bits:     format.BitsPerSample,
		passthru: dec.NeedPassthrough(),
	}
}

// coalesceSecondary accumulates secondary-decoder bytes in a growing
// buffer until it has at least as much data as the primary frame (small
// secondary frames are coalesced into one merged frame per iteration).
func (p *Player) coalesceSecondary(dec *pulldecoder.Decoder, want int) *frameOut {
	for len(p.coalesced) < want {
		avail := dec.GetDataSize()
		if avail == 0 {
			break
		}
		p.coalesced = append(p.coalesced, dec.GetData(avail)...)
	}
	if len(p.coalesced) == 0 {
		return nil
	}
	out := p.coalesced
	p.coalesced = nil
	return p.buildFrame(out, dec, timebase.NoPTS)
}

// switchCodecIfNeeded always returns false: it re-creates no codec and
// retries no decode, whether or not the frame's encoded sample rate
// matches the stream's declared rate. A true result would tell the caller
// to skip emit this round.
func (p *Player) switchCodecIfNeeded(dec *pulldecoder.Decoder, frame *frameOut) bool {
	if frame.rate == dec.GetDataFormat().EncodedSampleRate {
		return false
	}
	// The wrapped decoders never change passthrough verdict mid-stream
	// (NeedPassthrough is always false, per pulldecoder's grounding
	// note), so there is nothing to rewind/retry for our codec set.
	return false
}

// emit is the output stage (§4.2.5): drop frames under sync-driven
// DROP, silence while muted, re-create renderers on format change, then
// write to both sinks per the sync controller's verdict.
func (p *Player) emit(frame *frameOut, frame2 *frameOut) {
	format := aesink.Format{SampleRate: frame.rate, Channels: frame.channels, BitsPerSample: frame.bits, IsPassthrough: frame.passthru}
	if !p.primary.EnsureFormat(format) {
		slog.Warn("streamplayer: primary renderer rejected format, dropping frame")
		return
	}

	if p.silence.Load() {
		zero(frame.data)
		if frame2 != nil {
			zero(frame2.data)
		}
	}

	playingPts := p.primary.PlayingPts()
	p.sync.handleError(playingPts, false, frame.duration)

	hasSecondary := p.readHasSecondary()
	if hasSecondary && frame2 != nil {
		secFormat := aesink.Format{SampleRate: frame2.rate, Channels: frame2.channels, BitsPerSample: frame2.bits, IsPassthrough: frame2.passthru}
		if !p.secondary.EnsureFormat(secFormat) {
			hasSecondary = false
		}
	}

	action := secondaryWriteAsIs
	if hasSecondary && frame2 != nil {
		action = p.aligner.decide(
			timebase.FromDuration(p.primary.GetDelay()),
			timebase.FromDuration(p.secondary.GetDelay()),
			frame2.duration, p.secondary.Dumb())
	}

	mode := p.sync.setMode(p.cfg.VideoPlayer.SyncType, frame.passthru)

	writeSecondary := hasSecondary && frame2 != nil && action != secondarySkip
	switch mode {
	case settings.SyncDiscon:
		p.primary.AddPackets(frame.data)
		if writeSecondary {
			p.writeSecondary(frame2, action)
		}
	case settings.SyncSkipDup:
		switch p.sync.skipDupDecision(frame.duration) {
		case actionDrop:
			// Drop both sinks' payload, keep playing-pts in lockstep.
			p.primary.SetPlayingPts(playingPts)
		case actionWriteTwice:
			p.primary.AddPackets(frame.data)
			p.primary.AddPackets(frame.data)
			if writeSecondary {
				p.writeSecondary(frame2, action)
				p.writeSecondary(frame2, action)
			}
		default:
			p.primary.AddPackets(frame.data)
			if writeSecondary {
				p.writeSecondary(frame2, action)
			}
		}
	case settings.SyncResample:
		p.primary.SetResampleRatio(p.sync.resampleRate)
		p.primary.AddPackets(frame.data)
		if writeSecondary {
			p.writeSecondary(frame2, action)
		}
	}

	p.primary.SetPlayingPts(frame.pts)
	if hasSecondary {
		p.secondary.SetPlayingPts(frame.pts)
	}
}

func (p *Player) writeSecondary(frame2 *frameOut, action alignmentAction) {
	if action == secondaryWriteSilence {
		zero(frame2.data)
	}
	p.secondary.AddPackets(frame2.data)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
