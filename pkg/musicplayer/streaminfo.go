// Package musicplayer plays a queue of music files with gapless or
// crossfaded transitions, grounded on PAPlayer: a tick-driven scheduler
// manages a list of overlapping streams, each owning its own pair of
// decoders and sinks.
package musicplayer

import (
	"time"

	"github.com/drgolem/musictools/pkg/aeengine"
	"github.com/drgolem/musictools/pkg/decoders/pulldecoder"
)

const fastCrossfade = 80 * time.Millisecond
const maxSkipCrossfade = 2 * time.Second
const cacheNextFileAhead = 5 * time.Second
const packetSamples = 4096

// streamInfo is one queued or active file and everything needed to pump
// samples into its sinks, grounded on PAPlayer::StreamInfo.
type streamInfo struct {
	file     string
	decoder  *pulldecoder.Decoder
	decoder2 *pulldecoder.Decoder
	useDecoder2 bool

	renderer  *aeengine.Renderer
	renderer2 *aeengine.Renderer

	// hasSecondary is true whenever renderer2 is live, whether it's fed
	// by a dedicated decoder2 (useDecoder2) or by forking the primary
	// decoder's bytes (shared-decoder mode).
	hasSecondary bool

	sampleRate, bytesPerFrame   int
	sampleRate2, bytesPerFrame2 int

	started  bool
	finishing bool
	isSlaved bool

	framesSent, framesSent2 int64

	prepareNextAtFrame int64
	prepareTriggered   bool

	playNextAtFrame  int64
	playNextTriggered bool

	seekFrame, seekFrame2 int64
	fadeOutTriggered      bool

	volume float64

	discardSamples int // credit consumed by the next QueueData when SyncStreams2 runs ahead
}

func (si *streamInfo) totalTimeFrames() int64 {
	if si.decoder == nil || si.sampleRate == 0 {
		return 0
	}
	return int64(si.decoder.TotalTime().Seconds() * float64(si.sampleRate))
}
