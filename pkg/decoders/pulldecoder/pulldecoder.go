// Package pulldecoder adapts the teacher's simple push-style
// types.AudioDecoder (Open/DecodeSamples/Close) into the richer pull
// contract the streaming audio player needs: byte-oriented ReadSamples,
// status reporting, seek, replay gain, and codec metadata. It stages
// decoded bytes through pkg/ringbuffer the same way internal/fileplayer
// does, but exposes GetDataSize/GetData instead of a callback.
package pulldecoder

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/drgolem/musictools/pkg/decoders"
	"github.com/drgolem/musictools/pkg/ringbuffer"
	"github.com/drgolem/musictools/pkg/types"
)

// Status mirrors the decoder's coarse playback state.
type Status int

const (
	StatusOK Status = iota
	StatusEnded
	StatusNoFile
)

// ReadResult is ReadSamples' outcome.
type ReadResult int

const (
	ReadOK ReadResult = iota
	ReadError
)

// DataFormat is the decoder's negotiated output layout.
type DataFormat struct {
	Channels          int
	SampleRate        int
	EncodedSampleRate int
	BitsPerSample     int
}

// Decoder is the full pull-style audio decoder contract the streaming
// player drives. It wraps one types.AudioDecoder instance.
type Decoder struct {
	inner   types.AudioDecoder
	codec   string
	file    string
	status  Status
	ring    *ringbuffer.RingBuffer
	scratch []byte

	format     DataFormat
	started    bool
	decodeErr  error
	offsetMs   int
}

const defaultStagingBytes = 256 * 1024

// Create opens file's decoder (chosen by extension) without starting
// decoding yet. offsetMs is recorded but never applied: Start does not
// seek, and the wrapped decoders only expose Open (no separate
// create/start split), so decoding always begins at the start of the file.
func Create(file string, offsetMs int) (*Decoder, error) {
	inner, err := decoders.NewDecoder(file)
	if err != nil {
		return &Decoder{file: file, status: StatusNoFile}, fmt.Errorf("pulldecoder: create %s: %w", file, err)
	}

	rate, channels, bits := inner.GetFormat()
	d := &Decoder{
		inner:    inner,
		codec:    codecFromExt(file),
		file:     file,
		ring:     ringbuffer.New(defaultStagingBytes),
		scratch:  make([]byte, 8192),
		offsetMs: offsetMs,
		format: DataFormat{
			Channels:          channels,
			SampleRate:        rate,
			EncodedSampleRate: rate,
			BitsPerSample:     bits,
		},
	}
	return d, nil
}

// Start marks the decoder as actively producing samples. The underlying
// decoders open eagerly in Create/NewDecoder, so Start only flips status.
func (d *Decoder) Start() {
	d.started = true
	if d.inner != nil {
		d.status = StatusOK
	}
}

func (d *Decoder) bytesPerSample() int {
	return d.format.Channels * d.format.BitsPerSample / 8
}

// fill decodes more bytes into the staging ring buffer, stopping when it
// has no room left for another scratch-sized chunk or the decoder reports
// EOF or an error.
func (d *Decoder) fill() {
	if d.inner == nil || d.status == StatusEnded {
		return
	}
	bps := d.bytesPerSample()
	if bps == 0 {
		return
	}
	samplesWanted := len(d.scratch) / bps
	for int(d.ring.AvailableWrite()) >= len(d.scratch) {
		n, err := d.inner.DecodeSamples(samplesWanted, d.scratch)
		if n > 0 {
			d.ring.Write(d.scratch[:n*bps])
		}
		if err != nil || n == 0 {
			d.status = StatusEnded
			d.decodeErr = err
			return
		}
	}
}

// GetDataSize reports how many decoded bytes are immediately available
// without blocking on further decode work.
func (d *Decoder) GetDataSize() int {
	d.fill()
	return int(d.ring.AvailableRead())
}

// GetData returns up to n decoded bytes, consuming them from the staging
// buffer. It may return fewer than n if the stream is ending.
func (d *Decoder) GetData(n int) []byte {
	d.fill()
	buf := make([]byte, n)
	got, _ := d.ring.Read(buf)
	return buf[:got]
}

// ReadSamples requests the decoder produce at least n more samples'
// worth of bytes into the staging buffer; ReadError means the underlying
// codec failed or the file ended with nothing left buffered.
func (d *Decoder) ReadSamples(n int) ReadResult {
	d.fill()
	if d.status == StatusEnded && d.ring.AvailableRead() == 0 {
		return ReadError
	}
	return ReadOK
}

// GetStatus reports the decoder's coarse state.
func (d *Decoder) GetStatus() Status {
	if d.inner == nil {
		return StatusNoFile
	}
	if d.status == StatusEnded && d.ring.AvailableRead() == 0 {
		return StatusEnded
	}
	return StatusOK
}

// GetDataFormat reports the decoder's negotiated output layout.
func (d *Decoder) GetDataFormat() DataFormat {
	return d.format
}

// Seek always fails: none of the wrapped decoders expose random access.
// Create's offsetMs is not applied either, so a re-created decoder also
// starts from the beginning of the file.
func (d *Decoder) Seek(ms int) error {
	return fmt.Errorf("pulldecoder: seek not supported by %s decoder", d.codec)
}

// TotalTime is unknown without a container that carries duration
// metadata; base decoders here don't expose one, so 0 signals "unknown"
// rather than fabricating a value.
func (d *Decoder) TotalTime() time.Duration {
	return 0
}

// CanSeek always reports false for the wrapped decoders.
func (d *Decoder) CanSeek() bool {
	return false
}

// GetReplayGain is 0 (no gain) since none of the wrapped decoders parse
// replay-gain tags.
func (d *Decoder) GetReplayGain() float64 {
	return 0
}

// NeedPassthrough is always false: none of the wrapped codecs (mp3,
// flac, wav, vorbis) are compressed formats a passthrough-capable sink
// decodes itself; all of them are always PCM-rendered here.
func (d *Decoder) NeedPassthrough() bool {
	return false
}

// GetCodec reports the short codec name inferred from the file extension.
func (d *Decoder) GetCodec() string {
	return d.codec
}

// IsReusableForAudio2 reports whether the same decoded byte stream can be
// forked to feed the secondary sink directly (shared-decoder mode), rather
// than requiring its own decoder instance. mp3/flac/wav decode straight to
// PCM from a flat sample cursor, so their output is just as valid replayed
// into a second sink. Ogg Vorbis decodes against page/packet boundaries
// read off a single io.Reader cursor with no independent replay point, so
// it needs its own decoder instance for the secondary slot.
func (d *Decoder) IsReusableForAudio2() bool {
	return d.codec != "ogg" && d.codec != "oga"
}

// Close releases the underlying decoder.
func (d *Decoder) Close() error {
	if d.inner == nil {
		return nil
	}
	err := d.inner.Close()
	d.inner = nil
	return err
}

func codecFromExt(file string) string {
	ext := strings.ToLower(filepath.Ext(file))
	switch ext {
	case ".mp3":
		return "mp3"
	case ".flac", ".fla":
		return "flac"
	case ".wav":
		return "wav"
	default:
		return strings.TrimPrefix(ext, ".")
	}
}
