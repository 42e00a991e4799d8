package vorbis

import (
	"fmt"
	"io"
	"os"

	"github.com/jfreymuth/oggvorbis"
)

// Decoder wraps oggvorbis.Reader to provide Ogg Vorbis decoding.
// Implements types.AudioDecoder interface.
type Decoder struct {
	file     *os.File
	reader   *oggvorbis.Reader
	rate     int
	channels int
	scratch  []float32
}

// NewDecoder creates a new Ogg Vorbis decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Open opens and initializes an Ogg Vorbis file for decoding.
func (d *Decoder) Open(fileName string) error {
	f, err := os.Open(fileName)
	if err != nil {
		return fmt.Errorf("failed to open file %s: %w", fileName, err)
	}

	r, err := oggvorbis.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to decode vorbis headers: %w", err)
	}

	d.file = f
	d.reader = r
	d.rate = r.SampleRate()
	d.channels = r.Channels()
	return nil
}

// Close closes the decoder and releases resources.
func (d *Decoder) Close() error {
	d.reader = nil
	if d.file != nil {
		err := d.file.Close()
		d.file = nil
		return err
	}
	return nil
}

// GetFormat returns the audio format. oggvorbis always decodes to
// 32-bit float internally; DecodeSamples converts that down to 16-bit
// signed PCM to keep a single wire format across every decoder in the pack.
func (d *Decoder) GetFormat() (rate, channels, bitsPerSample int) {
	return d.rate, d.channels, 16
}

// DecodeSamples decodes the requested number of samples (per channel)
// into audio as 16-bit signed little-endian PCM.
func (d *Decoder) DecodeSamples(samples int, audio []byte) (int, error) {
	if d.reader == nil {
		return 0, fmt.Errorf("decoder not initialized")
	}

	need := samples * d.channels
	if cap(d.scratch) < need {
		d.scratch = make([]float32, need)
	}
	buf := d.scratch[:need]

	n, err := d.reader.Read(buf)
	if n == 0 {
		if err == io.EOF || err == nil {
			return 0, io.EOF
		}
		return 0, fmt.Errorf("vorbis decode: %w", err)
	}

	frames := n / d.channels
	for i := 0; i < n; i++ {
		s := clampToInt16(buf[i])
		audio[2*i] = byte(s)
		audio[2*i+1] = byte(s >> 8)
	}
	return frames, nil
}

func clampToInt16(f float32) int16 {
	v := f * 32767
	switch {
	case v > 32767:
		return 32767
	case v < -32768:
		return -32768
	default:
		return int16(v)
	}
}
