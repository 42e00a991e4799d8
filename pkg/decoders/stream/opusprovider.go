package stream

import (
	"context"
	"fmt"
	"io"

	"github.com/drgolem/go-opus/opus"
)

// OpusPacketSource supplies raw, already-depacketized Opus frames — e.g.
// pulled off a network jitter buffer or read out of an Ogg/Opus
// demuxer upstream of this package. Returns io.EOF once no more frames
// will arrive.
type OpusPacketSource interface {
	NextFrame(ctx context.Context) ([]byte, error)
}

// OpusProvider decodes an OpusPacketSource into AudioPacketProvider's PCM
// contract, for playback through the same StreamDecoder path as any other
// streaming source.
type OpusProvider struct {
	source     OpusPacketSource
	decoder    *opus.Decoder
	format     AudioFormat
	pcmScratch []int16
}

// NewOpusProvider creates a decoder for the given sample rate/channel
// count. Opus only supports 8000, 12000, 16000, 24000, and 48000 Hz and
// 1 or 2 channels; the underlying library rejects anything else.
func NewOpusProvider(source OpusPacketSource, sampleRate, channels int) (*OpusProvider, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opus: new decoder: %w", err)
	}
	return &OpusProvider{
		source:  source,
		decoder: dec,
		format: AudioFormat{
			SampleRate:     sampleRate,
			Channels:       channels,
			BytesPerSample: 2, // opus.Decoder.Decode always produces int16 PCM
		},
		// 120ms is the largest legal Opus frame; safe upper bound for one decode.
		pcmScratch: make([]int16, sampleRate/1000*120*channels),
	}, nil
}

// ReadAudioPacket decodes exactly one Opus frame per call; samples is
// advisory only (Opus frame size is fixed by the encoder, not the reader).
func (p *OpusProvider) ReadAudioPacket(ctx context.Context, samples int) (*AudioPacket, error) {
	frame, err := p.source.NextFrame(ctx)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("opus: read frame: %w", err)
	}

	n, err := p.decoder.Decode(frame, p.pcmScratch)
	if err != nil {
		return nil, fmt.Errorf("opus: decode frame: %w", err)
	}

	audio := make([]byte, n*p.format.Channels*p.format.BytesPerSample)
	for i := 0; i < n*p.format.Channels; i++ {
		s := p.pcmScratch[i]
		audio[2*i] = byte(s)
		audio[2*i+1] = byte(s >> 8)
	}

	return &AudioPacket{
		Audio:        audio,
		SamplesCount: n,
		Format:       p.format,
	}, nil
}

// PacketLoss signals a dropped network packet to the decoder, which
// extrapolates replacement PCM from its internal state (Opus PLC) rather
// than producing silence.
func (p *OpusProvider) PacketLoss() (*AudioPacket, error) {
	n, err := p.decoder.Decode(nil, p.pcmScratch)
	if err != nil {
		return nil, fmt.Errorf("opus: packet loss concealment: %w", err)
	}
	audio := make([]byte, n*p.format.Channels*p.format.BytesPerSample)
	for i := 0; i < n*p.format.Channels; i++ {
		s := p.pcmScratch[i]
		audio[2*i] = byte(s)
		audio[2*i+1] = byte(s >> 8)
	}
	return &AudioPacket{Audio: audio, SamplesCount: n, Format: p.format}, nil
}
