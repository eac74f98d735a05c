// ABOUTME: Opus encoding for the outgoing audio stream
// ABOUTME: Produces one compressed packet per fixed-size PCM frame
package server

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusPacket is the largest packet libopus will ever produce.
const maxOpusPacket = 4000

// OpusEncoder turns fixed-size interleaved PCM frames into Opus
// packets. Not safe for concurrent use; the stream loop owns it.
type OpusEncoder struct {
	enc       *opus.Encoder
	channels  int
	frameSize int // samples per channel
	packet    []byte
}

// NewOpusEncoder creates an encoder for the given stream format.
// frameSize is samples per channel and must be a legal Opus frame
// duration at sampleRate (960 for 20ms at 48kHz).
func NewOpusEncoder(sampleRate, channels, frameSize int) (*OpusEncoder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}
	if err := enc.SetBitrate(64000 * channels); err != nil {
		return nil, fmt.Errorf("failed to set opus bitrate: %w", err)
	}

	return &OpusEncoder{
		enc:       enc,
		channels:  channels,
		frameSize: frameSize,
		packet:    make([]byte, maxOpusPacket),
	}, nil
}

// Encode compresses one frame. The returned slice aliases an internal
// buffer and is only valid until the next Encode.
func (e *OpusEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) != e.frameSize*e.channels {
		return nil, fmt.Errorf("pcm frame must be %d samples, got %d",
			e.frameSize*e.channels, len(pcm))
	}

	n, err := e.enc.Encode(pcm, e.packet)
	if err != nil {
		return nil, fmt.Errorf("opus encode failed: %w", err)
	}
	return e.packet[:n], nil
}

// FrameSize returns samples per channel per frame.
func (e *OpusEncoder) FrameSize() int { return e.frameSize }

// Close releases the encoder. libopus state is garbage collected, so
// this only exists to pair with New in defer chains.
func (e *OpusEncoder) Close() error { return nil }
