// ABOUTME: Core audio data model for the Opaline player
// ABOUTME: Defines stream configs, encrypted buffers, and decoded frames
package audio

import (
	"fmt"
	"time"
)

// SampleFormat identifies the PCM sample representation of decoded audio.
type SampleFormat int

const (
	SampleFormatUnknown SampleFormat = iota
	SampleFormatS16
	SampleFormatS32
	SampleFormatF32
)

// String returns a short name for the sample format.
func (f SampleFormat) String() string {
	switch f {
	case SampleFormatS16:
		return "s16"
	case SampleFormatS32:
		return "s32"
	case SampleFormatF32:
		return "f32"
	default:
		return "unknown"
	}
}

// Config describes an encrypted audio stream to be decoded.
type Config struct {
	Codec        string // "opus" or "pcm"
	SampleFormat SampleFormat
	Channels     int
	SampleRate   int
	Encrypted    bool
	ExtraData    []byte // codec-specific setup data, may be nil
}

// Validate reports whether the config describes a decodable stream.
// The Encrypted flag is not checked here; callers that only accept
// encrypted content check it separately.
func (c Config) Validate() error {
	if c.Codec == "" {
		return fmt.Errorf("missing codec")
	}
	if c.Channels < 1 || c.Channels > 8 {
		return fmt.Errorf("invalid channel count %d", c.Channels)
	}
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", c.SampleRate)
	}
	return nil
}

// EncryptedBuffer is one compressed, encrypted audio chunk handed to the
// decode stage. An end-of-stream buffer has EOS set and carries no payload.
type EncryptedBuffer struct {
	Data      []byte
	KeyID     []byte // identifies the content key needed to decrypt Data
	IV        []byte // per-buffer AES-CTR initialization vector
	Timestamp time.Duration
	EOS       bool
}

// NewEOSBuffer returns an end-of-stream sentinel buffer.
func NewEOSBuffer() *EncryptedBuffer {
	return &EncryptedBuffer{EOS: true}
}

// Frame is one decoded PCM audio frame. The decode stage overwrites
// Timestamp and Duration with reconstructed values before delivery; the
// values a decryptor attaches are advisory only.
type Frame struct {
	Samples    []int16 // interleaved S16 PCM
	FrameCount int     // samples per channel
	Channels   int
	Timestamp  time.Duration
	Duration   time.Duration
	EOS        bool
}

// NewEOSFrame returns an end-of-stream sentinel frame.
func NewEOSFrame() *Frame {
	return &Frame{EOS: true}
}
