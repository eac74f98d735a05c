// ABOUTME: ClearKey reference decryptor with AES-CTR and Opus/PCM decode
// ABOUTME: Looks up content keys in a KeyStore and decodes decrypted chunks
package cdm

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrameSize is the largest possible Opus frame: 60ms at 48kHz.
const maxOpusFrameSize = 5760

// pcmFramesPerOutput caps how many frames one decoded PCM output frame
// carries; larger chunks are split into multiple frames.
const pcmFramesPerOutput = 1024

// ClearKey is a Decryptor that decrypts buffers with AES-CTR using keys
// from a KeyStore and decodes the plaintext with Opus or raw PCM.
type ClearKey struct {
	keys *KeyStore

	mu          sync.Mutex
	cfg         audio.Config
	opusDecoder *opus.Decoder
	initialized bool
}

// NewClearKey creates a ClearKey decryptor backed by the given key store.
func NewClearKey(keys *KeyStore) *ClearKey {
	return &ClearKey{keys: keys}
}

// InitializeAudioDecoder prepares the codec for the given stream config.
func (c *ClearKey) InitializeAudioDecoder(cfg audio.Config, done func(ok bool)) {
	go func() {
		c.mu.Lock()
		defer func() {
			ok := c.initialized
			c.mu.Unlock()
			done(ok)
		}()

		c.initialized = false
		c.cfg = cfg

		switch cfg.Codec {
		case "opus":
			dec, err := opus.NewDecoder(cfg.SampleRate, cfg.Channels)
			if err != nil {
				log.Printf("ClearKey: opus decoder init failed: %v", err)
				return
			}
			c.opusDecoder = dec
		case "pcm":
			c.opusDecoder = nil
		default:
			log.Printf("ClearKey: unsupported codec %q", cfg.Codec)
			return
		}

		c.initialized = true
	}()
}

// DecryptAndDecodeAudio decrypts one buffer and decodes the plaintext.
func (c *ClearKey) DecryptAndDecodeAudio(buf *audio.EncryptedBuffer, deliver func(Status, []*audio.Frame)) {
	go func() {
		status, frames := c.decryptAndDecode(buf)
		deliver(status, frames)
	}()
}

func (c *ClearKey) decryptAndDecode(buf *audio.EncryptedBuffer) (Status, []*audio.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return StatusError, nil
	}

	// An end-of-stream buffer carries nothing to decode and neither
	// codec here holds latent frames to flush.
	if buf.EOS {
		return StatusNeedMoreData, nil
	}

	key, ok := c.keys.Lookup(buf.KeyID)
	if !ok {
		return StatusNoKey, nil
	}

	plaintext, err := decryptCTR(key, buf.IV, buf.Data)
	if err != nil {
		log.Printf("ClearKey: decrypt failed: %v", err)
		return StatusError, nil
	}

	switch c.cfg.Codec {
	case "opus":
		frame, err := c.decodeOpus(plaintext, buf.Timestamp)
		if err != nil {
			log.Printf("ClearKey: opus decode failed: %v", err)
			return StatusError, nil
		}
		return StatusSuccess, []*audio.Frame{frame}
	case "pcm":
		frames, err := c.decodePCM(plaintext, buf.Timestamp)
		if err != nil {
			log.Printf("ClearKey: pcm decode failed: %v", err)
			return StatusError, nil
		}
		if len(frames) == 0 {
			return StatusNeedMoreData, nil
		}
		return StatusSuccess, frames
	default:
		return StatusError, nil
	}
}

// decodeOpus decodes one Opus packet into a single frame.
func (c *ClearKey) decodeOpus(packet []byte, ts time.Duration) (*audio.Frame, error) {
	pcm := make([]int16, maxOpusFrameSize*c.cfg.Channels)
	n, err := c.opusDecoder.Decode(packet, pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode: %w", err)
	}

	return &audio.Frame{
		Samples:    pcm[:n*c.cfg.Channels],
		FrameCount: n,
		Channels:   c.cfg.Channels,
		Timestamp:  ts,
	}, nil
}

// decodePCM converts little-endian S16 bytes into frames, splitting
// chunks larger than pcmFramesPerOutput frames into multiple outputs.
func (c *ClearKey) decodePCM(data []byte, ts time.Duration) ([]*audio.Frame, error) {
	bytesPerFrame := 2 * c.cfg.Channels
	if len(data)%bytesPerFrame != 0 {
		return nil, fmt.Errorf("pcm payload of %d bytes is not frame-aligned", len(data))
	}

	total := len(data) / bytesPerFrame
	var frames []*audio.Frame
	for offset := 0; offset < total; offset += pcmFramesPerOutput {
		count := total - offset
		if count > pcmFramesPerOutput {
			count = pcmFramesPerOutput
		}

		samples := make([]int16, count*c.cfg.Channels)
		for i := range samples {
			pos := (offset*c.cfg.Channels + i) * 2
			samples[i] = int16(binary.LittleEndian.Uint16(data[pos:]))
		}

		frames = append(frames, &audio.Frame{
			Samples:    samples,
			FrameCount: count,
			Channels:   c.cfg.Channels,
			Timestamp:  ts + time.Duration(offset)*time.Second/time.Duration(c.cfg.SampleRate),
		})
	}
	return frames, nil
}

// ResetDecoder drops codec state so decoding can restart cleanly after a
// discontinuity.
func (c *ClearKey) ResetDecoder() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfg.Codec == "opus" && c.initialized {
		dec, err := opus.NewDecoder(c.cfg.SampleRate, c.cfg.Channels)
		if err != nil {
			log.Printf("ClearKey: opus decoder reset failed: %v", err)
			return
		}
		c.opusDecoder = dec
	}
}

// DeinitializeDecoder tears down codec state.
func (c *ClearKey) DeinitializeDecoder() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opusDecoder = nil
	c.initialized = false
}

// RegisterKeyListener subscribes to key arrivals in the backing store.
func (c *ClearKey) RegisterKeyListener(fn func()) (cancel func()) {
	return c.keys.RegisterListener(fn)
}

// decryptCTR applies AES-CTR with the given key and 16-byte IV.
func decryptCTR(key, iv, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes: %w", err)
	}
	if len(iv) != block.BlockSize() {
		return nil, fmt.Errorf("bad IV length %d", len(iv))
	}

	plaintext := make([]byte, len(data))
	cipher.NewCTR(block, iv).XORKeyStream(plaintext, data)
	return plaintext, nil
}
