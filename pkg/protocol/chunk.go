// ABOUTME: Binary audio chunk codec for the Opaline Protocol
// ABOUTME: Frames carry type, timestamp, flags, IV, and encrypted payload
package protocol

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

const (
	// AudioChunkMessageType is the binary message type ID for audio chunks.
	AudioChunkMessageType = 4

	// ChunkIVSize is the per-chunk initialization vector length (AES block).
	ChunkIVSize = 16

	// ChunkHeaderSize is type byte + timestamp + flags + IV.
	ChunkHeaderSize = 1 + 8 + 1 + ChunkIVSize

	chunkFlagEOS = 0x01
)

// AudioChunk is one timestamped encrypted audio payload. Timestamps are
// stream-relative microseconds. EOS chunks carry no payload and mark the
// end of the stream.
type AudioChunk struct {
	Timestamp int64 // Microseconds
	EOS       bool
	IV        []byte // ChunkIVSize bytes, unused for EOS chunks
	Payload   []byte
}

// Marshal encodes the chunk into the binary wire format.
func (c AudioChunk) Marshal() ([]byte, error) {
	if !c.EOS && len(c.IV) != ChunkIVSize {
		return nil, fmt.Errorf("audio chunk IV must be %d bytes, got %d", ChunkIVSize, len(c.IV))
	}

	data := make([]byte, ChunkHeaderSize+len(c.Payload))
	data[0] = AudioChunkMessageType
	binary.BigEndian.PutUint64(data[1:9], uint64(c.Timestamp))
	if c.EOS {
		data[9] = chunkFlagEOS
	}
	copy(data[10:10+ChunkIVSize], c.IV)
	copy(data[ChunkHeaderSize:], c.Payload)
	return data, nil
}

// UnmarshalAudioChunk decodes a binary message into an AudioChunk.
func UnmarshalAudioChunk(data []byte) (AudioChunk, error) {
	if len(data) < ChunkHeaderSize {
		return AudioChunk{}, fmt.Errorf("audio chunk too short: %d bytes", len(data))
	}
	if data[0] != AudioChunkMessageType {
		return AudioChunk{}, fmt.Errorf("unknown binary message type: %d", data[0])
	}

	chunk := AudioChunk{
		Timestamp: int64(binary.BigEndian.Uint64(data[1:9])),
		EOS:       data[9]&chunkFlagEOS != 0,
		IV:        append([]byte(nil), data[10:10+ChunkIVSize]...),
		Payload:   append([]byte(nil), data[ChunkHeaderSize:]...),
	}
	return chunk, nil
}

// Buffer converts the chunk into a decoder input buffer bound to keyID.
func (c AudioChunk) Buffer(keyID []byte) *audio.EncryptedBuffer {
	if c.EOS {
		return audio.NewEOSBuffer()
	}
	return &audio.EncryptedBuffer{
		Data:      c.Payload,
		KeyID:     keyID,
		IV:        c.IV,
		Timestamp: time.Duration(c.Timestamp) * time.Microsecond,
	}
}
