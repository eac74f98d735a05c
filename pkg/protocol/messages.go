// ABOUTME: Opaline Protocol message type definitions
// ABOUTME: JSON control messages for handshake, stream setup, and key delivery
package protocol

import (
	"encoding/base64"
	"fmt"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

// Message is the top-level wrapper for all JSON protocol messages.
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake.
type ClientHello struct {
	ClientID        string      `json:"client_id"`
	Name            string      `json:"name"`
	Version         int         `json:"version"`
	SupportedCodecs []string    `json:"supported_codecs"`
	DeviceInfo      *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification.
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello.
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ClientState reports the player's current state.
type ClientState struct {
	State  string `json:"state"` // "ready", "playing", "waiting_for_key", "error"
	Volume int    `json:"volume,omitempty"`
	Muted  bool   `json:"muted,omitempty"`
}

// StreamStart announces a new audio stream and its format. Encrypted
// streams carry the key ID the client must obtain before decoding.
type StreamStart struct {
	Codec       string `json:"codec"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	BitDepth    int    `json:"bit_depth"`
	Encrypted   bool   `json:"encrypted"`
	KeyID       string `json:"key_id,omitempty"`       // Base64-encoded
	CodecHeader string `json:"codec_header,omitempty"` // Base64-encoded
}

// AudioConfig converts the stream announcement into a decoder config.
func (s StreamStart) AudioConfig() (audio.Config, error) {
	cfg := audio.Config{
		Codec:        s.Codec,
		SampleFormat: audio.SampleFormatS16,
		Channels:     s.Channels,
		SampleRate:   s.SampleRate,
		Encrypted:    s.Encrypted,
	}

	if s.CodecHeader != "" {
		extra, err := base64.StdEncoding.DecodeString(s.CodecHeader)
		if err != nil {
			return audio.Config{}, fmt.Errorf("invalid codec header: %w", err)
		}
		cfg.ExtraData = extra
	}

	return cfg, nil
}

// KeyIDBytes decodes the announced key ID.
func (s StreamStart) KeyIDBytes() ([]byte, error) {
	if s.KeyID == "" {
		return nil, nil
	}
	id, err := base64.StdEncoding.DecodeString(s.KeyID)
	if err != nil {
		return nil, fmt.Errorf("invalid key id: %w", err)
	}
	return id, nil
}

// StreamKey delivers a content key for an encrypted stream. The server
// may send it at any point after stream/start, including after audio
// chunks that need it have already arrived.
type StreamKey struct {
	KeyID string `json:"key_id"` // Base64-encoded
	Key   string `json:"key"`    // Base64-encoded
}

// Decode returns the raw key ID and key bytes.
func (k StreamKey) Decode() (keyID, key []byte, err error) {
	keyID, err = base64.StdEncoding.DecodeString(k.KeyID)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid key id: %w", err)
	}
	key, err = base64.StdEncoding.DecodeString(k.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid key: %w", err)
	}
	return keyID, key, nil
}

// EncodeStreamKey builds a stream/key payload from raw bytes.
func EncodeStreamKey(keyID, key []byte) StreamKey {
	return StreamKey{
		KeyID: base64.StdEncoding.EncodeToString(keyID),
		Key:   base64.StdEncoding.EncodeToString(key),
	}
}

// StreamEnd ends the current stream.
type StreamEnd struct {
	Reason string `json:"reason,omitempty"` // "complete", "shutdown"
}

// ClientGoodbye is sent before graceful disconnect.
type ClientGoodbye struct {
	Reason string `json:"reason"` // "shutdown", "user_request"
}
