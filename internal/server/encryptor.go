// ABOUTME: AES-CTR chunk encryption for the demo server
// ABOUTME: Generates a fresh random IV per audio chunk
package server

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"github.com/Opaline-Protocol/opaline-go/pkg/protocol"
)

// ChunkEncryptor encrypts audio chunk payloads with AES-CTR under a
// single content key. Every chunk gets its own random IV.
type ChunkEncryptor struct {
	block cipher.Block
	keyID []byte
	key   []byte
}

// NewChunkEncryptor creates an encryptor for the given key. The key
// must be a valid AES key length (16, 24, or 32 bytes).
func NewChunkEncryptor(keyID, key []byte) (*ChunkEncryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	return &ChunkEncryptor{
		block: block,
		keyID: append([]byte(nil), keyID...),
		key:   append([]byte(nil), key...),
	}, nil
}

// KeyID returns the key identifier announced in stream/start.
func (e *ChunkEncryptor) KeyID() []byte { return e.keyID }

// Key returns the raw content key for stream/key delivery.
func (e *ChunkEncryptor) Key() []byte { return e.key }

// Encrypt encrypts payload and returns the IV used.
func (e *ChunkEncryptor) Encrypt(payload []byte) (iv, ciphertext []byte, err error) {
	iv = make([]byte, protocol.ChunkIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, fmt.Errorf("failed to generate IV: %w", err)
	}

	ciphertext = make([]byte, len(payload))
	cipher.NewCTR(e.block, iv).XORKeyStream(ciphertext, payload)
	return iv, ciphertext, nil
}

// GenerateKey returns a random 128-bit content key and key ID.
func GenerateKey() (keyID, key []byte, err error) {
	keyID = make([]byte, 8)
	if _, err := rand.Read(keyID); err != nil {
		return nil, nil, fmt.Errorf("failed to generate key id: %w", err)
	}
	key = make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return nil, nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return keyID, key, nil
}
