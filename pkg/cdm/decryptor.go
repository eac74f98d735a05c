// ABOUTME: Decryptor capability contract consumed by the decode stage
// ABOUTME: Defines the four-valued status and the async call shapes
package cdm

import (
	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

// Status is a decryptor's verdict on one DecryptAndDecodeAudio call.
type Status int

const (
	// StatusSuccess means decryption and decoding produced at least one frame.
	StatusSuccess Status = iota
	// StatusError means the buffer could not be decrypted or decoded.
	StatusError
	// StatusNoKey means the content key for this buffer is not available yet.
	StatusNoKey
	// StatusNeedMoreData means no frame could be produced from this buffer
	// alone; the caller should supply more input.
	StatusNeedMoreData
)

// String returns a short name for the status.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusError:
		return "error"
	case StatusNoKey:
		return "no-key"
	case StatusNeedMoreData:
		return "need-more-data"
	default:
		return "unknown"
	}
}

// Decryptor performs combined decryption and codec decoding of one
// compressed buffer at a time.
//
// InitializeAudioDecoder and DecryptAndDecodeAudio are asynchronous: the
// completion function may be invoked from any goroutine, immediately or
// after arbitrary delay, but exactly once per call. At most one
// DecryptAndDecodeAudio call is outstanding at any time; the decode stage
// enforces this.
type Decryptor interface {
	// InitializeAudioDecoder prepares the decryptor's internal audio
	// decoder for the given stream. done receives whether it succeeded.
	InitializeAudioDecoder(cfg audio.Config, done func(ok bool))

	// DecryptAndDecodeAudio decrypts and decodes one buffer. deliver
	// receives the status and, on StatusSuccess, a non-empty frame set.
	DecryptAndDecodeAudio(buf *audio.EncryptedBuffer, deliver func(Status, []*audio.Frame))

	// ResetDecoder drops any internal decoder state, preparing for a
	// discontinuity in the input.
	ResetDecoder()

	// DeinitializeDecoder tears the internal audio decoder down.
	DeinitializeDecoder()

	// RegisterKeyListener subscribes fn to fire-and-forget notifications
	// that a new decryption key became available. The returned cancel
	// unsubscribes; after it returns, fn is never called again.
	RegisterKeyListener(fn func()) (cancel func())
}
