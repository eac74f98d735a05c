// ABOUTME: Tracker for the single in-flight decode request
// ABOUTME: Holds the submitted buffer and caller callback, rejects overlap
package decrypt

import (
	"sync"

	"github.com/Opaline-Protocol/opaline-go/pkg/audio"
)

// pendingRequest holds the at-most-one outstanding decode: the buffer
// submitted to the decryptor and the caller callback awaiting its
// result. Arming it while a callback is still held is an overlapping
// Decode and panics in the caller's goroutine.
type pendingRequest struct {
	mu  sync.Mutex
	buf *audio.EncryptedBuffer
	cb  DecodeCallback
}

// arm registers a new decode request. buf may be nil when the caller is
// draining previously queued frames.
func (p *pendingRequest) arm(buf *audio.EncryptedBuffer, cb DecodeCallback) {
	if cb == nil {
		panic("decrypt: Decode requires a completion callback")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cb != nil {
		panic("decrypt: overlapping Decode calls are not supported")
	}
	p.cb = cb
	p.buf = buf
}

// takeCallback removes and returns the held callback, or nil.
func (p *pendingRequest) takeCallback() DecodeCallback {
	p.mu.Lock()
	defer p.mu.Unlock()
	cb := p.cb
	p.cb = nil
	return cb
}

// hasCallback reports whether a decode completion is still owed.
func (p *pendingRequest) hasCallback() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cb != nil
}

// buffer returns the held buffer without releasing it.
func (p *pendingRequest) buffer() *audio.EncryptedBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf
}

// takeBuffer removes and returns the held buffer, or nil.
func (p *pendingRequest) takeBuffer() *audio.EncryptedBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	buf := p.buf
	p.buf = nil
	return buf
}

// setBuffer reinstates a buffer, e.g. for retry after a no-key response.
func (p *pendingRequest) setBuffer(buf *audio.EncryptedBuffer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buf = buf
}
