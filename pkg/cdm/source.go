// ABOUTME: One-shot decryptor hand-off between player and decode stage
// ABOUTME: A single waiter is notified once, when a decryptor is provided
package cdm

import "sync"

// Source is the one-shot "decryptor became available" hand-off. A player
// calls Provide once it has constructed the right Decryptor for the
// stream; the decode stage registers a single waiter with NotifyReady.
// Whichever side acts second triggers the delivery.
type Source struct {
	mu        sync.Mutex
	decryptor Decryptor
	provided  bool
	waiter    func(Decryptor)
}

// NewSource creates an empty Source.
func NewSource() *Source {
	return &Source{}
}

// Provide fulfills the source with d. May be called once; a second call
// panics. Providing nil is allowed and signals that no decryptor could
// be obtained.
func (s *Source) Provide(d Decryptor) {
	s.mu.Lock()
	if s.provided {
		s.mu.Unlock()
		panic("cdm: Source.Provide called twice")
	}
	s.provided = true
	s.decryptor = d
	waiter := s.waiter
	s.waiter = nil
	s.mu.Unlock()

	if waiter != nil {
		waiter(d)
	}
}

// NotifyReady registers cb to receive the decryptor. If the source has
// already been provided, cb runs before NotifyReady returns. Only one
// waiter may be registered at a time. The returned cancel unregisters
// the waiter; after cancel returns, cb is never called.
func (s *Source) NotifyReady(cb func(Decryptor)) (cancel func()) {
	s.mu.Lock()
	if s.provided {
		d := s.decryptor
		s.mu.Unlock()
		cb(d)
		return func() {}
	}
	if s.waiter != nil {
		s.mu.Unlock()
		panic("cdm: Source already has a waiter")
	}
	s.waiter = cb
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.waiter = nil
		s.mu.Unlock()
	}
}
