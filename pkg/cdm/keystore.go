// ABOUTME: Content key storage with key-arrival notifications
// ABOUTME: Maps key IDs to AES keys and fans out add events to listeners
package cdm

import "sync"

// KeyStore holds content keys by key ID and notifies listeners whenever
// a key is added. Safe for concurrent use.
type KeyStore struct {
	mu        sync.Mutex
	keys      map[string][]byte
	listeners map[int]func()
	nextID    int
}

// NewKeyStore creates an empty key store.
func NewKeyStore() *KeyStore {
	return &KeyStore{
		keys:      make(map[string][]byte),
		listeners: make(map[int]func()),
	}
}

// AddKey stores key under keyID and notifies all registered listeners.
// Re-adding an existing key ID replaces the key and still notifies.
func (s *KeyStore) AddKey(keyID, key []byte) {
	s.mu.Lock()
	s.keys[string(keyID)] = append([]byte(nil), key...)
	listeners := make([]func(), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// Lookup returns the key stored under keyID, if any.
func (s *KeyStore) Lookup(keyID []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.keys[string(keyID)]
	return key, ok
}

// RegisterListener subscribes fn to key-arrival notifications. The
// returned cancel unsubscribes it.
func (s *KeyStore) RegisterListener(fn func()) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
