// Package inputstore holds the single business description shared by every
// analysis page.
package inputstore

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/kalambet/bizpulse/internal/storage"
)

// Key is the storage key of the business description.
const Key = "businessInput"

// KV defines the storage operations the Store needs.
// Implemented by storage.Store.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Store reads and writes the business description and notifies subscribers
// after every successful write.
type Store struct {
	kv KV

	mu     sync.Mutex
	nextID int
	subs   map[int]func(string)
}

// New creates a Store over kv.
func New(kv KV) *Store {
	return &Store{kv: kv, subs: make(map[int]func(string))}
}

// Get returns the stored description, or "" if none was ever stored.
func (s *Store) Get() (string, error) {
	v, err := s.kv.Get(Key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading business input: %w", err)
	}
	return v, nil
}

// Set persists text as-is. Empty and whitespace-only text is stored too.
func (s *Store) Set(text string) error {
	if err := s.kv.Set(Key, text); err != nil {
		return fmt.Errorf("writing business input: %w", err)
	}

	s.mu.Lock()
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(text)
	}
	return nil
}

// Subscribe registers fn to be called synchronously after each Set.
// The returned func removes the subscription.
func (s *Store) Subscribe(fn func(text string)) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// IsBlank reports whether text counts as "no input".
func IsBlank(text string) bool {
	return strings.TrimSpace(text) == ""
}
