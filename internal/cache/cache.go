// Package cache stores generated analysis text keyed by (namespace, input)
// on top of a flat key/value store.
package cache

import (
	"errors"
	"fmt"

	"github.com/kalambet/bizpulse/internal/storage"
)

// KV is the flat persisted store the cache composes keys over.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
}

// Key composes the storage key of one analysis record.
func Key(namespace, input string) string {
	return namespace + "_" + input
}

// Cache maps (namespace, input) to previously generated text. Records have
// no TTL, no size bound and are never evicted.
type Cache struct {
	kv KV
}

func New(kv KV) *Cache {
	return &Cache{kv: kv}
}

// Lookup returns the stored text for input under namespace. The boolean is
// false on a miss.
func (c *Cache) Lookup(namespace, input string) (string, bool, error) {
	v, err := c.kv.Get(Key(namespace, input))
	if errors.Is(err, storage.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s record: %w", namespace, err)
	}
	return v, true, nil
}

// Store writes text for input under namespace, replacing any previous record.
func (c *Cache) Store(namespace, input, text string) error {
	if err := c.kv.Set(Key(namespace, input), text); err != nil {
		return fmt.Errorf("writing %s record: %w", namespace, err)
	}
	return nil
}
