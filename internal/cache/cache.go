// Package cache persists resolved question→SQL translations so a
// repeated question never re-pays a provider call.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Cache is an append-only mapping from a question fingerprint to the
// SQL it resolved to. Entries are written through to the backing
// store before Store returns; there is no eviction and no TTL.
// Single-writer: callers serialize access themselves.
type Cache struct {
	store   Store
	entries map[string]string
}

func New(store Store) (*Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	entries, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("load translation cache: %w", err)
	}
	if entries == nil {
		entries = map[string]string{}
	}
	return &Cache{store: store, entries: entries}, nil
}

// Fingerprint hashes the exact question bytes. No normalization: the
// same question with different casing or spacing is a different key.
func Fingerprint(question string) string {
	sum := md5.Sum([]byte(question))
	return hex.EncodeToString(sum[:])
}

func (c *Cache) Lookup(question string) (string, bool) {
	sql, ok := c.entries[Fingerprint(question)]
	return sql, ok
}

// Store records the translation and persists the full mapping before
// returning, so a crash immediately afterwards cannot lose the entry.
func (c *Cache) Store(question, sql string) error {
	c.entries[Fingerprint(question)] = sql
	if err := c.store.Save(c.entries); err != nil {
		return fmt.Errorf("persist translation cache: %w", err)
	}
	return nil
}

func (c *Cache) Len() int {
	return len(c.entries)
}
