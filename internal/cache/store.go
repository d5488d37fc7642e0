package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store is the durable backing for the translation cache. The on-disk
// format is a flat JSON object keyed by fingerprint.
type Store interface {
	Load() (map[string]string, error)
	Save(entries map[string]string) error
}

type FileStore struct {
	Path string
}

func (s *FileStore) Load() (map[string]string, error) {
	raw, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cache file: %w", err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode cache file: %w", err)
	}
	return entries, nil
}

// Save rewrites the whole mapping through a temp file and rename so
// the cache file is never observed half-written.
func (s *FileStore) Save(entries map[string]string) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode cache file: %w", err)
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".cache-*.json")
	if err != nil {
		return fmt.Errorf("create cache temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close cache temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("finalize cache file: %w", err)
	}
	return nil
}

// MemoryStore keeps the mapping in memory only. Tests and dry runs
// use it in place of the file store.
type MemoryStore struct {
	Entries map[string]string
	Saves   int
}

func (s *MemoryStore) Load() (map[string]string, error) {
	copied := make(map[string]string, len(s.Entries))
	for key, value := range s.Entries {
		copied[key] = value
	}
	return copied, nil
}

func (s *MemoryStore) Save(entries map[string]string) error {
	copied := make(map[string]string, len(entries))
	for key, value := range entries {
		copied[key] = value
	}
	s.Entries = copied
	s.Saves++
	return nil
}
