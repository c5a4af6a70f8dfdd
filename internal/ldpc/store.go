package ldpc

import (
	"fmt"
)

// CodeEntry pairs a parity-check matrix with its derived generator.
type CodeEntry struct {
	H *ParityCheckMatrix
	G *GeneratorMatrix
}

// Store holds the named LDPC code configurations for a link: by convention
// a low-rate, high-redundancy entry for the authentication slot and a
// higher-rate entry for the payload slots. The codec itself is
// matrix-agnostic; callers pick the entry per slot.
//
// Entries are created once at startup and never mutated, so a Store is safe
// for concurrent readers across links without locking.
type Store struct {
	entries map[string]*CodeEntry
}

// NewStore creates an empty matrix store.
func NewStore() *Store {
	return &Store{entries: make(map[string]*CodeEntry)}
}

// LoadFile parses an alist file, derives its generator, and registers the
// pair under the given name. A rank-deficient matrix still loads (the
// generator is best-effort); the deficiency is reported through the entry
// for the caller to surface.
func (s *Store) LoadFile(name, path string) (*CodeEntry, error) {
	h, err := LoadAlistFile(path)
	if err != nil {
		return nil, fmt.Errorf("matrix %q: %w", name, err)
	}
	h.Name = name
	return s.Register(name, h)
}

// Register derives a generator for an already-parsed matrix and stores the
// pair. It replaces any previous entry with the same name; this only
// happens before the store is shared.
func (s *Store) Register(name string, h *ParityCheckMatrix) (*CodeEntry, error) {
	g, err := Generator(h)
	if err != nil {
		return nil, fmt.Errorf("matrix %q: generator construction failed: %w", name, err)
	}

	entry := &CodeEntry{H: h, G: g}
	s.entries[name] = entry
	return entry, nil
}

// Get returns the named entry, or false if it was never loaded.
func (s *Store) Get(name string) (*CodeEntry, bool) {
	e, ok := s.entries[name]
	return e, ok
}

// Names returns the registered configuration names.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}
