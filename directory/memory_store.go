package directory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]Entry
	branches bool
}

type MemoryStoreOption func(*MemoryStore)

// WithoutBranches makes the store behave like a flat key-value backend that
// does not model organizational branches.
func WithoutBranches() MemoryStoreOption {
	return func(s *MemoryStore) {
		s.branches = false
	}
}

func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		entries:  map[string]Entry{},
		branches: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *MemoryStore) Find(_ context.Context, dn string) (Entry, error) {
	key := NormalizeDN(dn)
	if key == "" {
		return Entry{}, fmt.Errorf("directory: dn is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[key]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, dn)
	}
	return entry.Clone(), nil
}

func (s *MemoryStore) FindAll(_ context.Context, baseDN string, objectClass string, filter Filter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0)
	for key, entry := range s.entries {
		if !IsDescendant(key, baseDN) {
			continue
		}
		if objectClass != "" && !strings.EqualFold(entry.ObjectClass, objectClass) {
			continue
		}
		if !Match(filter, entry) {
			continue
		}
		out = append(out, entry.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return NormalizeDN(out[i].DN) < NormalizeDN(out[j].DN)
	})
	return out, nil
}

func (s *MemoryStore) Persist(_ context.Context, entry Entry) error {
	key := NormalizeDN(entry.DN)
	if key == "" {
		return fmt.Errorf("directory: dn is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.entries[key]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, entry.DN)
	}
	s.entries[key] = entry.Clone()
	return nil
}

func (s *MemoryStore) Merge(_ context.Context, entry Entry) error {
	key := NormalizeDN(entry.DN)
	if key == "" {
		return fmt.Errorf("directory: dn is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry.Clone()
	return nil
}

func (s *MemoryStore) Contains(_ context.Context, dn string, objectClass string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[NormalizeDN(dn)]
	if !ok {
		return false, nil
	}
	if objectClass != "" && !strings.EqualFold(entry.ObjectClass, objectClass) {
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) HasBranchesSupport(string) bool {
	return s.branches
}

// Len reports the number of stored entries.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ Store = (*MemoryStore)(nil)
