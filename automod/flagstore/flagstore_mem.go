package flagstore

import (
	"context"
	"slices"
	"sync"
)

type MemFlagStore struct {
	mu   sync.RWMutex
	Data map[string][]string
}

var _ FlagStore = (*MemFlagStore)(nil)

func NewMemFlagStore() *MemFlagStore {
	return &MemFlagStore{
		Data: make(map[string][]string),
	}
}

// Flags are returned sorted.
func (s *MemFlagStore) Get(ctx context.Context, key string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.Data[key]
	if !ok {
		return []string{}, nil
	}
	return slices.Clone(v), nil
}

func (s *MemFlagStore) Add(ctx context.Context, key string, flags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := append(s.Data[key], flags...)
	slices.Sort(v)
	s.Data[key] = slices.Compact(v)
	return nil
}

func (s *MemFlagStore) Remove(ctx context.Context, key string, flags []string) error {
	if len(flags) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.Data[key]
	if !ok {
		return nil
	}
	s.Data[key] = slices.DeleteFunc(slices.Clone(v), func(f string) bool {
		return slices.Contains(flags, f)
	})
	return nil
}
