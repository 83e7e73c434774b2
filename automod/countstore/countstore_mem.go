package countstore

import (
	"context"
	"sync"
	"time"
)

// In-process counters. Period buckets never expire; fine for tests and single small deployments.
type MemCountStore struct {
	mu             sync.RWMutex
	Counts         map[string]int
	DistinctCounts map[string]map[string]bool
}

var _ CountStore = (*MemCountStore)(nil)

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		Counts:         make(map[string]int),
		DistinctCounts: make(map[string]map[string]bool),
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Counts[periodBucket(name, val, period)], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		s.Counts[periodBucketAt(name, val, p, now)]++
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.DistinctCounts[periodBucket(name, bucket, period)]), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		k := periodBucketAt(name, bucket, p, now)
		m, ok := s.DistinctCounts[k]
		if !ok {
			m = make(map[string]bool)
			s.DistinctCounts[k] = m
		}
		m[val] = true
	}
	return nil
}
