package ratelimit

import (
	"context"
	"sync"
	"time"
)

type recordKey struct {
	userID string
	action Action
}

type MemoryStore struct {
	mu      sync.Mutex
	records map[recordKey]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[recordKey]time.Time),
	}
}

func (s *MemoryStore) LastAction(ctx context.Context, userID string, action Action) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.records[recordKey{userID: userID, action: action}]
	return at, ok, nil
}

func (s *MemoryStore) SetLastAction(ctx context.Context, userID string, action Action, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[recordKey{userID: userID, action: action}] = at
	return nil
}
