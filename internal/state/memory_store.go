package state

import (
	"context"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Progress is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[string]Snapshot)}
}

func (s *MemoryStore) Load(_ context.Context, target string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snaps[target], nil
}

func (s *MemoryStore) Save(_ context.Context, target string, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[target] = snap
	return nil
}
