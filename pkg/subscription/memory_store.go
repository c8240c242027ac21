package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory. Intended for tests and local development.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]Subscription
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]Subscription)}
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[userID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) Save(ctx context.Context, subscription *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.subs[subscription.UserID] = *subscription
	return nil
}
