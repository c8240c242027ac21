package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryKey struct {
	userID   uuid.UUID
	monthKey string
	action   Action
}

// MemoryStore implements Store in process memory.
// Suitable for tests and single-instance development setups only.
type MemoryStore struct {
	mu      sync.Mutex
	records map[memoryKey]*Record
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[memoryKey]*Record)}
}

func (s *MemoryStore) Get(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[memoryKey{userID, monthKey, action}]; ok {
		return rec.Count, nil
	}
	return 0, nil
}

func (s *MemoryStore) Increment(ctx context.Context, userID uuid.UUID, monthKey string, action Action) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryKey{userID, monthKey, action}
	rec, ok := s.records[key]
	if !ok {
		rec = &Record{UserID: userID, MonthKey: monthKey, Action: action}
		s.records[key] = rec
	}
	rec.Count++
	rec.UpdatedAt = time.Now().UTC()

	return rec.Count, nil
}

// Len returns the number of stored counter rows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
