package storage

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps responses in memory. It backs local development runs
// without a database and the engine tests.
type MemoryStore struct {
	mu        sync.Mutex
	responses []Response
	nextID    uint
}

var _ ResponseStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (s *MemoryStore) Save(ctx context.Context, response *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if response == nil {
		return fmt.Errorf("response cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *response
	stored.ID = s.nextID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.nextID++
	s.responses = append(s.responses, stored)
	response.ID = stored.ID
	return nil
}

func (s *MemoryStore) ListAll(ctx context.Context) ([]Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Response, len(s.responses))
	copy(out, s.responses)
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.responses)), nil
}
