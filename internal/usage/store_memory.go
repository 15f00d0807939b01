package usage

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]Entitlement
}

// NewMemoryStore returns a process-local Store.
func NewMemoryStore() Store {
	return &memoryStore{data: make(map[string]Entitlement)}
}

func (s *memoryStore) Get(ctx context.Context, userID string, now time.Time) (Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return Entitlement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensureLocked(userID, now), nil
}

func (s *memoryStore) Grant(ctx context.Context, userID string, grant Grant, now time.Time) (Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return Entitlement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(userID, now)
	e.Plan = grant.Plan
	e.DownloadsRemaining = grant.Downloads
	e.ExpiresAt = copyTime(grant.ExpiresAt)
	if grant.ExternalCustomerID != "" {
		e.ExternalCustomerID = grant.ExternalCustomerID
	}
	e.UpdatedAt = now
	s.data[userID] = e
	return e, nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, now time.Time) (Entitlement, error) {
	if err := ctx.Err(); err != nil {
		return Entitlement{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.ensureLocked(userID, now)
	if e.Expired(now) {
		return Entitlement{}, ErrPlanExpired
	}
	if e.DownloadsRemaining <= 0 {
		return Entitlement{}, ErrLimitReached
	}
	e.DownloadsRemaining--
	e.UpdatedAt = now
	s.data[userID] = e
	return e, nil
}

func (s *memoryStore) ensureLocked(userID string, now time.Time) Entitlement {
	e, ok := s.data[userID]
	if !ok {
		e = defaultEntitlement(userID, now)
		s.data[userID] = e
	}
	e.ExpiresAt = copyTime(e.ExpiresAt)
	return e
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
