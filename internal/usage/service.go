package usage

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Store persists entitlements. Consume must check and decrement atomically.
type Store interface {
	Get(ctx context.Context, userID string, now time.Time) (Entitlement, error)
	Grant(ctx context.Context, userID string, grant Grant, now time.Time) (Entitlement, error)
	Consume(ctx context.Context, userID string, now time.Time) (Entitlement, error)
}

// Service manages entitlements via an underlying store.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService constructs a Service over store, defaulting to memory.
func NewService(store Store) *Service {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Service{store: store, now: time.Now}
}

// Get returns the current entitlement, initializing the free plan if absent.
func (s *Service) Get(ctx context.Context, userID string) (Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return Entitlement{}, fmt.Errorf("user id is required")
	}
	return s.store.Get(ctx, userID, s.clock())
}

// Grant overwrites plan and remaining downloads. Applying the same grant
// twice leaves the same state.
func (s *Service) Grant(ctx context.Context, userID string, grant Grant) (Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return Entitlement{}, fmt.Errorf("%w: user id is required", ErrInvalidGrant)
	}
	if strings.TrimSpace(grant.Plan) == "" || grant.Downloads < 0 {
		return Entitlement{}, fmt.Errorf("%w: plan and non-negative downloads required", ErrInvalidGrant)
	}
	return s.store.Grant(ctx, userID, grant, s.clock())
}

// Consume spends one download or returns ErrLimitReached.
func (s *Service) Consume(ctx context.Context, userID string) (Entitlement, error) {
	if strings.TrimSpace(userID) == "" {
		return Entitlement{}, fmt.Errorf("user id is required")
	}
	return s.store.Consume(ctx, userID, s.clock())
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}
