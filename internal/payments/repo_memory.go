package payments

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo keeps intents in process memory.
type MemoryRepo struct {
	mu        sync.Mutex
	intents   map[string]Intent
	bySession map[string]string
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		intents:   make(map[string]Intent),
		bySession: make(map[string]string),
	}
}

func (r *MemoryRepo) Create(ctx context.Context, intent Intent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.bySession[intent.SessionID]; exists {
		return ErrDuplicateSession
	}
	r.intents[intent.ID] = intent
	r.bySession[intent.SessionID] = intent.ID
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, intentID string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[intentID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return intent, nil
}

func (r *MemoryRepo) GetBySession(ctx context.Context, sessionID string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.bySession[sessionID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	return r.intents[id], nil
}

func (r *MemoryRepo) GetByPaymentID(ctx context.Context, paymentID string) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if paymentID == "" {
		return Intent{}, ErrNotFound
	}
	for _, intent := range r.intents {
		if intent.ExternalPaymentID == paymentID {
			return intent, nil
		}
	}
	return Intent{}, ErrNotFound
}

func (r *MemoryRepo) Transition(ctx context.Context, intentID string, t Transition) (Intent, error) {
	if err := ctx.Err(); err != nil {
		return Intent{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[intentID]
	if !ok {
		return Intent{}, ErrNotFound
	}
	if intent.Status != t.From {
		return Intent{}, ErrConflict
	}
	applyTransition(&intent, t)
	r.intents[intentID] = intent
	return intent, nil
}

func (r *MemoryRepo) ClaimGrant(ctx context.Context, intentID string, at time.Time, lease time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[intentID]
	if !ok {
		return ErrNotFound
	}
	if !grantClaimable(intent, at, lease) {
		return ErrConflict
	}
	stamp := at.UTC()
	intent.GrantClaimedAt = &stamp
	intent.UpdatedAt = stamp
	r.intents[intentID] = intent
	return nil
}

// grantClaimable is the condition the SQL and Mongo ClaimGrant filters encode.
func grantClaimable(intent Intent, at time.Time, lease time.Duration) bool {
	if intent.Status != StatusCompleted || intent.GrantedAt != nil {
		return false
	}
	return intent.GrantClaimedAt == nil || intent.GrantClaimedAt.Before(at.Add(-lease))
}

func (r *MemoryRepo) MarkGranted(ctx context.Context, intentID string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	intent, ok := r.intents[intentID]
	if !ok {
		return false, ErrNotFound
	}
	if intent.GrantedAt != nil {
		return false, nil
	}
	stamp := at.UTC()
	intent.GrantedAt = &stamp
	intent.UpdatedAt = stamp
	r.intents[intentID] = intent
	return true, nil
}

// applyTransition mirrors the column updates the SQL and Mongo repos perform.
func applyTransition(intent *Intent, t Transition) {
	at := t.At.UTC()
	intent.Status = t.To
	intent.UpdatedAt = at
	if t.ExternalPaymentID != "" {
		intent.ExternalPaymentID = t.ExternalPaymentID
	}
	if t.ExternalCustomerID != "" {
		intent.ExternalCustomerID = t.ExternalCustomerID
	}
	switch t.To {
	case StatusCompleted:
		intent.CompletedAt = &at
	case StatusFailed:
		intent.FailedAt = &at
	case StatusRefunded:
		intent.RefundedAt = &at
	}
}

var _ Repo = (*MemoryRepo)(nil)
