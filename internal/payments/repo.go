package payments

import (
	"context"
	"time"
)

// Repo persists payment intents.
//
// Transition is a compare-and-set on status: it applies only when the stored
// status equals t.From and returns ErrConflict otherwise. ClaimGrant takes
// the grant lease on a completed, not yet granted intent; it returns
// ErrConflict when the intent is in another state or a lease newer than
// lease is still held. MarkGranted sets granted_at once and reports whether
// this call set it.
type Repo interface {
	Create(ctx context.Context, intent Intent) error
	GetByID(ctx context.Context, intentID string) (Intent, error)
	GetBySession(ctx context.Context, sessionID string) (Intent, error)
	GetByPaymentID(ctx context.Context, paymentID string) (Intent, error)
	Transition(ctx context.Context, intentID string, t Transition) (Intent, error)
	ClaimGrant(ctx context.Context, intentID string, at time.Time, lease time.Duration) error
	MarkGranted(ctx context.Context, intentID string, at time.Time) (bool, error)
}
