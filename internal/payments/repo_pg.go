package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"resume-builder/internal/shared/storage/db"
)

// PGRepo implements Repo using Postgres. The unique index on session_id
// enforces the 1:1 session mapping.
type PGRepo struct {
	DB *sql.DB
}

const intentColumns = `id, user_id, plan, amount_cents, currency, status, session_id, external_payment_id, external_customer_id, client_ip, user_agent, created_at, updated_at, completed_at, granted_at, failed_at, refunded_at, grant_claimed_at`

func (r *PGRepo) Create(ctx context.Context, intent Intent) error {
	const query = `
INSERT INTO payments (id, user_id, plan, amount_cents, currency, status, session_id, client_ip, user_agent, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.DB.ExecContext(ctx, query,
		intent.ID,
		intent.UserID,
		intent.Plan,
		intent.AmountCents,
		intent.Currency,
		string(intent.Status),
		intent.SessionID,
		nullable(intent.ClientIP),
		nullable(intent.UserAgent),
		intent.CreatedAt,
		intent.UpdatedAt,
	)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateSession
	}
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, intentID string) (Intent, error) {
	return r.getOne(ctx, `SELECT `+intentColumns+` FROM payments WHERE id = $1 LIMIT 1`, intentID)
}

func (r *PGRepo) GetBySession(ctx context.Context, sessionID string) (Intent, error) {
	return r.getOne(ctx, `SELECT `+intentColumns+` FROM payments WHERE session_id = $1 LIMIT 1`, sessionID)
}

func (r *PGRepo) GetByPaymentID(ctx context.Context, paymentID string) (Intent, error) {
	if paymentID == "" {
		return Intent{}, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+intentColumns+` FROM payments WHERE external_payment_id = $1 ORDER BY created_at DESC LIMIT 1`, paymentID)
}

// Transition runs a single conditional UPDATE so concurrent reconcilers are
// serialized by the row lock; the loser matches zero rows.
func (r *PGRepo) Transition(ctx context.Context, intentID string, t Transition) (Intent, error) {
	stampColumn, err := stampColumnFor(t.To)
	if err != nil {
		return Intent{}, err
	}
	query := fmt.Sprintf(`
UPDATE payments
SET status = $3,
    updated_at = $4,
    %s = $4,
    external_payment_id = COALESCE($5, external_payment_id),
    external_customer_id = COALESCE($6, external_customer_id)
WHERE id = $1 AND status = $2
RETURNING `+intentColumns, stampColumn)

	intent, err := scanIntent(r.DB.QueryRowContext(ctx, query,
		intentID,
		string(t.From),
		string(t.To),
		t.At.UTC(),
		nullable(t.ExternalPaymentID),
		nullable(t.ExternalCustomerID),
	))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, intentID); getErr != nil {
			return Intent{}, getErr
		}
		return Intent{}, ErrConflict
	}
	return intent, err
}

// ClaimGrant stamps grant_claimed_at when the intent is completed, not
// granted, and no live lease exists. Concurrent claimers serialize on the row.
func (r *PGRepo) ClaimGrant(ctx context.Context, intentID string, at time.Time, lease time.Duration) error {
	const query = `
UPDATE payments
SET grant_claimed_at = $2, updated_at = $2
WHERE id = $1
  AND status = 'completed'
  AND granted_at IS NULL
  AND (grant_claimed_at IS NULL OR grant_claimed_at < $3)`
	at = at.UTC()
	res, err := r.DB.ExecContext(ctx, query, intentID, at, at.Add(-lease))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, intentID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

func (r *PGRepo) MarkGranted(ctx context.Context, intentID string, at time.Time) (bool, error) {
	const query = `UPDATE payments SET granted_at = $2, updated_at = $2 WHERE id = $1 AND granted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, intentID, at.UTC())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		if _, err := r.GetByID(ctx, intentID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func (r *PGRepo) getOne(ctx context.Context, query, arg string) (Intent, error) {
	intent, err := scanIntent(r.DB.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return Intent{}, ErrNotFound
	}
	return intent, err
}

func stampColumnFor(status Status) (string, error) {
	switch status {
	case StatusCompleted:
		return "completed_at", nil
	case StatusFailed:
		return "failed_at", nil
	case StatusRefunded:
		return "refunded_at", nil
	default:
		return "", fmt.Errorf("%w: cannot transition to %q", ErrValidation, status)
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIntent(row rowScanner) (Intent, error) {
	var (
		intent                          Intent
		status                          string
		paymentID, customerID, ip, ua   sql.NullString
		completed, granted, failed, ref sql.NullTime
		claimed                         sql.NullTime
	)
	if err := row.Scan(
		&intent.ID,
		&intent.UserID,
		&intent.Plan,
		&intent.AmountCents,
		&intent.Currency,
		&status,
		&intent.SessionID,
		&paymentID,
		&customerID,
		&ip,
		&ua,
		&intent.CreatedAt,
		&intent.UpdatedAt,
		&completed,
		&granted,
		&failed,
		&ref,
		&claimed,
	); err != nil {
		return Intent{}, err
	}
	intent.Status = Status(status)
	intent.ExternalPaymentID = paymentID.String
	intent.ExternalCustomerID = customerID.String
	intent.ClientIP = ip.String
	intent.UserAgent = ua.String
	intent.CompletedAt = timePtr(completed)
	intent.GrantedAt = timePtr(granted)
	intent.FailedAt = timePtr(failed)
	intent.RefundedAt = timePtr(ref)
	intent.GrantClaimedAt = timePtr(claimed)
	return intent, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullable(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

var _ Repo = (*PGRepo)(nil)
