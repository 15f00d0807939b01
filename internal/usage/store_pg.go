package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed entitlement store.
func NewPGStore(db *sql.DB) Store {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string, now time.Time) (Entitlement, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entitlement{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	e, err := s.lockAndEnsure(ctx, tx, userID, now)
	if err != nil {
		return Entitlement{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entitlement{}, err
	}
	return e, nil
}

func (s *pgStore) Grant(ctx context.Context, userID string, grant Grant, now time.Time) (Entitlement, error) {
	const query = `
INSERT INTO entitlements (user_id, plan, downloads_remaining, expires_at, external_customer_id, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE SET
  plan = EXCLUDED.plan,
  downloads_remaining = EXCLUDED.downloads_remaining,
  expires_at = EXCLUDED.expires_at,
  external_customer_id = COALESCE(EXCLUDED.external_customer_id, entitlements.external_customer_id),
  updated_at = EXCLUDED.updated_at
RETURNING plan, downloads_remaining, expires_at, external_customer_id, updated_at`
	var expiresAt any
	if grant.ExpiresAt != nil {
		expiresAt = grant.ExpiresAt.UTC()
	}
	row := s.DB.QueryRowContext(ctx, query,
		userID,
		grant.Plan,
		grant.Downloads,
		expiresAt,
		nullableString(grant.ExternalCustomerID),
		now,
	)
	e, err := scanEntitlement(row)
	if err != nil {
		return Entitlement{}, err
	}
	e.UserID = userID
	return e, nil
}

func (s *pgStore) Consume(ctx context.Context, userID string, now time.Time) (Entitlement, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entitlement{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	e, err := s.lockAndEnsure(ctx, tx, userID, now)
	if err != nil {
		return Entitlement{}, err
	}
	if e.Expired(now) {
		err = ErrPlanExpired
		return Entitlement{}, err
	}
	if e.DownloadsRemaining <= 0 {
		err = ErrLimitReached
		return Entitlement{}, err
	}
	e.DownloadsRemaining--
	e.UpdatedAt = now
	if _, err = tx.ExecContext(ctx, `
UPDATE entitlements SET downloads_remaining = $1, updated_at = $2 WHERE user_id = $3`,
		e.DownloadsRemaining, now, userID); err != nil {
		return Entitlement{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entitlement{}, err
	}
	return e, nil
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (Entitlement, error) {
	row := tx.QueryRowContext(ctx, `
SELECT plan, downloads_remaining, expires_at, external_customer_id, updated_at
FROM entitlements WHERE user_id = $1 FOR UPDATE`, userID)
	e, err := scanEntitlement(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e = defaultEntitlement(userID, now)
			if _, err = tx.ExecContext(ctx, `
INSERT INTO entitlements (user_id, plan, downloads_remaining, updated_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO NOTHING`,
				userID, e.Plan, e.DownloadsRemaining, now); err != nil {
				return Entitlement{}, err
			}
			return e, nil
		}
		return Entitlement{}, err
	}
	e.UserID = userID
	return e, nil
}

func scanEntitlement(row *sql.Row) (Entitlement, error) {
	var e Entitlement
	var expiresAt sql.NullTime
	var customerID sql.NullString
	if err := row.Scan(&e.Plan, &e.DownloadsRemaining, &expiresAt, &customerID, &e.UpdatedAt); err != nil {
		return Entitlement{}, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time.UTC()
		e.ExpiresAt = &t
	}
	if customerID.Valid {
		e.ExternalCustomerID = customerID.String
	}
	return e, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
