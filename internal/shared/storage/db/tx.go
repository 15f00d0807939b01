package db

import (
	"context"
	"database/sql"
	"fmt"
)

// WithTx runs fn inside a transaction, committing when fn returns nil.
func WithTx(ctx context.Context, database *sql.DB, fn func(*sql.Tx) error) (err error) {
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Pinger adapts a *sql.DB into a health check.
type Pinger struct {
	DB *sql.DB
}

// Name identifies the check in health output.
func (p Pinger) Name() string { return "database" }

// Check pings the database.
func (p Pinger) Check(ctx context.Context) error {
	if p.DB == nil {
		return fmt.Errorf("database not configured")
	}
	return p.DB.PingContext(ctx)
}
