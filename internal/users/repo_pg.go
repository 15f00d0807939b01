package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"resume-builder/internal/shared/storage/db"
)

type PGRepo struct {
	DB *sql.DB
}

const userColumns = `id, email, password_hash, first_name, last_name, phone, google_sub, picture_url, created_at, updated_at, last_login_at`

func (r *PGRepo) Create(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, password_hash, first_name, last_name, phone, google_sub, picture_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		NormalizeEmail(user.Email),
		nullableString(user.PasswordHash),
		user.FirstName,
		user.LastName,
		nullableString(user.Phone),
		nullableString(user.GoogleSub),
		nullableString(user.PictureURL),
	)
	if db.IsUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *PGRepo) Update(ctx context.Context, user User) error {
	const query = `
UPDATE users SET
  password_hash = COALESCE($2, password_hash),
  first_name = $3,
  last_name = $4,
  phone = $5,
  google_sub = $6,
  picture_url = $7,
  last_login_at = $8,
  updated_at = now()
WHERE id = $1`
	var lastLogin any
	if user.LastLoginAt != nil {
		lastLogin = user.LastLoginAt.UTC()
	}
	res, err := r.DB.ExecContext(ctx, query,
		user.ID,
		nullableString(user.PasswordHash),
		user.FirstName,
		user.LastName,
		nullableString(user.Phone),
		nullableString(user.GoogleSub),
		nullableString(user.PictureURL),
		lastLogin,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 LIMIT 1`, userID)
}

func (r *PGRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = $1 LIMIT 1`, NormalizeEmail(email))
}

func (r *PGRepo) getOne(ctx context.Context, query string, arg string) (User, error) {
	var user User
	var passwordHash, phone, googleSub, pictureURL sql.NullString
	var updatedAt, lastLogin sql.NullTime
	err := r.DB.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&passwordHash,
		&user.FirstName,
		&user.LastName,
		&phone,
		&googleSub,
		&pictureURL,
		&user.CreatedAt,
		&updatedAt,
		&lastLogin,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	user.PasswordHash = passwordHash.String
	user.Phone = phone.String
	user.GoogleSub = googleSub.String
	user.PictureURL = pictureURL.String
	if updatedAt.Valid {
		user.UpdatedAt = updatedAt.Time
	} else {
		user.UpdatedAt = user.CreatedAt
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return user, nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
