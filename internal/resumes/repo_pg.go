package resumes

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const resumeColumns = `id, user_id, title, content, ats_score, content_score, recommendations, scored_at, download_count, last_pdf_key, created_at, updated_at`

func (r *PGRepo) Create(ctx context.Context, resume Resume) error {
	content, err := json.Marshal(resume.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	const query = `
INSERT INTO resumes (id, user_id, title, content, download_count, created_at, updated_at)
VALUES ($1, $2, $3, $4, 0, $5, $6)`
	_, err = r.DB.ExecContext(ctx, query,
		resume.ID,
		resume.UserID,
		resume.Title,
		content,
		resume.CreatedAt,
		resume.UpdatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID, resumeID string) (Resume, error) {
	const query = `SELECT ` + resumeColumns + ` FROM resumes WHERE id = $1 AND user_id = $2 LIMIT 1`
	resume, err := scanResume(r.DB.QueryRowContext(ctx, query, resumeID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Resume{}, ErrNotFound
	}
	return resume, err
}

// ListByUser lists resumes ordered newest-first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	const query = `
SELECT ` + resumeColumns + `
FROM resumes
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Resume, 0, limit)
	for rows.Next() {
		resume, err := scanResume(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, resume)
	}
	return out, rows.Err()
}

func (r *PGRepo) Update(ctx context.Context, resume Resume) error {
	content, err := json.Marshal(resume.Content)
	if err != nil {
		return fmt.Errorf("encode content: %w", err)
	}
	const query = `UPDATE resumes SET title = $3, content = $4, updated_at = $5 WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, resume.ID, resume.UserID, resume.Title, content, resume.UpdatedAt)
	return affectedOne(res, err)
}

func (r *PGRepo) Delete(ctx context.Context, userID, resumeID string) error {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM resumes WHERE id = $1 AND user_id = $2`, resumeID, userID)
	return affectedOne(res, err)
}

func (r *PGRepo) SaveScores(ctx context.Context, userID, resumeID string, scores Scores) error {
	recs, err := json.Marshal(scores.Recommendations)
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	const query = `
UPDATE resumes
SET ats_score = $3, content_score = $4, recommendations = $5, scored_at = $6
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, resumeID, userID, scores.ATSScore, scores.ContentScore, recs, scores.ScoredAt)
	return affectedOne(res, err)
}

func (r *PGRepo) RecordExport(ctx context.Context, userID, resumeID, objectKey string) error {
	const query = `
UPDATE resumes
SET download_count = download_count + 1, last_pdf_key = COALESCE(NULLIF($3, ''), last_pdf_key), updated_at = now()
WHERE id = $1 AND user_id = $2`
	res, err := r.DB.ExecContext(ctx, query, resumeID, userID, objectKey)
	return affectedOne(res, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanResume(row rowScanner) (Resume, error) {
	var (
		resume       Resume
		content      []byte
		atsScore     sql.NullInt64
		contentScore sql.NullFloat64
		recs         []byte
		scoredAt     sql.NullTime
		lastPDFKey   sql.NullString
	)
	if err := row.Scan(
		&resume.ID,
		&resume.UserID,
		&resume.Title,
		&content,
		&atsScore,
		&contentScore,
		&recs,
		&scoredAt,
		&resume.DownloadCount,
		&lastPDFKey,
		&resume.CreatedAt,
		&resume.UpdatedAt,
	); err != nil {
		return Resume{}, err
	}
	if err := json.Unmarshal(content, &resume.Content); err != nil {
		return Resume{}, fmt.Errorf("decode content: %w", err)
	}
	resume.Content = resume.Content.Normalize()
	resume.LastPDFKey = lastPDFKey.String
	if scoredAt.Valid {
		scores := &Scores{
			ATSScore:     int(atsScore.Int64),
			ContentScore: contentScore.Float64,
			ScoredAt:     scoredAt.Time,
		}
		if len(recs) > 0 {
			if err := json.Unmarshal(recs, &scores.Recommendations); err != nil {
				return Resume{}, fmt.Errorf("decode recommendations: %w", err)
			}
		}
		resume.Scores = scores
	}
	return resume, nil
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Repo = (*PGRepo)(nil)
