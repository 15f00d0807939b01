package resumes

import "context"

// Repo persists resumes. Every lookup is scoped to the owner; a resume owned
// by someone else is reported as ErrNotFound.
type Repo interface {
	Create(ctx context.Context, resume Resume) error
	GetByID(ctx context.Context, userID, resumeID string) (Resume, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error)
	Update(ctx context.Context, resume Resume) error
	Delete(ctx context.Context, userID, resumeID string) error
	SaveScores(ctx context.Context, userID, resumeID string, scores Scores) error
	RecordExport(ctx context.Context, userID, resumeID, objectKey string) error
}
