package resumes

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo keeps resumes in process memory.
type MemoryRepo struct {
	mu      sync.RWMutex
	resumes map[string]Resume
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{resumes: make(map[string]Resume)}
}

func (r *MemoryRepo) Create(ctx context.Context, resume Resume) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resumes[resume.ID] = cloneResume(resume)
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, userID, resumeID string) (Resume, error) {
	if err := ctx.Err(); err != nil {
		return Resume{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	resume, ok := r.resumes[resumeID]
	if !ok || resume.UserID != userID {
		return Resume{}, ErrNotFound
	}
	return cloneResume(resume), nil
}

func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	var owned []Resume
	for _, resume := range r.resumes {
		if resume.UserID == userID {
			owned = append(owned, cloneResume(resume))
		}
	}
	r.mu.RUnlock()

	sort.Slice(owned, func(i, j int) bool {
		if owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].ID > owned[j].ID
		}
		return owned[i].CreatedAt.After(owned[j].CreatedAt)
	})
	if offset >= len(owned) {
		return []Resume{}, nil
	}
	end := offset + limit
	if end > len(owned) {
		end = len(owned)
	}
	return owned[offset:end], nil
}

func (r *MemoryRepo) Update(ctx context.Context, resume Resume) error {
	return r.mutate(ctx, resume.UserID, resume.ID, func(existing *Resume) {
		existing.Title = resume.Title
		existing.Content = resume.Content.Normalize()
		existing.UpdatedAt = resume.UpdatedAt
	})
}

func (r *MemoryRepo) Delete(ctx context.Context, userID, resumeID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	resume, ok := r.resumes[resumeID]
	if !ok || resume.UserID != userID {
		return ErrNotFound
	}
	delete(r.resumes, resumeID)
	return nil
}

func (r *MemoryRepo) SaveScores(ctx context.Context, userID, resumeID string, scores Scores) error {
	return r.mutate(ctx, userID, resumeID, func(existing *Resume) {
		s := scores
		s.Recommendations = append([]string(nil), scores.Recommendations...)
		existing.Scores = &s
	})
}

func (r *MemoryRepo) RecordExport(ctx context.Context, userID, resumeID, objectKey string) error {
	return r.mutate(ctx, userID, resumeID, func(existing *Resume) {
		existing.DownloadCount++
		if objectKey != "" {
			existing.LastPDFKey = objectKey
		}
		existing.UpdatedAt = time.Now().UTC()
	})
}

func (r *MemoryRepo) mutate(ctx context.Context, userID, resumeID string, fn func(*Resume)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.resumes[resumeID]
	if !ok || existing.UserID != userID {
		return ErrNotFound
	}
	fn(&existing)
	r.resumes[resumeID] = existing
	return nil
}

func cloneResume(in Resume) Resume {
	out := in
	out.Content = in.Content.Normalize()
	if in.Scores != nil {
		s := *in.Scores
		s.Recommendations = append([]string(nil), in.Scores.Recommendations...)
		out.Scores = &s
	}
	return out
}

var _ Repo = (*MemoryRepo)(nil)
