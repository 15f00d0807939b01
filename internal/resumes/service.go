package resumes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"resume-builder/internal/queue"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/resume/ats"
	"resume-builder/resume/model"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)

// Service contains business logic for resumes.
type Service struct {
	Repo    Repo
	Queue   queue.Client
	Objects object.ObjectStore
	now     func() time.Time
}

func NewService(repo Repo, q queue.Client, objects object.ObjectStore) *Service {
	if repo == nil {
		repo = NewMemoryRepo()
	}
	return &Service{Repo: repo, Queue: q, Objects: objects, now: time.Now}
}

// CreateInput carries the caller-supplied fields for a new resume.
type CreateInput struct {
	Title   string
	Content model.Content
}

// UpdateInput replaces the title when set and the content wholesale when set.
type UpdateInput struct {
	Title   *string
	Content *model.Content
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (Resume, error) {
	if strings.TrimSpace(userID) == "" {
		return Resume{}, fmt.Errorf("%w: user id required", ErrInvalidInput)
	}
	if err := in.Content.Validate(); err != nil {
		return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultTitle
	}
	now := s.clock()
	resume := Resume{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		Content:   in.Content.Normalize(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, resume); err != nil {
		return Resume{}, err
	}
	return resume, nil
}

// List returns the owner's resumes newest first. Out-of-range paging values
// are clamped rather than rejected.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Resume, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

func (s *Service) Get(ctx context.Context, userID, resumeID string) (Resume, error) {
	if strings.TrimSpace(resumeID) == "" {
		return Resume{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, resumeID)
}

func (s *Service) Update(ctx context.Context, userID, resumeID string, in UpdateInput) (Resume, error) {
	existing, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return Resume{}, err
	}
	if in.Title != nil {
		if title := strings.TrimSpace(*in.Title); title != "" {
			existing.Title = title
		}
	}
	if in.Content != nil {
		if err := in.Content.Validate(); err != nil {
			return Resume{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		existing.Content = in.Content.Normalize()
	}
	existing.UpdatedAt = s.clock()
	if err := s.Repo.Update(ctx, existing); err != nil {
		return Resume{}, err
	}
	return existing, nil
}

// Delete removes the resume and, best effort, its last exported PDF.
func (s *Service) Delete(ctx context.Context, userID, resumeID string) error {
	existing, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return err
	}
	if err := s.Repo.Delete(ctx, userID, resumeID); err != nil {
		return err
	}
	if existing.LastPDFKey != "" && s.Objects != nil {
		if err := s.Objects.Delete(ctx, existing.LastPDFKey); err != nil {
			telemetry.Warn("resumes.delete.object_failed", map[string]any{
				"resume_id": resumeID,
				"error":     err.Error(),
			})
		}
	}
	return nil
}

// Score runs the ATS engine over the stored content and caches the result.
func (s *Service) Score(ctx context.Context, userID, resumeID string) (ats.ScoreResult, Resume, error) {
	resume, err := s.Get(ctx, userID, resumeID)
	if err != nil {
		return ats.ScoreResult{}, Resume{}, err
	}
	result, err := ats.ComputeScore(resume.Content.Normalize())
	if err != nil {
		return ats.ScoreResult{}, Resume{}, err
	}
	scores := Scores{
		ATSScore:        result.ATSScore,
		ContentScore:    result.Details.ContentScore,
		Recommendations: result.Recommendations,
		ScoredAt:        s.clock(),
	}
	if err := s.Repo.SaveScores(ctx, userID, resumeID, scores); err != nil {
		return ats.ScoreResult{}, Resume{}, err
	}
	metrics.IncScoresComputed()
	resume.Scores = &scores
	return result, resume, nil
}

// RefreshScore is the worker entry point for queued score jobs.
func (s *Service) RefreshScore(ctx context.Context, ownerID, resumeID string) error {
	_, _, err := s.Score(ctx, ownerID, resumeID)
	return err
}

// ScoreAsync checks ownership and queues a score refresh.
func (s *Service) ScoreAsync(ctx context.Context, userID, resumeID, requestID string) (queue.Message, error) {
	if s.Queue == nil {
		return queue.Message{}, ErrQueueDisabled
	}
	if _, err := s.Get(ctx, userID, resumeID); err != nil {
		return queue.Message{}, err
	}
	msg := queue.NewScoreMessage(userID, resumeID, requestID, s.clock())
	if err := s.Queue.Send(ctx, msg); err != nil {
		return queue.Message{}, fmt.Errorf("enqueue score: %w", err)
	}
	return msg, nil
}

// RecordExport bumps the download counter and remembers the stored PDF key.
// An empty key keeps the previous one.
func (s *Service) RecordExport(ctx context.Context, userID, resumeID, objectKey string) error {
	return s.Repo.RecordExport(ctx, userID, resumeID, objectKey)
}

func (s *Service) clock() time.Time {
	if s.now == nil {
		return time.Now().UTC()
	}
	return s.now().UTC()
}
