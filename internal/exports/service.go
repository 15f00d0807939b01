package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"resume-builder/internal/resumes"
	"resume-builder/internal/shared/metrics"
	"resume-builder/internal/shared/storage/object"
	"resume-builder/internal/shared/telemetry"
	"resume-builder/internal/shared/util"
	"resume-builder/internal/usage"
	"resume-builder/resume/render"
)

const ContentTypePDF = "application/pdf"

// ErrNoStoredExport means the resume has never been exported.
var ErrNoStoredExport = errors.New("no stored export")

// ResumeSource loads owned resumes and records exports against them.
type ResumeSource interface {
	Get(ctx context.Context, userID, resumeID string) (resumes.Resume, error)
	RecordExport(ctx context.Context, userID, resumeID, objectKey string) error
}

// Quota spends one download per export.
type Quota interface {
	Consume(ctx context.Context, userID string) (usage.Entitlement, error)
}

// Export is a rendered PDF ready to stream.
type Export struct {
	FileName           string
	Data               []byte
	ObjectKey          string
	DownloadsRemaining int
}

// Service renders, stores and meters PDF exports.
type Service struct {
	Resumes ResumeSource
	Quota   Quota
	Store   object.ObjectStore
	now     func() time.Time
}

func NewService(resumes ResumeSource, quota Quota, store object.ObjectStore) *Service {
	return &Service{Resumes: resumes, Quota: quota, Store: store, now: time.Now}
}

// Export renders the resume and spends one download. The download is only
// consumed once rendering has succeeded. A storage failure is logged and
// does not fail the export.
func (s *Service) Export(ctx context.Context, userID, resumeID string) (Export, error) {
	start := time.Now()
	resume, err := s.Resumes.Get(ctx, userID, resumeID)
	if err != nil {
		return Export{}, err
	}

	data, err := render.RenderResume(resume.Title, resume.Content)
	if err != nil {
		return Export{}, fmt.Errorf("render resume: %w", err)
	}

	ent, err := s.Quota.Consume(ctx, userID)
	if err != nil {
		if errors.Is(err, usage.ErrLimitReached) {
			metrics.IncExportsDenied()
		}
		return Export{}, err
	}

	key := s.store(ctx, userID, resumeID, data)
	if err := s.Resumes.RecordExport(ctx, userID, resumeID, key); err != nil {
		telemetry.Warn("exports.record_failed", map[string]any{
			"resume_id": resumeID,
			"user_id":   userID,
			"error":     err.Error(),
		})
	}

	metrics.IncExportsCompleted()
	metrics.ObserveExportDurationMs(float64(time.Since(start).Milliseconds()))
	return Export{
		FileName:           util.PDFFileName(resume.Title),
		Data:               data,
		ObjectKey:          key,
		DownloadsRemaining: ent.DownloadsRemaining,
	}, nil
}

// OpenLast streams the most recently stored export without spending quota.
func (s *Service) OpenLast(ctx context.Context, userID, resumeID string) (io.ReadCloser, string, error) {
	resume, err := s.Resumes.Get(ctx, userID, resumeID)
	if err != nil {
		return nil, "", err
	}
	if resume.LastPDFKey == "" || s.Store == nil {
		return nil, "", ErrNoStoredExport
	}
	rc, err := s.Store.Open(ctx, resume.LastPDFKey)
	if errors.Is(err, object.ErrNotFound) {
		return nil, "", ErrNoStoredExport
	}
	if err != nil {
		return nil, "", fmt.Errorf("open export: %w", err)
	}
	return rc, util.PDFFileName(resume.Title), nil
}

func (s *Service) store(ctx context.Context, userID, resumeID string, data []byte) string {
	if s.Store == nil {
		return ""
	}
	key, err := object.ExportKey(userID, resumeID, s.now())
	if err != nil {
		telemetry.Warn("exports.key_failed", map[string]any{"resume_id": resumeID, "error": err.Error()})
		return ""
	}
	if _, err := s.Store.Put(ctx, key, ContentTypePDF, bytes.NewReader(data)); err != nil {
		telemetry.Warn("exports.store_failed", map[string]any{
			"resume_id": resumeID,
			"key":       key,
			"error":     err.Error(),
		})
		return ""
	}
	return key
}
