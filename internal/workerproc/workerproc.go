// Package workerproc turns queued score jobs into score refreshes. It is
// shared by the long-running worker and the SQS-triggered Lambda so both
// classify failures the same way.
package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"resume-builder/internal/queue"
)

// ScoreProcessor recomputes and stores the ATS score of a resume.
type ScoreProcessor interface {
	RefreshScore(ctx context.Context, ownerID, resumeID string) error
}

// Poison reasons.
const (
	ReasonEmpty      = "empty_body"
	ReasonMalformed  = "malformed_json"
	ReasonMissingIDs = "missing_ids"
	ReasonVersion    = "unsupported_version"
	ReasonGone       = "resume_gone"
)

// PoisonError marks a job that will fail the same way on every delivery.
// Consumers drop it instead of redelivering.
type PoisonError struct {
	Reason    string
	Digest    string
	ResumeID  string
	RequestID string
	Err       error
}

func (e *PoisonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("poison score job (%s): %v", e.Reason, e.Err)
	}
	return "poison score job (" + e.Reason + ")"
}

func (e *PoisonError) Unwrap() error { return e.Err }

// JobError is a scoring failure worth retrying.
type JobError struct {
	ResumeID  string
	RequestID string
	Err       error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("score resume %s: %v", e.ResumeID, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// IsPoison reports whether err came from a job that must not be retried.
func IsPoison(err error) bool {
	var p *PoisonError
	return errors.As(err, &p)
}

// Digest is a short body fingerprint for correlating dropped payloads in logs
// without logging their contents.
func Digest(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:8])
}

// Decode validates a raw job body.
func Decode(body []byte) (queue.Message, error) {
	if strings.TrimSpace(string(body)) == "" {
		return queue.Message{}, &PoisonError{Reason: ReasonEmpty}
	}
	msg, err := queue.DecodeMessage(body)
	if err != nil {
		return queue.Message{}, &PoisonError{Reason: ReasonMalformed, Digest: Digest(body), Err: err}
	}
	if msg.Version > queue.MessageVersion {
		return msg, &PoisonError{
			Reason:    ReasonVersion,
			Digest:    Digest(body),
			ResumeID:  msg.ResumeID,
			RequestID: msg.RequestID,
			Err:       fmt.Errorf("version %d", msg.Version),
		}
	}
	if strings.TrimSpace(msg.ResumeID) == "" || strings.TrimSpace(msg.OwnerID) == "" {
		return msg, &PoisonError{Reason: ReasonMissingIDs, Digest: Digest(body), ResumeID: msg.ResumeID, RequestID: msg.RequestID}
	}
	return msg, nil
}

// Runner executes score jobs.
type Runner struct {
	Processor ScoreProcessor
	// Gone reports processor errors no retry can fix, such as a resume that
	// was deleted after its job was queued.
	Gone func(error) bool
}

// Handle decodes and runs one job. The decoded message is returned even on
// failure so callers can log its ids.
func (r Runner) Handle(ctx context.Context, body []byte) (queue.Message, error) {
	msg, err := Decode(body)
	if err != nil {
		return msg, err
	}
	return msg, r.Run(ctx, msg)
}

// Run refreshes the score named by an already decoded job.
func (r Runner) Run(ctx context.Context, msg queue.Message) error {
	if r.Processor == nil {
		return errors.New("score processor not configured")
	}
	err := r.Processor.RefreshScore(ctx, msg.OwnerID, msg.ResumeID)
	switch {
	case err == nil:
		return nil
	case r.Gone != nil && r.Gone(err):
		return &PoisonError{Reason: ReasonGone, ResumeID: msg.ResumeID, RequestID: msg.RequestID, Err: err}
	default:
		return &JobError{ResumeID: msg.ResumeID, RequestID: msg.RequestID, Err: err}
	}
}
