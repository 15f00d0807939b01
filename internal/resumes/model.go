package resumes

import (
	"time"

	"resume-builder/resume/model"
)

// DefaultTitle is used when a resume is created without a title.
const DefaultTitle = "My Resume"

// Resume is a stored resume owned by a single account.
type Resume struct {
	ID            string        `json:"id"`
	UserID        string        `json:"-"`
	Title         string        `json:"title"`
	Content       model.Content `json:"data"`
	Scores        *Scores       `json:"scores,omitempty"`
	DownloadCount int           `json:"downloadCount"`
	LastPDFKey    string        `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Scores is the cached output of the last scoring run.
type Scores struct {
	ATSScore        int       `json:"atsScore"`
	ContentScore    float64   `json:"contentScore"`
	Recommendations []string  `json:"recommendations"`
	ScoredAt        time.Time `json:"scoredAt"`
}
