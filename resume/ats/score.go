package ats

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"resume-builder/resume/model"
)

// ErrValidation is matched by errors.Is for any structurally invalid payload.
var ErrValidation = errors.New("validation error")

// ValidationError reports the required sections missing from a payload.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing required sections: " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

const (
	maxScore = 100.0

	formatPoints   = 5.0
	contentPoints  = 10.0
	skillsFull     = 10.0
	skillsPartial  = 5.0
	keywordMax     = 20.0
	contentMax     = 40.0
	skillsMax      = 20.0
	formatMax      = 20.0
	minPhoneLength = 10

	wordTarget         = 250
	wordShortThreshold = 100
	wordAdequate       = 300
	summaryMinLength   = 50
	experienceTarget   = 2
	skillsTarget       = 5
	skillsGenerous     = 10
	descriptionMinimum = 20
)

// Keywords are the action-verb stems searched for in the flattened text.
var Keywords = []string{"responsible", "managed", "developed", "implemented", "achieved", "improved"}

// Details is the secondary breakdown reported next to the total. The fields
// use their own formulas and do not sum to the total; FormatScore is the
// capped running total, not the format points.
type Details struct {
	FormatScore  float64 `json:"formatScore" bson:"format_score"`
	ContentScore float64 `json:"contentScore" bson:"content_score"`
	SkillsScore  float64 `json:"skillsScore" bson:"skills_score"`
	KeywordScore float64 `json:"keywordScore" bson:"keyword_score"`
}

// ScoreResult is the outcome of ComputeScore.
type ScoreResult struct {
	ATSScore        int      `json:"atsScore"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`
	Details         Details  `json:"details"`
}

// ComputeScore rates a resume payload for ATS compatibility.
func ComputeScore(content model.Content) (ScoreResult, error) {
	if err := requireSections(content); err != nil {
		return ScoreResult{}, err
	}
	personal := *content.Personal
	issues := make([]string, 0, 6)

	format := 0.0
	if strings.Contains(personal.Email, "@") {
		format += formatPoints
	}
	if utf8.RuneCountInString(personal.Phone) >= minPhoneLength {
		format += formatPoints
	}
	if personal.Location != "" {
		format += formatPoints
	}
	if len(content.Experience) > 0 {
		format += formatPoints
	}

	text := flatten(content)
	wordCount := len(strings.Fields(text))

	body := 0.0
	if wordCount >= wordTarget {
		body += contentPoints
	} else if wordCount < wordShortThreshold {
		issues = append(issues, "Resume too short (< 100 words)")
	}
	if utf8.RuneCountInString(personal.Summary) > summaryMinLength {
		body += contentPoints
	} else {
		issues = append(issues, "Add a professional summary")
	}
	switch n := len(content.Experience); {
	case n >= experienceTarget:
		body += contentPoints
	case n == 0:
		issues = append(issues, "Add work experience")
	}
	if len(content.Education) >= 1 {
		body += contentPoints
	} else {
		issues = append(issues, "Add education details")
	}

	skills := 0.0
	switch n := len(content.Skills); {
	case n >= skillsTarget:
		skills = skillsFull
	case n > 0:
		skills = skillsPartial
	default:
		issues = append(issues, "Add more skills (minimum 5 recommended)")
	}

	matched := countKeywords(strings.ToLower(text))
	keyword := float64(matched) / float64(len(Keywords)) * keywordMax
	if matched < len(Keywords) {
		issues = append(issues, fmt.Sprintf("Use strong action verbs (%d/%d found)", matched, len(Keywords)))
	}

	total := format + body + skills + keyword

	return ScoreResult{
		ATSScore:        int(math.Round(math.Min(total, maxScore))),
		Issues:          issues,
		Recommendations: recommendations(content, wordCount),
		Details: Details{
			FormatScore:  math.Min(formatMax, total),
			ContentScore: interpolatedContent(wordCount),
			SkillsScore:  math.Min(skillsMax, float64(len(content.Skills)*2)),
			KeywordScore: math.Min(keywordMax, keyword),
		},
	}, nil
}

func interpolatedContent(wordCount int) float64 {
	if wordCount >= wordTarget {
		return contentMax
	}
	return math.Min(contentMax, float64(wordCount)/float64(wordTarget)*contentMax)
}

func recommendations(content model.Content, wordCount int) []string {
	out := make([]string, 0, 4)
	if content.Personal.Portfolio != "" {
		out = append(out, "✓ Portfolio/LinkedIn included")
	} else {
		out = append(out, "Add portfolio/LinkedIn link")
	}
	described := false
	for _, exp := range content.Experience {
		if utf8.RuneCountInString(exp.Description) > descriptionMinimum {
			described = true
			break
		}
	}
	if described {
		out = append(out, "✓ Descriptions complete")
	} else {
		out = append(out, "Enhance experience descriptions")
	}
	if len(content.Skills) >= skillsGenerous {
		out = append(out, "✓ Comprehensive skills section")
	} else {
		out = append(out, "Add more relevant skills")
	}
	if wordCount >= wordAdequate {
		out = append(out, "✓ Adequate content length")
	} else {
		out = append(out, "Expand resume content")
	}
	return out
}

func countKeywords(lowered string) int {
	matched := 0
	for _, kw := range Keywords {
		if strings.Contains(lowered, kw) {
			matched++
		}
	}
	return matched
}

func requireSections(content model.Content) error {
	if missing := content.MissingSections(); len(missing) > 0 {
		return &ValidationError{Missing: missing}
	}
	return nil
}
