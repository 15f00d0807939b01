package ats

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"resume-builder/resume/model"
)

// Severity tags an optimization suggestion.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

const optimizeDescriptionMinimum = 30

// Suggestion is a single optimization hint.
type Suggestion struct {
	Level   Severity `json:"level"`
	Message string   `json:"msg"`
}

// Optimize returns structural hints, ordered: required fields, section sizes,
// email format, then one entry per thin experience description.
func Optimize(content model.Content) ([]Suggestion, error) {
	if err := requireSections(content); err != nil {
		return nil, err
	}
	personal := *content.Personal
	out := make([]Suggestion, 0, 4+len(content.Experience))

	if personal.Email == "" {
		out = append(out, Suggestion{Level: SeverityError, Message: "Email required"})
	}
	if personal.FirstName == "" {
		out = append(out, Suggestion{Level: SeverityError, Message: "First name required"})
	}
	if len(content.Experience) == 0 {
		out = append(out, Suggestion{Level: SeverityWarning, Message: "No work experience found"})
	}
	if n := len(content.Skills); n < skillsTarget {
		out = append(out, Suggestion{Level: SeverityWarning, Message: fmt.Sprintf("Only %d skills - add more", n)})
	}
	if strings.Contains(personal.Email, "+") {
		out = append(out, Suggestion{Level: SeverityInfo, Message: "Use standard email format (some ATS may skip email aliases)"})
	}
	for i, exp := range content.Experience {
		if utf8.RuneCountInString(exp.Description) < optimizeDescriptionMinimum {
			out = append(out, Suggestion{
				Level:   SeverityWarning,
				Message: fmt.Sprintf("Experience #%d: Add detailed description", i+1),
			})
		}
	}
	return out, nil
}
