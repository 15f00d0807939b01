package ats

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resume-builder/resume/model"
)

func TestOptimizeEmptyContentReturnsMaximalSet(t *testing.T) {
	got, err := Optimize(emptyContent())
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{
		{Level: SeverityError, Message: "Email required"},
		{Level: SeverityError, Message: "First name required"},
		{Level: SeverityWarning, Message: "No work experience found"},
		{Level: SeverityWarning, Message: "Only 0 skills - add more"},
	}, got)
}

func TestOptimizeFlagsAliasAndThinDescriptions(t *testing.T) {
	content := emptyContent()
	content.Personal.FirstName = "Ada"
	content.Personal.Email = "ada+jobs@example.com"
	content.Skills = []string{"a", "b", "c", "d", "e"}
	content.Experience = []model.Experience{
		{Title: "Lead", Description: "Ran the platform team for four years across three regions."},
		{Title: "Engineer", Description: "Wrote code"},
		{Title: "Intern"},
	}

	got, err := Optimize(content)
	require.NoError(t, err)
	assert.Equal(t, []Suggestion{
		{Level: SeverityInfo, Message: "Use standard email format (some ATS may skip email aliases)"},
		{Level: SeverityWarning, Message: "Experience #2: Add detailed description"},
		{Level: SeverityWarning, Message: "Experience #3: Add detailed description"},
	}, got)
}

func TestOptimizeRejectsMissingSections(t *testing.T) {
	_, err := Optimize(model.Content{})
	assert.True(t, errors.Is(err, ErrValidation))
}
