package ats

import (
	"strings"

	"resume-builder/resume/model"
)

// flatten joins every string value of the payload, one per line, in a fixed
// section order so word counts and keyword matches are deterministic.
func flatten(content model.Content) string {
	var parts []string
	add := func(values ...string) {
		for _, v := range values {
			if v != "" {
				parts = append(parts, v)
			}
		}
	}

	add(content.Template)
	if p := content.Personal; p != nil {
		add(p.FirstName, p.LastName, p.Email, p.Phone, p.Location, p.Summary, p.Portfolio)
	}
	for _, exp := range content.Experience {
		add(exp.Title, exp.Company, exp.StartDate, exp.EndDate, exp.Description)
	}
	for _, edu := range content.Education {
		add(edu.School, edu.Degree, edu.Field, edu.GraduationDate)
	}
	add(content.Skills...)

	return strings.Join(parts, "\n")
}
