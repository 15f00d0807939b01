package model

import (
	"fmt"
	"strings"
)

// Supported render templates.
const (
	TemplateModern  = "modern"
	TemplateClassic = "classic"
	TemplateMinimal = "minimal"
)

// Section names as they appear in the JSON payload.
const (
	SectionPersonal   = "personal"
	SectionExperience = "experience"
	SectionEducation  = "education"
	SectionSkills     = "skills"
)

// Content is the structured resume payload stored under a resume's data field.
// Personal is a pointer and the lists are nil-able so that a payload missing a
// section can be told apart from one carrying an empty section.
type Content struct {
	Template   string       `json:"template" bson:"template"`
	Personal   *Personal    `json:"personal" bson:"personal"`
	Experience []Experience `json:"experience" bson:"experience"`
	Education  []Education  `json:"education" bson:"education"`
	Skills     []string     `json:"skills" bson:"skills"`
}

// Personal captures contact and identity details.
type Personal struct {
	FirstName string `json:"firstName" bson:"first_name"`
	LastName  string `json:"lastName" bson:"last_name"`
	Email     string `json:"email" bson:"email"`
	Phone     string `json:"phone" bson:"phone"`
	Location  string `json:"location" bson:"location"`
	Summary   string `json:"summary" bson:"summary"`
	Portfolio string `json:"portfolio" bson:"portfolio"`
}

// FullName joins first and last name.
func (p Personal) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Experience is a work history entry.
type Experience struct {
	Title       string `json:"title" bson:"title"`
	Company     string `json:"company" bson:"company"`
	StartDate   string `json:"startDate" bson:"start_date"`
	EndDate     string `json:"endDate" bson:"end_date"`
	Description string `json:"description" bson:"description"`
}

// Education is an education entry.
type Education struct {
	School         string `json:"school" bson:"school"`
	Degree         string `json:"degree" bson:"degree"`
	Field          string `json:"field" bson:"field"`
	GraduationDate string `json:"graduationDate" bson:"graduation_date"`
}

// MissingSections lists required sections absent from the payload, in
// declaration order.
func (c Content) MissingSections() []string {
	var missing []string
	if c.Personal == nil {
		missing = append(missing, SectionPersonal)
	}
	if c.Experience == nil {
		missing = append(missing, SectionExperience)
	}
	if c.Education == nil {
		missing = append(missing, SectionEducation)
	}
	if c.Skills == nil {
		missing = append(missing, SectionSkills)
	}
	return missing
}

// Normalize returns a copy where every section is present and the template is set.
func (c Content) Normalize() Content {
	out := c
	out.Template = strings.ToLower(strings.TrimSpace(out.Template))
	if out.Template == "" {
		out.Template = TemplateModern
	}
	if out.Personal == nil {
		out.Personal = &Personal{}
	} else {
		p := *out.Personal
		out.Personal = &p
	}
	out.Experience = append(make([]Experience, 0, len(c.Experience)), c.Experience...)
	out.Education = append(make([]Education, 0, len(c.Education)), c.Education...)
	out.Skills = append(make([]string, 0, len(c.Skills)), c.Skills...)
	return out
}

// Validate enforces the template enumeration and rejects blank skills.
func (c Content) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Template)) {
	case "", TemplateModern, TemplateClassic, TemplateMinimal:
	default:
		return fmt.Errorf("template must be one of %s, %s, %s", TemplateModern, TemplateClassic, TemplateMinimal)
	}
	for i, skill := range c.Skills {
		if strings.TrimSpace(skill) == "" {
			return fmt.Errorf("skills[%d] must not be empty", i)
		}
	}
	return nil
}
