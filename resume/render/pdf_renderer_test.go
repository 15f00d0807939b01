package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"resume-builder/resume/model"
)

func TestRenderResumeProducesReadablePDF(t *testing.T) {
	content := model.Content{
		Template: model.TemplateClassic,
		Personal: &model.Personal{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Phone:     "5551234567",
			Location:  "London",
			Summary:   "Analyst of engines and author of the first published algorithm.",
			Portfolio: "https://example.com/ada",
		},
		Experience: []model.Experience{
			{Title: "Analyst", Company: "Babbage & Co", StartDate: "1842", EndDate: "1843", Description: "Translated and annotated the Menabrea memoir."},
		},
		Education: []model.Education{
			{School: "Home tutoring", Degree: "Mathematics", Field: "Analysis", GraduationDate: "1835"},
		},
		Skills: []string{"Mathematics", "Translation", "Notes"},
	}

	data, err := RenderResume("Ada CV", content)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		t.Fatalf("expected PDF header, got %q", data[:8])
	}

	pages, err := PageCount(data)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if pages < 1 {
		t.Fatalf("expected at least one page, got %d", pages)
	}
	if _, err := PlainText(data); err != nil {
		t.Fatalf("plain text: %v", err)
	}
}

func TestRenderResumeLongContentPaginates(t *testing.T) {
	content := model.Content{
		Personal:   &model.Personal{FirstName: "Grace"},
		Experience: []model.Experience{},
	}
	for i := 0; i < 40; i++ {
		content.Experience = append(content.Experience, model.Experience{
			Title:       "Engineer",
			Company:     "Navy",
			Description: strings.Repeat("Compiler work and debugging. ", 12),
		})
	}

	data, err := RenderResume("", content)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	pages, err := PageCount(data)
	if err != nil {
		t.Fatalf("page count: %v", err)
	}
	if pages < 2 {
		t.Fatalf("expected pagination, got %d page(s)", pages)
	}
}

func TestRenderResumeRequiresPersonal(t *testing.T) {
	_, err := RenderResume("x", model.Content{})
	if !errors.Is(err, ErrMissingPersonal) {
		t.Fatalf("expected ErrMissingPersonal, got %v", err)
	}
}

func TestDateRange(t *testing.T) {
	tests := []struct {
		start, end, want string
	}{
		{"", "", ""},
		{"2020", "", "2020 - Present"},
		{"", "2021", "2021"},
		{"2020", "2021", "2020 - 2021"},
	}
	for _, tt := range tests {
		if got := dateRange(tt.start, tt.end); got != tt.want {
			t.Fatalf("dateRange(%q, %q) = %q, want %q", tt.start, tt.end, got, tt.want)
		}
	}
}
