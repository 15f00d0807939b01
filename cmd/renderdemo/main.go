package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"resume-builder/resume/ats"
	"resume-builder/resume/model"
	"resume-builder/resume/render"
)

func main() {
	outPath := flag.String("out", "./out/sample_resume.pdf", "output path for generated PDF")
	flag.Parse()

	content := sampleContent()

	pdfBytes, err := render.RenderResume("Jordan Lee Resume", content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
		os.Exit(1)
	}

	if err := writeOutputs(*outPath, content, pdfBytes); err != nil {
		fmt.Fprintf(os.Stderr, "write failed: %v\n", err)
		os.Exit(1)
	}

	if err := validateRenderedPDF(*outPath, content); err != nil {
		fmt.Fprintf(os.Stderr, "render validation failed: %v\n", err)
		os.Exit(1)
	}

	score, err := ats.ComputeScore(content)
	if err != nil {
		fmt.Fprintf(os.Stderr, "score failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OK: wrote %s (ats score %d)\n", *outPath, score.ATSScore)
}

func writeOutputs(outPath string, content model.Content, pdfBytes []byte) error {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if err := os.WriteFile(outPath, pdfBytes, 0o644); err != nil {
		return err
	}

	modelPath := filepath.Join(dir, "sample_resume.json")
	payload, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(modelPath, payload, 0o644)
}

func sampleContent() model.Content {
	return model.Content{
		Template: model.TemplateModern,
		Personal: &model.Personal{
			FirstName: "Jordan",
			LastName:  "Lee",
			Email:     "jordan.lee@example.com",
			Phone:     "+1-555-0102",
			Location:  "Austin, TX",
			Summary:   "Backend engineer with 8+ years of experience building resilient APIs and data services. Led platform modernization across cloud migration and observability.",
			Portfolio: "https://github.com/jordanlee",
		},
		Experience: []model.Experience{
			{
				Title:       "Senior Backend Engineer",
				Company:     "Acme Logistics",
				StartDate:   "2021-04",
				EndDate:     "Present",
				Description: "Designed a routing service that reduced shipment latency by 18%. Implemented distributed tracing to cut incident triage time by 35%.",
			},
			{
				Title:       "Backend Engineer",
				Company:     "Blue Harbor Systems",
				StartDate:   "2018-01",
				EndDate:     "2021-03",
				Description: "Built event-driven ingestion pipelines for compliance data feeds and managed a team of three.",
			},
		},
		Education: []model.Education{
			{School: "University of Texas", Degree: "BSc", Field: "Computer Science", GraduationDate: "2017"},
		},
		Skills: []string{"Go", "PostgreSQL", "AWS", "Docker", "Kubernetes", "Terraform"},
	}
}

func validateRenderedPDF(path string, content model.Content) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	pages, err := render.PageCount(data)
	if err != nil {
		return err
	}
	if pages < 1 {
		return fmt.Errorf("expected at least one page, got %d", pages)
	}

	text, err := render.PlainText(data)
	if err != nil {
		return err
	}
	flat := strings.Join(strings.Fields(text), " ")
	expected := []string{
		content.Personal.FirstName + " " + content.Personal.LastName,
		"PROFESSIONAL SUMMARY",
		"EXPERIENCE",
		"EDUCATION",
		"SKILLS",
	}
	for _, want := range expected {
		if !strings.Contains(flat, want) {
			return fmt.Errorf("rendered text missing %q", want)
		}
	}
	return nil
}
