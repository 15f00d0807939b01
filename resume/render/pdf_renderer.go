package render

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ledongthuc/pdf"

	"resume-builder/resume/model"
)

// ErrMissingPersonal is returned when the payload has no personal section to build a header from.
var ErrMissingPersonal = errors.New("personal section is required")

const skillSeparator = " • "

// RenderResume renders resume content into a PDF byte slice.
func RenderResume(title string, content model.Content) ([]byte, error) {
	if content.Personal == nil {
		return nil, ErrMissingPersonal
	}
	content = content.Normalize()

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.SetTitle(title, true)
	doc.SetCreator("resume-builder", true)
	doc.AddPage()

	w := &pdfWriter{
		doc:    doc,
		tr:     doc.UnicodeTranslatorFromDescriptor(""),
		accent: accentFor(content.Template),
	}

	personal := *content.Personal
	w.header(title, personal)

	if summary := strings.TrimSpace(personal.Summary); summary != "" {
		w.section("PROFESSIONAL SUMMARY")
		w.paragraph("body", summary)
	}

	if len(content.Experience) > 0 {
		w.section("EXPERIENCE")
		for _, exp := range content.Experience {
			w.line("roleLine", exp.Title)
			w.line("meta", joinNonEmpty(" | ", exp.Company, dateRange(exp.StartDate, exp.EndDate)))
			if desc := strings.TrimSpace(exp.Description); desc != "" {
				w.paragraph("body", desc)
			}
			w.doc.Ln(2)
		}
	}

	if len(content.Education) > 0 {
		w.section("EDUCATION")
		for _, edu := range content.Education {
			w.line("roleLine", joinNonEmpty(" in ", edu.Degree, edu.Field))
			w.line("body", edu.School)
			if strings.TrimSpace(edu.GraduationDate) != "" {
				w.line("meta", "Graduated: "+edu.GraduationDate)
			}
			w.doc.Ln(2)
		}
	}

	if len(content.Skills) > 0 {
		w.section("SKILLS")
		w.paragraph("body", strings.Join(content.Skills, skillSeparator))
	}

	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

type pdfWriter struct {
	doc    *fpdf.Fpdf
	tr     func(string) string
	accent RGB
}

func (w *pdfWriter) apply(styleKey string) RunStyle {
	style, ok := StyleMap[styleKey]
	if !ok {
		style = StyleMap["body"]
	}
	w.doc.SetFont(fontFamily, style.fontStyle(), style.Size)
	w.doc.SetTextColor(style.Color.R, style.Color.G, style.Color.B)
	return style
}

func (w *pdfWriter) header(title string, personal model.Personal) {
	name := personal.FullName()
	if name == "" {
		name = title
	}
	w.apply("name")
	w.doc.CellFormat(0, 11, w.tr(name), "", 1, "C", false, 0, "")

	contact := joinNonEmpty(" | ", personal.Email, personal.Phone, personal.Location)
	if contact != "" {
		w.apply("contact")
		w.doc.CellFormat(0, lineHeight, w.tr(contact), "", 1, "C", false, 0, "")
	}
	if link := strings.TrimSpace(personal.Portfolio); link != "" {
		w.apply("contact")
		w.doc.CellFormat(0, lineHeight, w.tr(link), "", 1, "C", false, 0, link)
	}
	w.doc.Ln(4)
}

func (w *pdfWriter) section(heading string) {
	w.doc.Ln(2)
	w.apply("sectionHeading")
	w.doc.CellFormat(0, 7, w.tr(heading), "", 1, "L", false, 0, "")

	left, _, right, _ := w.doc.GetMargins()
	pageWidth, _ := w.doc.GetPageSize()
	y := w.doc.GetY()
	w.doc.SetDrawColor(w.accent.R, w.accent.G, w.accent.B)
	w.doc.SetLineWidth(0.4)
	w.doc.Line(left, y, pageWidth-right, y)
	w.doc.Ln(2)
}

func (w *pdfWriter) line(styleKey, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	w.apply(styleKey)
	w.doc.CellFormat(0, lineHeight+0.6, w.tr(text), "", 1, "L", false, 0, "")
}

func (w *pdfWriter) paragraph(styleKey, text string) {
	w.apply(styleKey)
	w.doc.MultiCell(0, lineHeight, w.tr(text), "", "L", false)
}

func accentFor(template string) RGB {
	if c, ok := templateAccent[template]; ok {
		return c
	}
	return templateAccent[model.TemplateModern]
}

func dateRange(start, end string) string {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	switch {
	case start == "" && end == "":
		return ""
	case end == "":
		return start + " - Present"
	case start == "":
		return end
	default:
		return start + " - " + end
	}
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return strings.Join(parts, sep)
}

// PageCount reports the number of pages in a rendered PDF.
func PageCount(data []byte) (int, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return reader.NumPage(), nil
}

// PlainText extracts the text layer of a rendered PDF.
func PlainText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
