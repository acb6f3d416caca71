// Package prompts renders the per-section generation instructions.
package prompts

import (
	"embed"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"mentorreport/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var sectionTemplates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// fileFallbacks is shown instead of the file list when a section has no
// classified files.
var fileFallbacks = map[int]string{
	1:  "General business context",
	2:  "Financial data to be analyzed",
	3:  "Market research if available",
	4:  "Funding proposals if available",
	5:  "Digital presence documents if available",
	6:  "Financial system data",
	7:  "Sustainability documents if available",
	8:  "Technology documents if available",
	9:  "Leadership assessment data",
	10: "Outputs of sections 1-9",
	11: "Tax and legal documents",
}

// SectionTitles are the English working titles the model is asked to keep.
var SectionTitles = map[int]string{
	1:  "Business Profile & Strategic Positioning",
	2:  "Financial Health & Performance Optimization",
	3:  "Market Analysis & Competitive Strategy",
	4:  "Funding Strategy & Investment Planning",
	5:  "Digital Transformation Roadmap",
	6:  "Financial Management Systems",
	7:  "ESG Implementation Framework",
	8:  "AI & Innovation Strategy",
	9:  "Leadership Development & Team Building",
	10: "Implementation Roadmap & Success Metrics",
	11: "Legal & Regulatory Compliance Framework",
}

// Data is what every section template can reference.
type Data struct {
	Number      int
	Title       string
	OutputFile  string
	CompanyName string
	AFM         string
	KAD         string
	Files       string
	Today       string
	// HasFiles is false when Files holds the fallback phrase.
	HasFiles bool
}

// OutputFile is the name the model is asked to save section n under.
func OutputFile(n int) string {
	return fmt.Sprintf("section_%d_generated.json", n)
}

// SectionPrompt renders the instruction for section n. files are paths; only
// their base names are embedded.
func SectionPrompt(n int, company domain.CompanyInfo, files []string, now time.Time) (string, error) {
	if !domain.ValidSection(n) {
		return "", fmt.Errorf("unknown section number %d", n)
	}
	data := Data{
		Number:      n,
		Title:       SectionTitles[n],
		OutputFile:  OutputFile(n),
		CompanyName: company.NameOr("Greek SME"),
		AFM:         orNA(company.AFM),
		KAD:         orNA(company.KAD),
		Files:       fileFallbacks[n],
		Today:       now.Format("2006-01-02"),
	}
	if len(files) > 0 {
		names := make([]string, 0, len(files))
		for _, f := range files {
			names = append(names, filepath.Base(f))
		}
		data.Files = strings.Join(names, ", ")
		data.HasFiles = true
	}

	var b strings.Builder
	if err := sectionTemplates.ExecuteTemplate(&b, fmt.Sprintf("section_%d.tmpl", n), data); err != nil {
		return "", fmt.Errorf("render section %d prompt: %w", n, err)
	}
	return b.String(), nil
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
