package report

import (
	"bytes"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"mentorreport/internal/domain"
)

//go:embed templates/mentoring_report.html
var defaultTemplate string

const HTMLFile = "mentoring_report.html"

var afmCleaner = regexp.MustCompile(`[^A-Za-z0-9]`)

// Renderer turns a compiled report JSON into a standalone HTML page.
type Renderer struct {
	tmpl     *template.Template
	logoPath string
	policy   *bluemonday.Policy
	now      func() time.Time
}

// NewRenderer parses the HTML template at templatePath, or the built-in
// template when templatePath is empty.
func NewRenderer(templatePath, logoPath string) (*Renderer, error) {
	text := defaultTemplate
	name := "mentoring_report.html"
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return nil, fmt.Errorf("read template: %w", err)
		}
		text = string(data)
		name = filepath.Base(templatePath)
	}
	tmpl, err := template.New(name).Funcs(template.FuncMap{
		"priorityClass": priorityClass,
	}).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template: %w", err)
	}

	policy := bluemonday.UGCPolicy()
	policy.AllowStyling()
	return &Renderer{tmpl: tmpl, logoPath: logoPath, policy: policy, now: time.Now}, nil
}

// Render is the one-shot form of NewRenderer plus RenderFile.
func Render(jsonPath, outPath, templatePath, logoPath string) error {
	r, err := NewRenderer(templatePath, logoPath)
	if err != nil {
		return err
	}
	return r.RenderFile(jsonPath, outPath)
}

func (r *Renderer) RenderFile(jsonPath, outPath string) error {
	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return fmt.Errorf("read report json: %w", err)
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("parse report json: %w", err)
	}
	out, err := r.RenderMap(data)
	if err != nil {
		return err
	}
	return os.WriteFile(outPath, out, 0o644)
}

// RenderReport renders an in-memory report.
func (r *Renderer) RenderReport(rep domain.Report) ([]byte, error) {
	raw, err := json.Marshal(rep)
	if err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return r.RenderMap(data)
}

// RenderMap executes the template over a generic report map after adding
// generated_date and logo_base64. Unknown keys pass through so custom
// templates can use them.
func (r *Renderer) RenderMap(data map[string]any) ([]byte, error) {
	data["generated_date"] = r.now().Format("02/01/2006")
	logo, err := loadLogo(r.logoPath)
	if err != nil {
		return nil, err
	}
	data["logo_base64"] = logo
	r.prepare(data)

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return buf.Bytes(), nil
}

// prepare marks model-written HTML as safe after sanitizing it and fills the
// keys the template expects on every section.
func (r *Renderer) prepare(data map[string]any) {
	for _, key := range []string{"report_title", "company_name", "afm", "kad", "website"} {
		if _, ok := data[key]; !ok {
			data[key] = ""
		}
	}
	data["executive_summary"] = r.safeHTML(data["executive_summary"])

	sections, _ := data["sections"].([]any)
	for _, item := range sections {
		s, ok := item.(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"number", "title"} {
			if _, ok := s[key]; !ok {
				s[key] = ""
			}
		}
		s["content"] = r.safeHTML(s["content"])
	}
}

func (r *Renderer) safeHTML(v any) template.HTML {
	s, _ := v.(string)
	return template.HTML(r.policy.Sanitize(s))
}

func priorityClass(v any) string {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "υψηλή", "high":
		return "priority-high"
	case "μέτρια", "medium":
		return "priority-medium"
	case "χαμηλή", "low":
		return "priority-low"
	}
	return ""
}

// loadLogo returns the base64 encoded logo, or "" when there is none.
func loadLogo(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read logo: %w", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// OutputFilename names a standalone export:
// mentoring_report_<AFM>_<YYYYmmdd_HHMMSS>.html, without the AFM part when
// the report has none.
func OutputFilename(rep domain.Report, dir string, now time.Time) string {
	ts := now.Format("20060102_150405")
	if afm := afmCleaner.ReplaceAllString(strings.TrimSpace(rep.AFM), ""); afm != "" {
		return filepath.Join(dir, fmt.Sprintf("mentoring_report_%s_%s.html", afm, ts))
	}
	return filepath.Join(dir, fmt.Sprintf("mentoring_report_%s.html", ts))
}
