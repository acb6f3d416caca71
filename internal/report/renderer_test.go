package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorreport/internal/domain"
)

func sampleReport() domain.Report {
	sections := []*domain.Section{
		{
			Number:  2,
			Title:   "Οικονομική Υγεία",
			Content: `<h3>Ρευστότητα</h3><p onclick="x()">Καλή εικόνα</p><script>alert(1)</script>`,
			KPIs:    []domain.KPI{{Label: "Teiresias", Value: "450/600", Target: "500/600"}},
			Tables: []domain.Table{{
				Title:   "Δείκτες",
				Headers: []string{"Δείκτης", "Τιμή"},
				Rows:    [][]domain.Text{{"Περιθώριο", "12%"}},
			}},
			ActionItems: []domain.ActionItem{{Title: "Πιστωτική γραμμή", Priority: "Υψηλή", Timeline: "3 μήνες"}},
		},
	}
	return Compile(sections, domain.CompanyInfo{CompanyName: "Alpha", AFM: "EL-123456789"})
}

func TestRenderFileWithDefaultTemplate(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "mentoring_report_complete.json")
	require.NoError(t, WriteJSON(jsonPath, sampleReport()))
	logo := filepath.Join(dir, "logo.jpeg")
	require.NoError(t, os.WriteFile(logo, []byte("img"), 0o644))

	r, err := NewRenderer("", logo)
	require.NoError(t, err)
	r.now = func() time.Time { return time.Date(2025, 1, 9, 10, 0, 0, 0, time.UTC) }

	out := filepath.Join(dir, HTMLFile)
	require.NoError(t, r.RenderFile(jsonPath, out))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	html := string(raw)

	assert.Contains(t, html, "09/01/2025")
	assert.Contains(t, html, "data:image/jpeg;base64,aW1n")
	assert.Contains(t, html, "<h3>Ρευστότητα</h3>", "section HTML must not be escaped")
	assert.Contains(t, html, "<h2>Συνοπτική Παρουσίαση</h2>")
	assert.NotContains(t, html, "<script>alert(1)</script>")
	assert.NotContains(t, html, "onclick")
	assert.Contains(t, html, "450/600")
	assert.Contains(t, html, "<td>Περιθώριο</td>")
	assert.Contains(t, html, "priority-high")
	assert.Contains(t, html, "https://1521.aade.gr/")
	assert.Contains(t, html, "example1")
	assert.NotContains(t, html, "<no value>")
}

func TestRenderMissingLogoAndCustomTemplate(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"report_title": "T", "extra": "kept", "sections": [{"content": "<b>x</b>"}]}`), 0o644))
	tmpl := filepath.Join(dir, "custom.html")
	require.NoError(t, os.WriteFile(tmpl, []byte(`{{.report_title}}|{{.logo_base64}}|{{.extra}}|{{range .sections}}{{.content}}{{end}}`), 0o644))

	out := filepath.Join(dir, "out.html")
	require.NoError(t, Render(jsonPath, out, tmpl, filepath.Join(dir, "missing.jpeg")))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "T||kept|<b>x</b>", string(raw))
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := NewRenderer(filepath.Join(dir, "nope.html"), "")
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	assert.Error(t, Render(bad, filepath.Join(dir, "out.html"), "", ""))
	assert.Error(t, Render(filepath.Join(dir, "missing.json"), filepath.Join(dir, "out.html"), "", ""))
}

func TestOutputFilename(t *testing.T) {
	now := time.Date(2025, 6, 1, 14, 3, 9, 0, time.UTC)
	assert.Equal(t, filepath.Join("out", "mentoring_report_EL123456789_20250601_140309.html"),
		OutputFilename(domain.Report{AFM: " EL-123 456 789 "}, "out", now))
	assert.Equal(t, filepath.Join("out", "mentoring_report_20250601_140309.html"),
		OutputFilename(domain.Report{}, "out", now))
}

func TestRenderMarkdown(t *testing.T) {
	out, err := RenderMarkdown(sampleReport())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "# Comprehensive Mentoring"), out)
	assert.Regexp(t, `## 2\\?\. Οικονομική Υγεία`, out)
	assert.Contains(t, out, "Teiresias: 450/600 (Στόχος: 500/600)")
	assert.Regexp(t, `\|\s*Περιθώριο\s*\|\s*12%\s*\|`, out)
	assert.Contains(t, out, "[ΕΣΠΑ 2021-2027](https://www.espa.gr/)")
	assert.NotContains(t, out, "<script>")
}

func TestPreview(t *testing.T) {
	out, err := Preview("# Τίτλος\n\nκείμενο", 60)
	require.NoError(t, err)
	assert.Contains(t, out, "Τίτλος")
}
