package pipeline

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"mentorreport/internal/domain"
)

var (
	successColor = lipgloss.Color("#3FB950")
	partialColor = lipgloss.Color("#D29922")
	failureColor = lipgloss.Color("#F85149")
	headerColor  = lipgloss.Color("#5B8DEF")
)

// FormatElapsed renders a duration as "Xm Ys", or "Ys" under a minute.
func FormatElapsed(d time.Duration) string {
	total := int(d.Seconds())
	m, s := total/60, total%60
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// ClassificationTable shows how many files landed in each section.
func ClassificationTable(mapping domain.SectionMapping) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#444444"))).
		Headers("Section", "Files").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(headerColor).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for n := 1; n <= domain.SectionCount; n++ {
		t.Row(fmt.Sprintf("Section %d", n), strconv.Itoa(len(mapping[n])))
	}
	title := lipgloss.NewStyle().Bold(true).Render("File Classification by Section")
	return lipgloss.JoinVertical(lipgloss.Left, title, t.Render())
}

// Summary renders the closing panel of a run.
func Summary(res Result, runErr error) string {
	color, title, heading := successColor, "Success", "Report Generation Complete"
	html := filepath.Base(res.HTMLPath)
	switch {
	case runErr != nil:
		color, title, heading = failureColor, "Failed", "Report Generation Failed"
	case res.Partial:
		color, title, heading = partialColor, "Partial Success", "Report Generation Partial"
		html = "Failed - check errors above"
	}

	lines := []string{
		lipgloss.NewStyle().Bold(true).Foreground(color).Render(heading),
		"",
		"Company: " + res.Company.NameOr("N/A"),
		fmt.Sprintf("Sections: %d/%d", len(res.Sections), domain.SectionCount),
		"Duration: " + FormatElapsed(res.Duration),
		"Output Directory: " + res.OutputDir,
	}
	if runErr != nil {
		lines = append(lines, "Error: "+runErr.Error())
	} else {
		lines = append(lines, "JSON: "+CompleteJSONFile, "HTML: "+html)
		if res.PDFPath != "" {
			lines = append(lines, "PDF: "+filepath.Base(res.PDFPath))
		}
	}
	if len(res.Failed) > 0 {
		failed := make([]string, len(res.Failed))
		for i, n := range res.Failed {
			failed[i] = strconv.Itoa(n)
		}
		lines = append(lines, "Skipped sections: "+strings.Join(failed, ", "))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Render(title + "\n" + strings.Join(lines, "\n"))
}
