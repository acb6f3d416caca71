package report

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"github.com/microcosm-cc/bluemonday"

	"mentorreport/internal/domain"
)

const MarkdownFile = "mentoring_report.md"

// RenderMarkdown converts a compiled report to GitHub flavored markdown.
// Section HTML goes through the converter; KPIs, tables and actions are laid
// out as HTML first so they come out as lists and pipe tables.
func RenderMarkdown(rep domain.Report) (string, error) {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())
	policy := bluemonday.UGCPolicy()

	var b strings.Builder
	fmt.Fprintf(&b, "<h1>%s</h1>\n", html.EscapeString(rep.ReportTitle))
	if rep.CompanyName != "" || rep.AFM != "" {
		b.WriteString("<ul>")
		writeLI(&b, "Επωνυμία", rep.CompanyName)
		writeLI(&b, "ΑΦΜ", rep.AFM)
		writeLI(&b, "ΚΑΔ", rep.KAD)
		writeLI(&b, "Ιστοσελίδα", rep.Website)
		b.WriteString("</ul>\n")
	}
	b.WriteString(policy.Sanitize(rep.ExecutiveSummary))

	for _, s := range rep.Sections {
		fmt.Fprintf(&b, "\n<h2>%d. %s</h2>\n", s.Number, html.EscapeString(s.Title))
		b.WriteString(policy.Sanitize(s.Content))
		if len(s.KPIs) > 0 {
			b.WriteString("\n<h3>KPIs</h3><ul>")
			for _, k := range s.KPIs {
				line := fmt.Sprintf("%s: %s", k.Label, k.Value)
				if k.Target != "" {
					line += fmt.Sprintf(" (Στόχος: %s)", k.Target)
				}
				fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(line))
			}
			b.WriteString("</ul>")
		}
		for _, t := range s.Tables {
			writeTable(&b, t)
		}
		if len(s.ActionItems) > 0 {
			b.WriteString("\n<h3>Προτεινόμενες Ενέργειες</h3><ol>")
			for _, a := range s.ActionItems {
				title := a.Title
				if title == "" {
					title = a.Action
				}
				line := title
				if a.Timeline != "" {
					line += fmt.Sprintf(" (%s)", a.Timeline)
				}
				if a.Description != "" {
					line += ": " + a.Description
				}
				fmt.Fprintf(&b, "<li>%s</li>", html.EscapeString(line))
			}
			b.WriteString("</ol>")
		}
	}

	if len(rep.VideoRecommendations) > 0 {
		b.WriteString("\n<h2>Προτεινόμενα Βίντεο</h2><ul>")
		for _, v := range rep.VideoRecommendations {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a> (%s)</li>`,
				html.EscapeString(v.URL), html.EscapeString(v.Title), html.EscapeString(v.Channel))
		}
		b.WriteString("</ul>")
	}
	if len(rep.LegalLinks) > 0 {
		b.WriteString("\n<h2>Χρήσιμοι Σύνδεσμοι</h2><ul>")
		for _, l := range rep.LegalLinks {
			fmt.Fprintf(&b, `<li><a href="%s">%s</a>: %s</li>`,
				html.EscapeString(l.URL), html.EscapeString(l.Title), html.EscapeString(l.Description))
		}
		b.WriteString("</ul>")
	}

	out, err := converter.ConvertString(b.String())
	if err != nil {
		return "", fmt.Errorf("convert report to markdown: %w", err)
	}
	return strings.TrimSpace(out) + "\n", nil
}

func writeLI(b *strings.Builder, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(b, "<li>%s: %s</li>", label, html.EscapeString(value))
}

func writeTable(b *strings.Builder, t domain.Table) {
	if t.Title != "" {
		fmt.Fprintf(b, "\n<h3>%s</h3>", html.EscapeString(t.Title))
	}
	b.WriteString("<table><thead><tr>")
	for _, h := range t.Headers {
		fmt.Fprintf(b, "<th>%s</th>", html.EscapeString(h))
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range t.Rows {
		b.WriteString("<tr>")
		for _, cell := range row {
			fmt.Fprintf(b, "<td>%s</td>", html.EscapeString(string(cell)))
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
}
