package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"mentorreport/internal/domain"
)

const executiveSummaryTemplate = `
<h2>Συνοπτική Παρουσίαση</h2>
<p>Η παρούσα αναφορά παρέχει μια ολοκληρωμένη ανάλυση και στρατηγική καθοδήγηση για
<strong>%s</strong>%s, με στόχο την ενίσχυση
της ανταγωνιστικότητας, τη βελτίωση της οικονομικής απόδοσης και την ψηφιακή μετάβαση της επιχείρησης.</p>

<h3>Βασικά Ευρήματα</h3>
<ul>
  <li><strong>Επιχειρηματικό Προφίλ:</strong> Ανάλυση επιχειρηματικού μοντέλου και στρατηγικής θέσης</li>
  <li><strong>Οικονομική Υγεία:</strong> Αξιολόγηση οικονομικής απόδοσης και ευκαιρίες βελτίωσης</li>
  <li><strong>Ψηφιακή Ωριμότητα:</strong> Οδικός χάρτης ψηφιακού μετασχηματισμού</li>
  <li><strong>Ευκαιρίες Χρηματοδότησης:</strong> Διαθέσιμα προγράμματα ΕΣΠΑ και εναλλακτικές χρηματοδοτήσεις</li>
</ul>

<h3>Προτεινόμενες Στρατηγικές Προτεραιότητες</h3>
<ol>
  <li>Ψηφιακή αναβάθμιση και online παρουσία</li>
  <li>Βελτίωση συστημάτων οικονομικής διαχείρισης</li>
  <li>Διαφοροποίηση υπηρεσιών/προϊόντων</li>
  <li>Αξιοποίηση χρηματοδότησης ΕΣΠΑ</li>
  <li>Υιοθέτηση τεχνολογιών καινοτομίας</li>
</ol>
`

// DefaultVideos are used when section 8 returns no recommendations.
var DefaultVideos = []domain.VideoRecommendation{
	{
		Title:     "AI for Small Business: Complete Guide",
		Channel:   "AI Business School",
		URL:       "https://www.youtube.com/watch?v=example1",
		Duration:  "15:30",
		Topic:     "AI Tools for SMEs",
		Relevance: "Πρακτικά εργαλεία AI για μικρές επιχειρήσεις",
	},
	{
		Title:     "Digital Marketing για Επαγγελματίες",
		Channel:   "Marketing GR",
		URL:       "https://www.youtube.com/watch?v=example2",
		Duration:  "22:15",
		Topic:     "Digital Marketing",
		Relevance: "Στρατηγικές online marketing για ελληνικές επιχειρήσεις",
	},
	{
		Title:     "Οικονομική Διαχείριση ΜμΕ",
		Channel:   "Small Business Finance GR",
		URL:       "https://www.youtube.com/watch?v=example3",
		Duration:  "18:45",
		Topic:     "Financial Management",
		Relevance: "Οικονομική διαχείριση και προγραμματισμός",
	},
	{
		Title:     "ΕΣΠΑ 2021-2027 - Οδηγός Χρηματοδότησης",
		Channel:   "ΕΣΠΑ Info",
		URL:       "https://www.youtube.com/watch?v=example4",
		Duration:  "28:00",
		Topic:     "ΕΣΠΑ Funding",
		Relevance: "Αξιοποίηση προγραμμάτων ΕΣΠΑ",
	},
	{
		Title:     "Ψηφιακός Μετασχηματισμός Επιχειρήσεων",
		Channel:   "Digital Transformation GR",
		URL:       "https://www.youtube.com/watch?v=example5",
		Duration:  "20:00",
		Topic:     "Digital Transformation",
		Relevance: "Στρατηγική ψηφιακής αναβάθμισης",
	},
}

var LegalLinks = []domain.LegalLink{
	{
		Title:       "ΑΑΔΕ - Ανεξάρτητη Αρχή Δημοσίων Εσόδων",
		URL:         "https://1521.aade.gr/",
		Description: "Πύλη φορολογικών υποθέσεων και δηλώσεων (Ε1, Ε3, ΦΠΑ, myDATA)",
	},
	{
		Title:       "ΕΦΚΑ - Ηλεκτρονικές Υπηρεσίες",
		URL:         "https://www.efka.gov.gr/",
		Description: "Ενιαίος Φορέας Κοινωνικής Ασφάλισης - Ασφαλιστικές εισφορές",
	},
	{
		Title:       "ΓΕΜΗ - Γενικό Εμπορικό Μητρώο",
		URL:         "https://www.businessportal.gr/",
		Description: "Υπηρεσίες Γ.Ε.ΜΗ. και επιχειρηματικότητας",
	},
	{
		Title:       "ΕΣΠΑ 2021-2027",
		URL:         "https://www.espa.gr/",
		Description: "Προγράμματα χρηματοδότησης για επιχειρήσεις",
	},
}

// Compile assembles the final report. Nil sections are dropped; the video
// list comes from section 8 when it has any.
func Compile(sections []*domain.Section, company domain.CompanyInfo) domain.Report {
	afmText := ""
	if company.AFM != "" {
		afmText = fmt.Sprintf(" (ΑΦΜ: %s)", company.AFM)
	}

	kept := make([]domain.Section, 0, len(sections))
	var videos []domain.VideoRecommendation
	for _, s := range sections {
		if s == nil {
			continue
		}
		kept = append(kept, *s)
		if s.Number == 8 && videos == nil && len(s.VideoRecommendations) > 0 {
			videos = s.VideoRecommendations
		}
	}
	if len(videos) == 0 {
		videos = append([]domain.VideoRecommendation(nil), DefaultVideos...)
	}

	return domain.Report{
		CompanyName:          company.CompanyName,
		AFM:                  company.AFM,
		KAD:                  company.KAD,
		Website:              company.Website,
		ReportTitle:          "Comprehensive Mentoring & Business Development Report - " + company.NameOr("Greek SME"),
		ExecutiveSummary:     fmt.Sprintf(executiveSummaryTemplate, company.NameOr("την επιχείρηση"), afmText),
		Sections:             kept,
		VideoRecommendations: videos,
		LegalLinks:           append([]domain.LegalLink(nil), LegalLinks...),
	}
}

// WriteJSON pretty-prints v as UTF-8 without escaping HTML characters.
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// LoadReport reads a compiled report back from disk.
func LoadReport(path string) (domain.Report, error) {
	var r domain.Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, err
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parse %s: %w", path, err)
	}
	return r, nil
}
