// Package preprocess extracts structured data from business documents ahead
// of classification.
package preprocess

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"mentorreport/internal/discovery"
)

const (
	StatusSuccess       = "success"
	StatusRequiresSkill = "requires_claude_skills"
	StatusUnsupported   = "unsupported_format"
	StatusError         = "error"

	maxPreviewChars  = 5000
	maxExcerptChars  = 300
	maxExcerpts      = 20
	minSentenceChars = 20
	maxPDFSample     = 2000
)

var DefaultExcerptKeywords = []string{
	"στόχος", "στρατηγική", "πρόβλημα", "λύση", "ευκαιρία", "απειλή",
	"ανάπτυξη", "επένδυση", "καινοτομία", "ανταγωνισμός", "αγορά",
	"goal", "strategy", "problem", "solution", "opportunity", "threat",
	"growth", "investment", "innovation", "competition", "market",
	"challenge", "risk", "strength", "weakness",
}

var businessElements = []struct {
	name     string
	keywords []string
}{
	{"financial projections", []string{"προβλέψεις", "projections", "forecast"}},
	{"swot analysis", []string{"swot", "δυνατά σημεία", "strengths"}},
	{"market analysis", []string{"αγορά", "market", "ανταγωνισμός", "competition"}},
	{"action plan", []string{"δράσεις", "action plan", "ημερομηνία", "deadline"}},
}

var sentenceSplit = regexp.MustCompile(`[.!?]\s+`)

// StructuredData is the extraction payload for one document. Spreadsheet
// fields are set for Excel files; PDF and Word files carry the extraction
// method and, for PDFs with a text layer, a text sample.
type StructuredData struct {
	SheetCount         int         `json:"sheet_count,omitempty"`
	Sheets             []SheetData `json:"sheets,omitempty"`
	ExtractionMethod   string      `json:"extraction_method,omitempty"`
	RequiresProcessing bool        `json:"requires_processing,omitempty"`
	FilePath           string      `json:"file_path,omitempty"`
	PageCount          int         `json:"page_count,omitempty"`
	TextSample         string      `json:"text_sample,omitempty"`
	ContentHints       []string    `json:"content_hints,omitempty"`
}

type Document struct {
	Filename            string          `json:"filename"`
	Path                string          `json:"-"`
	FileType            string          `json:"file_type"`
	FileSizeKB          float64         `json:"file_size_kb"`
	ModifiedDate        string          `json:"modified_date"`
	ExtractionTimestamp string          `json:"extraction_timestamp"`
	StructuredData      *StructuredData `json:"structured_data,omitempty"`
	ExtractionStatus    string          `json:"extraction_status"`
	ErrorMessage        string          `json:"error_message,omitempty"`
	FullTextPreview     string          `json:"full_text_preview,omitempty"`
	KeyExcerpts         []string        `json:"key_excerpts,omitempty"`
	QualityObservations []string        `json:"quality_observations,omitempty"`
}

type Result struct {
	PreprocessingTimestamp string     `json:"preprocessing_timestamp"`
	Directory              string     `json:"directory"`
	TotalFiles             int        `json:"total_files"`
	Files                  []Document `json:"files"`
}

// StatusCounts summarises extraction statuses for logging.
func (r Result) StatusCounts() map[string]int {
	counts := make(map[string]int)
	for _, f := range r.Files {
		counts[f.ExtractionStatus]++
	}
	return counts
}

// ByPath indexes the structured data of each processed file by absolute path.
func (r Result) ByPath() map[string]*StructuredData {
	out := make(map[string]*StructuredData, len(r.Files))
	for _, f := range r.Files {
		if f.StructuredData != nil {
			out[f.Path] = f.StructuredData
		}
	}
	return out
}

var nowFn = time.Now

// PreprocessDocument extracts what it can from a single file. Extraction
// failures are reported in the returned document, not as an error.
func PreprocessDocument(path string) Document {
	doc := Document{
		Filename:            filepath.Base(path),
		Path:                path,
		FileType:            strings.ToLower(filepath.Ext(path)),
		ExtractionTimestamp: nowFn().Format(time.RFC3339),
	}
	info, err := os.Stat(path)
	if err != nil {
		doc.ExtractionStatus = StatusError
		doc.ErrorMessage = err.Error()
		return doc
	}
	doc.FileSizeKB = float64(info.Size()) / 1024
	doc.ModifiedDate = info.ModTime().Format(time.RFC3339)

	switch doc.FileType {
	case ".xlsx", ".xls":
		data, err := ExtractExcel(path)
		if err != nil {
			doc.ExtractionStatus = StatusError
			doc.ErrorMessage = err.Error()
			return doc
		}
		doc.StructuredData = &StructuredData{SheetCount: data.SheetCount, Sheets: data.Sheets}
		doc.ExtractionStatus = StatusSuccess

		var text []string
		for _, s := range data.Sheets {
			text = append(text, s.text...)
		}
		fullText := strings.Join(text, " ")
		doc.FullTextPreview = truncateRunes(fullText, maxPreviewChars)
		doc.KeyExcerpts = ExtractKeyExcerpts(fullText, nil)
		doc.QualityObservations = AssessQuality(doc)
	case ".pdf":
		sd := &StructuredData{
			ExtractionMethod:   "claude_document_skills",
			RequiresProcessing: true,
			FilePath:           path,
		}
		if pages, text, err := ExtractPDFText(path, maxPDFSample); err == nil {
			sd.PageCount = pages
			sd.TextSample = text
			sd.ContentHints = ExtractKeyExcerpts(text, nil)
		}
		doc.StructuredData = sd
		doc.ExtractionStatus = StatusRequiresSkill
	case ".docx", ".doc":
		doc.StructuredData = &StructuredData{
			ExtractionMethod:   "claude_document_skills",
			RequiresProcessing: true,
			FilePath:           path,
		}
		doc.ExtractionStatus = StatusRequiresSkill
	default:
		doc.ExtractionStatus = StatusUnsupported
	}
	return doc
}

// ExtractKeyExcerpts returns up to 20 sentences that mention one of the
// keywords. A nil keyword list selects DefaultExcerptKeywords.
func ExtractKeyExcerpts(text string, keywords []string) []string {
	if keywords == nil {
		keywords = DefaultExcerptKeywords
	}
	excerpts := []string{}
	for _, sentence := range sentenceSplit.Split(text, -1) {
		sentence = strings.TrimSpace(sentence)
		if len([]rune(sentence)) < minSentenceChars {
			continue
		}
		lower := strings.ToLower(sentence)
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				if len([]rune(sentence)) > maxExcerptChars {
					sentence = truncateRunes(sentence, maxExcerptChars) + "..."
				}
				excerpts = append(excerpts, sentence)
				break
			}
		}
		if len(excerpts) == maxExcerpts {
			break
		}
	}
	return excerpts
}

// AssessQuality lists empty structured fields and which business elements the
// extracted text does or does not mention.
func AssessQuality(doc Document) []string {
	var observations []string
	if sd := doc.StructuredData; sd != nil {
		var empty []string
		if sd.SheetCount == 0 {
			empty = append(empty, "sheet_count")
		}
		if len(sd.Sheets) == 0 {
			empty = append(empty, "sheets")
		}
		if len(empty) > 0 {
			observations = append(observations, "Missing data in fields: "+strings.Join(empty, ", "))
		}
	}

	text := strings.ToLower(doc.FullTextPreview)
	for _, el := range businessElements {
		found := false
		for _, kw := range el.keywords {
			if strings.Contains(text, kw) {
				found = true
				break
			}
		}
		if found {
			observations = append(observations, "Contains "+el.name)
		} else {
			observations = append(observations, "Missing "+el.name)
		}
	}
	return observations
}

// PreprocessDirectory processes every preprocessable document under dir and,
// when outputPath is set, writes the result as indented JSON.
func PreprocessDirectory(dir, outputPath string) (Result, error) {
	files, err := discovery.DiscoverPreprocessable(dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{
		PreprocessingTimestamp: nowFn().Format(time.RFC3339),
		Directory:              dir,
		TotalFiles:             len(files),
		Files:                  make([]Document, 0, len(files)),
	}
	for _, f := range files {
		res.Files = append(res.Files, PreprocessDocument(f))
	}
	if outputPath != "" {
		if err := WriteJSON(outputPath, res); err != nil {
			return res, err
		}
	}
	return res, nil
}

// FormatStatusSummary renders status counts in a stable order.
func FormatStatusSummary(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[k]))
	}
	return strings.Join(parts, " ")
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
