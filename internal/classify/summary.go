package classify

import (
	"path/filepath"
	"strings"

	"mentorreport/internal/preprocess"
)

const (
	maxTextSample      = 300
	maxKeyFigureSheets = 2
	maxFiguresPerSheet = 3
	maxKeyFigures      = 5
)

// FileSummary is the compact view of a file sent to the classifier.
type FileSummary struct {
	Filename               string                 `json:"filename"`
	FileType               string                 `json:"file_type"`
	TextSample             string                 `json:"text_sample,omitempty"`
	ContentHints           []string               `json:"content_hints,omitempty"`
	Sheets                 []string               `json:"sheets,omitempty"`
	KeyFinancialIndicators []preprocess.KeyFigure `json:"key_financial_indicators,omitempty"`
}

// PrepareFileSummary builds the classifier view of one file. data may be nil
// for files the preprocessor does not handle.
func PrepareFileSummary(path string, data *preprocess.StructuredData) FileSummary {
	s := FileSummary{
		Filename: filepath.Base(path),
		FileType: strings.ToLower(filepath.Ext(path)),
	}
	if data == nil {
		return s
	}
	if data.TextSample != "" {
		r := []rune(data.TextSample)
		if len(r) > maxTextSample {
			r = r[:maxTextSample]
		}
		s.TextSample = string(r)
	}
	if len(data.ContentHints) > 0 {
		s.ContentHints = data.ContentHints
	}
	if len(data.Sheets) > 0 {
		var figures []preprocess.KeyFigure
		for i, sheet := range data.Sheets {
			s.Sheets = append(s.Sheets, sheet.Name)
			if i < maxKeyFigureSheets {
				figures = append(figures, sheet.KeyFigures[:min(len(sheet.KeyFigures), maxFiguresPerSheet)]...)
			}
		}
		if len(figures) > maxKeyFigures {
			figures = figures[:maxKeyFigures]
		}
		s.KeyFinancialIndicators = figures
	}
	return s
}
