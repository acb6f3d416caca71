package preprocess

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPDFText returns the page count and up to maxChars of text from a PDF
// text layer. Scanned PDFs yield an empty sample.
func ExtractPDFText(path string, maxChars int) (int, string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, "", fmt.Errorf("open PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages && b.Len() < maxChars*4; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	return numPages, truncateRunes(strings.Join(strings.Fields(b.String()), " "), maxChars), nil
}
