package pipeline

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mentorreport/internal/domain"
	"mentorreport/internal/preprocess"
)

func preprocessResultFixture() preprocess.Result {
	return preprocess.Result{
		PreprocessingTimestamp: "2025-03-14T09:30:00Z",
		Directory:              "/src",
		TotalFiles:             1,
		Files:                  []preprocess.Document{{Filename: "plan.docx", ExtractionStatus: preprocess.StatusRequiresSkill}},
	}
}

func TestFormatElapsed(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{42*time.Second + 900*time.Millisecond, "42s"},
		{60 * time.Second, "1m 0s"},
		{12*time.Minute + 5*time.Second, "12m 5s"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatElapsed(tt.d), tt.d.String())
	}
}

func TestClassificationTable(t *testing.T) {
	mapping := domain.NewSectionMapping()
	mapping[2] = []string{"a.pdf", "b.xlsx"}

	out := ClassificationTable(mapping)
	assert.Contains(t, out, "File Classification by Section")
	for _, want := range []string{"Section 1", "Section 11", "Files"} {
		assert.Contains(t, out, want)
	}
	var row string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Section 2 ") {
			row = line
		}
	}
	assert.Contains(t, row, "2")
}

func TestSummary(t *testing.T) {
	res := Result{
		OutputDir: "/work/123456789_20250314_093000",
		Company:   domain.CompanyInfo{CompanyName: "ΑΚΜΕ Α.Ε."},
		Sections:  []int{1, 2, 3},
		Failed:    []int{4},
		Duration:  95 * time.Second,
		HTMLPath:  "/work/123456789_20250314_093000/mentoring_report.html",
	}

	out := Summary(res, nil)
	for _, want := range []string{"Report Generation Complete", "ΑΚΜΕ Α.Ε.", "Sections: 3/11", "Duration: 1m 35s", "HTML: mentoring_report.html", "Skipped sections: 4"} {
		assert.Contains(t, out, want)
	}

	res.Partial = true
	assert.Contains(t, Summary(res, nil), "HTML: Failed - check errors above")

	out = Summary(Result{}, errors.New("classify files: boom"))
	assert.Contains(t, out, "Report Generation Failed")
	assert.Contains(t, out, "Company: N/A")
	assert.Contains(t, out, "Error: classify files: boom")
}
