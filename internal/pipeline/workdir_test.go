package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mentorreport/internal/domain"
)

func TestExtractAFM(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		provided string
		want     string
	}{
		{"provided wins", "/data/ΑΚΜΕ - 123456789 - 2025", " 555555555 ", "555555555"},
		{"from folder name", "/data/ΑΚΜΕ - 123456789 - 2025", "", "123456789"},
		{"mentoring uses parent", "/data/ΑΚΜΕ - 123456789/mentoring", "", "123456789"},
		{"trailing slash", "/data/ΑΚΜΕ - 123456789/mentoring/", "", "123456789"},
		{"mentoring is case sensitive", "/data/ΑΚΜΕ - 123456789/Mentoring", "", "unknown"},
		{"ten digits ignored", "/data/ΑΚΜΕ - 1234567890", "", "unknown"},
		{"needs separator", "/data/ΑΚΜΕ_123456789", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractAFM(filepath.FromSlash(tt.dir), tt.provided))
		})
	}
}

func TestRebase(t *testing.T) {
	from := filepath.FromSlash("/src/mentoring")
	to := filepath.FromSlash("/work/run")

	assert.Equal(t, filepath.FromSlash("/work/run/a/b.pdf"), Rebase(filepath.FromSlash("/src/mentoring/a/b.pdf"), from, to))
	assert.Equal(t, filepath.FromSlash("/elsewhere/c.txt"), Rebase(filepath.FromSlash("/elsewhere/c.txt"), from, to))
	assert.Equal(t, filepath.FromSlash("/src/mentoring-old/x.pdf"), Rebase(filepath.FromSlash("/src/mentoring-old/x.pdf"), from, to))
}

func TestCopyFilesPreservesLayoutAndModTime(t *testing.T) {
	src := t.TempDir()
	out := filepath.Join(t.TempDir(), "run")
	a := filepath.Join(src, "a.pdf")
	b := filepath.Join(src, "nested", "b.xlsx")
	writeFile(t, a, "A")
	writeFile(t, b, "B")
	mtime := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(b, mtime, mtime))

	n, err := CopyFiles([]string{a, b, filepath.Join(out, "transcripts", "x_transcript.txt")}, src, out)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(out, "nested", "b.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(data))
	info, err := os.Stat(filepath.Join(out, "nested", "b.xlsx"))
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(mtime))
}

func TestCopyFilesMissingSource(t *testing.T) {
	src := t.TempDir()
	_, err := CopyFiles([]string{filepath.Join(src, "gone.pdf")}, src, t.TempDir())
	assert.Error(t, err)
}

func TestRelativeMapping(t *testing.T) {
	dir := filepath.FromSlash("/work/run")
	mapping := domain.NewSectionMapping()
	mapping[1] = []string{filepath.FromSlash("/work/run/plan.pdf"), filepath.FromSlash("/work/run/sub/fin.xlsx")}

	got := RelativeMapping(mapping, dir)
	assert.Len(t, got, domain.SectionCount)
	assert.Equal(t, []string{"plan.pdf", "sub/fin.xlsx"}, got["1"])
	assert.NotNil(t, got["11"])
	assert.Empty(t, got["11"])
}

func TestWriteArtifacts(t *testing.T) {
	dir := t.TempDir()
	details := domain.ClassificationDetails{Classifications: []domain.FileClassification{
		{Filename: "plan.pdf", Sections: []int{1}, Reasoning: "Επιχειρηματικό σχέδιο & στόχοι"},
	}}
	require.NoError(t, WriteArtifacts(dir, domain.NewSectionMapping(), details, domain.CompanyInfo{}, preprocessResultFixture()))

	raw, err := os.ReadFile(filepath.Join(dir, DetailsFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Επιχειρηματικό σχέδιο & στόχοι")

	raw, err = os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"company_name":"","afm":"","kad":"","website":""}`, string(raw))
	assert.FileExists(t, filepath.Join(dir, PreprocessedFile))
	assert.FileExists(t, filepath.Join(dir, MappingFile))
}

func TestVideoChunkDir(t *testing.T) {
	assert.Equal(t, filepath.Join("wd", "temp", "video_chunks"), VideoChunkDir("wd"))
}
