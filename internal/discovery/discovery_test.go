package discovery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, root, rel string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	return p
}

func TestDiscoverFindsBusinessDocumentsRecursively(t *testing.T) {
	root := t.TempDir()
	plan := touch(t, root, "plan.PDF")
	sheet := touch(t, root, "finance/E3 2023.xlsx")
	scan := touch(t, root, "finance/scans/id card.jpeg")
	touch(t, root, "notes.txt")
	touch(t, root, "video.mp4")
	touch(t, root, "mentoring_report.pdf")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "folder.pdf"), 0o755))

	files, err := Discover(root)
	require.NoError(t, err)

	assert.Equal(t, []string{sheet, scan, plan}, files)
}

func TestDiscoverMediaAndTranscripts(t *testing.T) {
	root := t.TempDir()
	clip := touch(t, root, "interview.MOV")
	voice := touch(t, root, "audio/memo.m4a")
	transcript := touch(t, root, "interview_transcript.txt")
	touch(t, root, "readme.txt")

	media, err := DiscoverMedia(root)
	require.NoError(t, err)
	assert.Equal(t, []string{voice, clip}, media)

	transcripts, err := DiscoverTranscripts(root)
	require.NoError(t, err)
	assert.Equal(t, []string{transcript}, transcripts)
}

func TestDiscoverPreprocessableSkipsImages(t *testing.T) {
	root := t.TempDir()
	doc := touch(t, root, "offer.docx")
	touch(t, root, "logo.png")

	files, err := DiscoverPreprocessable(root)
	require.NoError(t, err)
	assert.Equal(t, []string{doc}, files)
}

func TestDiscoverMissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"))
	assert.Error(t, err)
}

func TestDiscoverEmptyDirectory(t *testing.T) {
	files, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestIsMedia(t *testing.T) {
	assert.True(t, IsMedia("/w/session.MP4"))
	assert.True(t, IsMedia("call.wav"))
	assert.False(t, IsMedia("notes.txt"))
	assert.False(t, IsMedia("noext"))
}
