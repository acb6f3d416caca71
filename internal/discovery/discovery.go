// Package discovery finds business documents and media under a folder.
package discovery

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	DocumentExtensions      = []string{".pdf", ".xlsx", ".xls", ".docx", ".doc", ".jpeg", ".jpg", ".png"}
	PreprocessExtensions    = []string{".pdf", ".xlsx", ".xls", ".docx", ".doc"}
	MediaExtensions         = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4a", ".mp3", ".wav"}
	TranscriptExtensions    = []string{".txt"}
	generatedArtifactPrefix = "mentoring_report"
)

// Discover returns the business documents under dir, recursively, sorted and
// without duplicates.
func Discover(dir string) ([]string, error) {
	return discover(dir, DocumentExtensions)
}

// DiscoverPreprocessable returns the documents the preprocessor inspects.
func DiscoverPreprocessable(dir string) ([]string, error) {
	return discover(dir, PreprocessExtensions)
}

// DiscoverMedia returns video and audio files eligible for transcription.
func DiscoverMedia(dir string) ([]string, error) {
	return discover(dir, MediaExtensions)
}

// IsMedia reports whether path has an audio or video extension.
func IsMedia(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, m := range MediaExtensions {
		if ext == m {
			return true
		}
	}
	return false
}

// DiscoverTranscripts returns transcripts produced by the media step.
func DiscoverTranscripts(dir string) ([]string, error) {
	files, err := discover(dir, TranscriptExtensions)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, f := range files {
		if strings.HasSuffix(filepath.Base(f), "_transcript.txt") {
			out = append(out, f)
		}
	}
	return out, nil
}

func discover(dir string, extensions []string) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("directory not found: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	allowed := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		allowed[ext] = true
	}

	fsys := os.DirFS(absDir)
	matches, err := doublestar.Glob(fsys, "**/*.*")
	if err != nil {
		return nil, fmt.Errorf("glob error: %w", err)
	}

	seen := make(map[string]bool)
	var files []string
	for _, rel := range matches {
		if !allowed[strings.ToLower(filepath.Ext(rel))] {
			continue
		}
		if strings.HasPrefix(filepath.Base(rel), generatedArtifactPrefix) {
			continue
		}
		st, err := fs.Stat(fsys, rel)
		if err != nil || !st.Mode().IsRegular() {
			continue
		}
		full := filepath.Join(absDir, filepath.FromSlash(rel))
		if seen[full] {
			continue
		}
		seen[full] = true
		files = append(files, full)
	}
	sort.Strings(files)
	return files, nil
}
