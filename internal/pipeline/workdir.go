package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"mentorreport/internal/domain"
	"mentorreport/internal/preprocess"
	"mentorreport/internal/report"
)

var afmPattern = regexp.MustCompile(`^\d{9}$`)

const unknownAFM = "unknown"

// ExtractAFM picks the AFM used to name the working directory: the explicit
// one when given, else a nine digit component of a "NAME - AFM - ..." folder
// name. A folder called "mentoring" is named after its parent.
func ExtractAFM(dir, provided string) string {
	if provided = strings.TrimSpace(provided); provided != "" {
		return provided
	}
	name := filepath.Base(filepath.Clean(dir))
	if name == "mentoring" {
		name = filepath.Base(filepath.Dir(filepath.Clean(dir)))
	}
	for _, part := range strings.Split(name, " - ") {
		if part = strings.TrimSpace(part); afmPattern.MatchString(part) {
			return part
		}
	}
	return unknownAFM
}

// Rebase maps a path under from to the same relative path under to. Paths
// outside from are returned unchanged.
func Rebase(path, from, to string) string {
	rel, err := filepath.Rel(from, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(to, rel)
}

// CopyFiles copies every file under sourceDir into outputDir, keeping the
// relative layout, and returns how many were copied.
func CopyFiles(files []string, sourceDir, outputDir string) (int, error) {
	copied := 0
	for _, src := range files {
		dest := Rebase(src, sourceDir, outputDir)
		if dest == src {
			continue
		}
		if err := copyFile(src, dest); err != nil {
			return copied, err
		}
		copied++
	}
	return copied, nil
}

func copyFile(src, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chtimes(dest, info.ModTime(), info.ModTime())
}

// RelativeMapping renders the section mapping with paths relative to dir and
// string keys, the layout of section_file_mapping.json.
func RelativeMapping(mapping domain.SectionMapping, dir string) map[string][]string {
	out := make(map[string][]string, domain.SectionCount)
	for n := 1; n <= domain.SectionCount; n++ {
		paths := make([]string, 0, len(mapping[n]))
		for _, p := range mapping[n] {
			if rel, err := filepath.Rel(dir, p); err == nil {
				p = filepath.ToSlash(rel)
			}
			paths = append(paths, p)
		}
		out[strconv.Itoa(n)] = paths
	}
	return out
}

// WriteArtifacts saves the classification, placeholder metadata and
// preprocessing output next to the generated sections.
func WriteArtifacts(dir string, mapping domain.SectionMapping, details domain.ClassificationDetails, company domain.CompanyInfo, pre preprocess.Result) error {
	artifacts := []struct {
		name string
		v    any
	}{
		{MappingFile, RelativeMapping(mapping, dir)},
		{DetailsFile, details},
		{MetadataFile, company},
		{PreprocessedFile, pre},
	}
	for _, a := range artifacts {
		if err := report.WriteJSON(filepath.Join(dir, a.name), a.v); err != nil {
			return fmt.Errorf("write %s: %w", a.name, err)
		}
	}
	return nil
}
