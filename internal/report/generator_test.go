package report

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"mentorreport/internal/domain"
	"mentorreport/internal/integrations/llm"
)

type fakeRunner struct {
	stdout      string
	err         error
	writesFiles bool
	// onRun simulates the model saving files in the work dir.
	onRun func(req llm.Request)
	calls []llm.Request
}

func (f *fakeRunner) Run(_ context.Context, req llm.Request) (llm.Response, error) {
	f.calls = append(f.calls, req)
	if f.onRun != nil {
		f.onRun(req)
	}
	return llm.Response{Text: f.stdout}, f.err
}

func (f *fakeRunner) WritesFiles() bool { return f.writesFiles }

func TestGenerateSectionPrefersSavedFile(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{
		writesFiles: true,
		stdout:      "Done, saved the file.",
		onRun: func(req llm.Request) {
			body := `{"number": 2, "title": "Οικονομική Υγεία", "content": "<p>ok</p>", "kpis": [{"label": "Score", "value": 450}]}`
			if err := os.WriteFile(filepath.Join(req.WorkDir, "section_2_generated.json"), []byte(body), 0o644); err != nil {
				t.Fatal(err)
			}
		},
	}

	g := NewGenerator(runner, dir, GeneratorOptions{}, nil)
	s, err := g.GenerateSection(context.Background(), 2, domain.CompanyInfo{CompanyName: "Alpha"}, []string{"/src/e3.xlsx"})
	if err != nil {
		t.Fatalf("GenerateSection returned error: %v", err)
	}
	if s.Number != 2 || s.KPIs[0].Value != "450" {
		t.Fatalf("unexpected section: %+v", s)
	}

	req := runner.calls[0]
	if req.Model != "sonnet" || req.PermissionMode != llm.PermissionAcceptEdits || req.WorkDir != dir || req.Timeout != 0 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if !strings.Contains(strings.Join(req.AllowedTools, " "), "WebSearch") {
		t.Fatalf("section runs need web search: %v", req.AllowedTools)
	}
	prompt, err := os.ReadFile(filepath.Join(dir, PromptFile(2)))
	if err != nil {
		t.Fatalf("prompt file not written: %v", err)
	}
	if string(prompt) != req.Prompt || !strings.Contains(req.Prompt, "e3.xlsx") {
		t.Fatal("saved prompt must match what was sent")
	}
}

func TestGenerateSectionFallsBackToStdout(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{
		writesFiles: true,
		stdout:      "Here it is:\n```json\n{\"number\": 5, \"title\": \"Digital\", \"content\": \"<p>x</p>\", \"tables\": [],}\n```\n",
	}

	s, err := NewGenerator(runner, dir, GeneratorOptions{Model: "opus"}, nil).
		GenerateSection(context.Background(), 5, domain.CompanyInfo{}, nil)
	if err != nil {
		t.Fatalf("GenerateSection returned error: %v", err)
	}
	if s.Number != 5 || s.Title != "Digital" {
		t.Fatalf("unexpected section: %+v", s)
	}
	if runner.calls[0].Model != "opus" {
		t.Fatalf("model option ignored: %q", runner.calls[0].Model)
	}
	if _, err := os.Stat(filepath.Join(dir, "section_5_generated.json")); err != nil {
		t.Fatalf("extracted section must be saved: %v", err)
	}
}

func TestGenerateSectionRawObjectOnAPIBackend(t *testing.T) {
	dir := t.TempDir()
	// A stale file must be ignored when the backend cannot write files.
	if err := os.WriteFile(filepath.Join(dir, "section_3_generated.json"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}
	runner := &fakeRunner{stdout: `Analysis follows {"number": 3, "title": "Market", "content": "c"} end`}

	s, err := NewGenerator(runner, dir, GeneratorOptions{}, nil).
		GenerateSection(context.Background(), 3, domain.CompanyInfo{}, nil)
	if err != nil {
		t.Fatalf("GenerateSection returned error: %v", err)
	}
	if s.Title != "Market" {
		t.Fatalf("unexpected section: %+v", s)
	}
}

func TestGenerateSectionFailures(t *testing.T) {
	t.Run("no json writes debug dump", func(t *testing.T) {
		dir := t.TempDir()
		runner := &fakeRunner{writesFiles: true, stdout: "I could not access the files."}
		_, err := NewGenerator(runner, dir, GeneratorOptions{}, nil).
			GenerateSection(context.Background(), 4, domain.CompanyInfo{}, nil)
		if !errors.Is(err, llm.ErrNoJSON) {
			t.Fatalf("expected ErrNoJSON, got %v", err)
		}
		dump, readErr := os.ReadFile(filepath.Join(dir, DebugFile(4)))
		if readErr != nil || string(dump) != "I could not access the files." {
			t.Fatalf("expected raw output in debug file, got %q (%v)", dump, readErr)
		}
	})

	t.Run("broken json writes extracted text", func(t *testing.T) {
		dir := t.TempDir()
		runner := &fakeRunner{stdout: `{"number": 6, "title": }`}
		_, err := NewGenerator(runner, dir, GeneratorOptions{}, nil).
			GenerateSection(context.Background(), 6, domain.CompanyInfo{}, nil)
		if err == nil || !strings.Contains(err.Error(), "parse output") {
			t.Fatalf("expected parse error, got %v", err)
		}
		if _, statErr := os.Stat(filepath.Join(dir, DebugFile(6))); statErr != nil {
			t.Fatalf("expected debug file: %v", statErr)
		}
	})

	t.Run("unparseable saved file", func(t *testing.T) {
		dir := t.TempDir()
		runner := &fakeRunner{
			writesFiles: true,
			onRun: func(req llm.Request) {
				_ = os.WriteFile(filepath.Join(req.WorkDir, "section_7_generated.json"), []byte("{oops"), 0o644)
			},
		}
		_, err := NewGenerator(runner, dir, GeneratorOptions{}, nil).
			GenerateSection(context.Background(), 7, domain.CompanyInfo{}, nil)
		if err == nil || !strings.Contains(err.Error(), "section_7_generated.json") {
			t.Fatalf("expected parse error naming the file, got %v", err)
		}
	})

	t.Run("runner error", func(t *testing.T) {
		runner := &fakeRunner{err: &llm.ExitError{Code: 1, Stderr: "boom"}}
		_, err := NewGenerator(runner, t.TempDir(), GeneratorOptions{}, nil).
			GenerateSection(context.Background(), 8, domain.CompanyInfo{}, nil)
		var exitErr *llm.ExitError
		if !errors.As(err, &exitErr) || exitErr.Code != 1 {
			t.Fatalf("expected wrapped exit error, got %v", err)
		}
	})

	t.Run("invalid section", func(t *testing.T) {
		runner := &fakeRunner{}
		if _, err := NewGenerator(runner, t.TempDir(), GeneratorOptions{}, nil).
			GenerateSection(context.Background(), 12, domain.CompanyInfo{}, nil); err == nil {
			t.Fatal("expected error for section 12")
		}
		if len(runner.calls) != 0 {
			t.Fatal("runner must not be called for an invalid section")
		}
	})
}
