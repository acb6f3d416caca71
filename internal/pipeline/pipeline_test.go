package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"mentorreport/internal/config"
	"mentorreport/internal/integrations/llm"
	"mentorreport/internal/integrations/sharepoint"
	slackbot "mentorreport/internal/integrations/slack"
	"mentorreport/internal/metrics"
	"mentorreport/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var sectionFilePattern = regexp.MustCompile(`section_(\d+)_generated\.json`)

// scriptedRunner answers the classification call with classifyText and each
// section call with a minimal section document.
type scriptedRunner struct {
	classifyText string
	classifyErr  error
	failSections map[int]bool
	prompts      map[int]string
	classifyCall string
}

func (r *scriptedRunner) WritesFiles() bool { return false }

func (r *scriptedRunner) Run(_ context.Context, req llm.Request) (llm.Response, error) {
	if req.PermissionMode != llm.PermissionAcceptEdits {
		r.classifyCall = req.Prompt
		return llm.Response{Text: r.classifyText}, r.classifyErr
	}
	m := sectionFilePattern.FindStringSubmatch(req.Prompt)
	if m == nil {
		return llm.Response{}, errors.New("no section in prompt")
	}
	n, _ := strconv.Atoi(m[1])
	if r.prompts == nil {
		r.prompts = map[int]string{}
	}
	r.prompts[n] = req.Prompt
	if r.failSections[n] {
		return llm.Response{Text: "I could not finish this section."}, nil
	}
	body := map[string]any{
		"number":  n,
		"title":   fmt.Sprintf("Ενότητα %d", n),
		"content": fmt.Sprintf("<p>Περιεχόμενο %d</p>", n),
	}
	if n == 1 {
		body["metadata"] = map[string]string{
			"company_name": "ΑΚΜΕ Α.Ε.",
			"afm":          "123456789",
			"kad":          "62.01",
			"website":      "https://acme.example",
		}
	}
	data, _ := json.Marshal(body)
	return llm.Response{Text: "```json\n" + string(data) + "\n```"}, nil
}

type recordingNotifier struct {
	summaries []slackbot.RunSummary
}

func (n *recordingNotifier) Notify(_ context.Context, s slackbot.RunSummary) error {
	n.summaries = append(n.summaries, s)
	return nil
}

const classification = `{"classifications": [
  {"filename": "business_plan.docx", "sections": [1, 2, 3, 10], "reasoning": "plan"},
  {"filename": "shopfront.jpg", "sections": [5, 99], "reasoning": "photo"}
]}`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newSourceDir(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ΑΚΜΕ - 123456789 - 2025", "mentoring")
	writeFile(t, filepath.Join(dir, "business_plan.docx"), "docx bytes")
	writeFile(t, filepath.Join(dir, "photos", "shopfront.jpg"), "jpg bytes")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	return dir
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		WorkingDir:             filepath.Join(t.TempDir(), "working_dir"),
		SectionModel:           "sonnet",
		ClassifyModel:          "haiku",
		ClassifyTimeoutSeconds: 180,
	}
}

func newTestPipeline(cfg config.Config, deps Deps) *Pipeline {
	p := New(cfg, deps)
	p.now = func() time.Time { return time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC) }
	p.newID = func() string { return "run-1" }
	return p
}

func TestRunDirectory(t *testing.T) {
	cfg := testConfig(t)
	src := newSourceDir(t)
	runner := &scriptedRunner{classifyText: "```json\n" + classification + "\n```", failSections: map[int]bool{5: true}}
	store, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()
	m := metrics.New()
	notifier := &recordingNotifier{}
	var table strings.Builder

	p := newTestPipeline(cfg, Deps{Runner: runner, Store: store, Metrics: m, Notifier: notifier, Out: &table})
	res, err := p.Run(context.Background(), Source{Dir: src})
	require.NoError(t, err)

	wantDir, _ := filepath.Abs(filepath.Join(cfg.WorkingDir, "123456789_20250314_093000"))
	assert.Equal(t, wantDir, res.OutputDir)
	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []int{1, 2, 3, 4, 6, 7, 8, 9, 10, 11}, res.Sections)
	assert.Equal(t, []int{5}, res.Failed)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, "ΑΚΜΕ Α.Ε.", res.Company.CompanyName)
	assert.False(t, res.Partial)
	assert.Contains(t, table.String(), "Section 11")

	assert.FileExists(t, filepath.Join(res.OutputDir, "business_plan.docx"))
	assert.FileExists(t, filepath.Join(res.OutputDir, "photos", "shopfront.jpg"))
	assert.NoFileExists(t, filepath.Join(res.OutputDir, "notes.txt"))
	for _, name := range []string{DetailsFile, MetadataFile, PreprocessedFile, CompleteJSONFile, "mentoring_report.html", "mentoring_report.md", "section_5_output_debug.txt"} {
		assert.FileExists(t, filepath.Join(res.OutputDir, name))
	}

	raw, err := os.ReadFile(filepath.Join(res.OutputDir, MappingFile))
	require.NoError(t, err)
	var mapping map[string][]string
	require.NoError(t, json.Unmarshal(raw, &mapping))
	assert.Equal(t, []string{"business_plan.docx"}, mapping["1"])
	assert.Equal(t, []string{"photos/shopfront.jpg"}, mapping["5"])
	assert.ElementsMatch(t, []string{"business_plan.docx", "photos/shopfront.jpg"}, mapping["4"])
	assert.Len(t, mapping, 11)

	// Sections after the first are generated for the company named by section 1.
	assert.Contains(t, runner.prompts[2], "ΑΚΜΕ Α.Ε.")
	assert.Contains(t, runner.prompts[2], "123456789")
	assert.NotContains(t, runner.prompts[1], "ΑΚΜΕ Α.Ε.")
	assert.Contains(t, runner.prompts[1], "filed under AFM 123456789")
	assert.Contains(t, runner.classifyCall, "business_plan.docx")

	var meta map[string]string
	raw, err = os.ReadFile(filepath.Join(res.OutputDir, MetadataFile))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &meta))
	assert.Equal(t, "62.01", meta["kad"])

	html, err := os.ReadFile(res.HTMLPath)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Περιεχόμενο 11")
	assert.NotContains(t, string(html), "Περιεχόμενο 5<")

	run, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, storage.RunPartial, run.Status)
	assert.Equal(t, 10, run.SectionsOK)
	assert.Equal(t, 1, run.SectionsFailed)
	assert.Equal(t, "123456789", run.AFM)
	results, err := store.SectionResults("run-1")
	require.NoError(t, err)
	assert.Len(t, results, 11)
	classes, err := store.Classifications("run-1")
	require.NoError(t, err)
	assert.Len(t, classes, 2)
	assert.Equal(t, "5,99", classes[1].Sections)

	assert.Equal(t, float64(10), testutil.ToFloat64(m.Sections.WithLabelValues("ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Sections.WithLabelValues("failed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.FilesDiscovered))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.LastRunSuccess))

	require.Len(t, notifier.summaries, 1)
	assert.Equal(t, "ΑΚΜΕ Α.Ε.", notifier.summaries[0].CompanyName)
	assert.Equal(t, []int{5}, notifier.summaries[0].Failed)
	assert.NoError(t, notifier.summaries[0].Err)
}

func TestRunClassificationFailureAbortsRun(t *testing.T) {
	cfg := testConfig(t)
	runner := &scriptedRunner{classifyErr: &llm.ExitError{Code: 1, Stderr: "boom"}}
	store, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	defer store.Close()
	notifier := &recordingNotifier{}

	p := newTestPipeline(cfg, Deps{Runner: runner, Store: store, Notifier: notifier})
	_, err = p.Run(context.Background(), Source{Dir: newSourceDir(t)})
	require.Error(t, err)
	var exitErr *llm.ExitError
	assert.True(t, errors.As(err, &exitErr))
	assert.Empty(t, runner.prompts)

	run, err := store.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, storage.RunFailed, run.Status)
	assert.Contains(t, run.Error, "classify files")
	require.Len(t, notifier.summaries, 1)
	assert.Error(t, notifier.summaries[0].Err)
}

func TestRunRequiresSource(t *testing.T) {
	p := newTestPipeline(testConfig(t), Deps{Runner: &scriptedRunner{}})

	_, err := p.Run(context.Background(), Source{})
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = p.Run(context.Background(), Source{Dir: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "directory not found")

	_, err = p.Run(context.Background(), Source{AFM: "123456789"})
	assert.ErrorContains(t, err, "sharepoint is not configured")
}

type fakeFetcher struct {
	afm  string
	dest string
}

func (f *fakeFetcher) DownloadForAFM(_ context.Context, afm, dest string) ([]sharepoint.DownloadedFile, error) {
	f.afm, f.dest = afm, dest
	path := filepath.Join(dest, "business_plan.docx")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte("docx"), 0o644); err != nil {
		return nil, err
	}
	return []sharepoint.DownloadedFile{{Name: "business_plan.docx", LocalPath: path, Size: 4}}, nil
}

type fakeTranscriber struct {
	videos []string
}

func (f *fakeTranscriber) TranscribeAndSave(_ context.Context, video, outDir string) (string, error) {
	f.videos = append(f.videos, filepath.Base(video))
	if strings.HasPrefix(filepath.Base(video), "broken") {
		return "", errors.New("whisper failed")
	}
	path := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))+"_transcript.txt")
	return path, os.WriteFile(path, []byte("# Video Transcript"), 0o644)
}

func TestRunAFMDownloadsIntoWorkingDir(t *testing.T) {
	cfg := testConfig(t)
	fetcher := &fakeFetcher{}
	runner := &scriptedRunner{classifyText: classification}
	var exported []string
	cfg.PDFExport = true

	p := newTestPipeline(cfg, Deps{
		Runner:  runner,
		Fetcher: fetcher,
		ExportPDF: func(_ context.Context, htmlPath, pdfPath string) error {
			exported = append(exported, filepath.Base(htmlPath))
			return os.WriteFile(pdfPath, []byte("%PDF"), 0o644)
		},
	})
	res, err := p.Run(context.Background(), Source{AFM: "987654321"})
	require.NoError(t, err)

	assert.Equal(t, "987654321", fetcher.afm)
	assert.Equal(t, fetcher.dest, res.OutputDir)
	assert.Equal(t, "987654321_20250314_093000", filepath.Base(res.OutputDir))
	assert.Len(t, res.Sections, 11)
	assert.Equal(t, []string{"mentoring_report.html"}, exported)
	assert.FileExists(t, res.PDFPath)

	raw, err := os.ReadFile(filepath.Join(res.OutputDir, MappingFile))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"business_plan.docx"`)
}

func TestRunTranscribesRecordings(t *testing.T) {
	cfg := testConfig(t)
	src := newSourceDir(t)
	writeFile(t, filepath.Join(src, "interview.mp4"), "video")
	writeFile(t, filepath.Join(src, "broken.mov"), "video")
	transcriber := &fakeTranscriber{}
	runner := &scriptedRunner{classifyText: `{"classifications": [{"filename": "interview_transcript.txt", "sections": [9], "reasoning": "owner interview"}]}`}

	p := newTestPipeline(cfg, Deps{Runner: runner, Transcriber: transcriber})
	res, err := p.Run(context.Background(), Source{Dir: src})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"interview.mp4", "broken.mov"}, transcriber.videos)
	assert.Equal(t, 3, res.Files)
	assert.Contains(t, runner.classifyCall, "interview_transcript.txt")
	assert.FileExists(t, filepath.Join(res.OutputDir, TranscriptsSubdir, "interview_transcript.txt"))
	assert.Contains(t, runner.prompts[9], "interview_transcript.txt")
}

func TestRunRenderFailureIsPartial(t *testing.T) {
	cfg := testConfig(t)
	cfg.TemplatePath = filepath.Join(t.TempDir(), "missing.html")
	notifier := &recordingNotifier{}

	p := newTestPipeline(cfg, Deps{Runner: &scriptedRunner{classifyText: classification}, Notifier: notifier})
	res, err := p.Run(context.Background(), Source{Dir: newSourceDir(t)})
	require.NoError(t, err)

	assert.True(t, res.Partial)
	assert.Empty(t, res.HTMLPath)
	assert.FileExists(t, res.JSONPath)
	require.Len(t, notifier.summaries, 1)
	assert.True(t, notifier.summaries[0].Partial)
}

func TestRunCancelledSkipsRemainingSections(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &cancellingRunner{scriptedRunner: scriptedRunner{classifyText: classification}, cancelAt: 3, cancel: cancel}

	p := newTestPipeline(testConfig(t), Deps{Runner: runner})
	res, err := p.Run(ctx, Source{Dir: newSourceDir(t)})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, res.Sections)
	assert.Equal(t, []int{4, 5, 6, 7, 8, 9, 10, 11}, res.Failed)
}

type cancellingRunner struct {
	scriptedRunner
	cancelAt int
	cancel   context.CancelFunc
}

func (r *cancellingRunner) Run(ctx context.Context, req llm.Request) (llm.Response, error) {
	resp, err := r.scriptedRunner.Run(ctx, req)
	if len(r.prompts) == r.cancelAt {
		r.cancel()
	}
	return resp, err
}
