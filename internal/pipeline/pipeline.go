// Package pipeline runs the end-to-end report generation: fetch or locate the
// business folder, classify its documents, generate the eleven sections and
// render the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mentorreport/internal/classify"
	"mentorreport/internal/config"
	"mentorreport/internal/discovery"
	"mentorreport/internal/domain"
	"mentorreport/internal/integrations/llm"
	"mentorreport/internal/integrations/sharepoint"
	slackbot "mentorreport/internal/integrations/slack"
	"mentorreport/internal/metrics"
	"mentorreport/internal/preprocess"
	"mentorreport/internal/report"
	"mentorreport/internal/storage"
)

const (
	CompleteJSONFile   = "mentoring_report_complete.json"
	MappingFile        = "section_file_mapping.json"
	DetailsFile        = "llm_classification_details.json"
	MetadataFile       = "company_metadata.json"
	PreprocessedFile   = "preprocessed_data.json"
	TranscriptsSubdir  = "transcripts"
	videoChunksSubpath = "temp/video_chunks"
)

var ErrNoSource = errors.New("either a directory or an AFM is required")

// Fetcher downloads the mentoring folder of a company.
type Fetcher interface {
	DownloadForAFM(ctx context.Context, afm, dest string) ([]sharepoint.DownloadedFile, error)
}

// Transcriber turns a recording into a transcript file inside outDir.
type Transcriber interface {
	TranscribeAndSave(ctx context.Context, video, outDir string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, s slackbot.RunSummary) error
}

// PDFExporter prints the rendered HTML to PDF.
type PDFExporter func(ctx context.Context, htmlPath, pdfPath string) error

// Deps are the collaborators of a run. Only Runner is required.
type Deps struct {
	Runner      llm.Runner
	Fetcher     Fetcher
	Transcriber Transcriber
	Store       *storage.Store
	Metrics     *metrics.Metrics
	Notifier    Notifier
	ExportPDF   PDFExporter
	// EnsurePlugin installs the document skills before the first call.
	EnsurePlugin func(ctx context.Context)
	// Out receives the classification table; nil discards it.
	Out    io.Writer
	Logger *zap.Logger
}

// Source selects the input of a run. AFM wins over Dir.
type Source struct {
	Dir string
	AFM string
}

func (s Source) String() string {
	if s.AFM != "" {
		return "sharepoint:" + s.AFM
	}
	return s.Dir
}

type Result struct {
	RunID        string
	OutputDir    string
	Company      domain.CompanyInfo
	Sections     []int
	Failed       []int
	Files        int
	Duration     time.Duration
	JSONPath     string
	HTMLPath     string
	MarkdownPath string
	PDFPath      string
	// Partial is set when sections were generated but the HTML could not be
	// rendered.
	Partial bool
}

type Pipeline struct {
	cfg    config.Config
	deps   Deps
	out    io.Writer
	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

func New(cfg config.Config, deps Deps) *Pipeline {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	return &Pipeline{cfg: cfg, deps: deps, out: out, logger: logger, now: time.Now, newID: uuid.NewString}
}

// Run executes every step in order. Only a missing source, a failed
// classification or an unwritable working directory abort the run; section,
// transcription and export failures are logged and skipped.
func (p *Pipeline) Run(ctx context.Context, src Source) (res Result, err error) {
	if p.deps.Runner == nil {
		return res, errors.New("pipeline: no model runner configured")
	}
	start := p.now()
	res.RunID = p.newID()
	stamp := start.Format("20060102_150405")
	log := p.logger.With(zap.String("run_id", res.RunID))
	log.Info("pipeline start", zap.String("source", src.String()))

	p.ledgerStart(res.RunID, src, start)
	defer func() {
		res.Duration = p.now().Sub(start)
		p.finish(ctx, src, &res, err)
	}()

	// 1. Source
	sourceDir, outputDir, err := p.resolveSource(ctx, src, stamp)
	if err != nil {
		return res, err
	}
	res.OutputDir = outputDir

	// 2. Plugin
	if p.deps.EnsurePlugin != nil && p.deps.Runner.WritesFiles() {
		p.deps.EnsurePlugin(ctx)
	}

	// 3. Discovery
	log.Info("pipeline discover", zap.String("dir", sourceDir))
	files, err := discovery.Discover(sourceDir)
	if err != nil {
		return res, fmt.Errorf("discover files: %w", err)
	}
	log.Info("pipeline discovered", zap.Int("files", len(files)))

	// 4. Transcription
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return res, fmt.Errorf("create working directory: %w", err)
	}
	files = append(files, p.transcribe(ctx, sourceDir, outputDir)...)
	res.Files = len(files)
	if p.deps.Metrics != nil {
		p.deps.Metrics.FilesDiscovered.Set(float64(len(files)))
	}

	// 5. Preprocessing
	pre, err := preprocess.PreprocessDirectory(sourceDir, "")
	if err != nil {
		log.Warn("pipeline preprocess failed", zap.Error(err))
	} else {
		log.Info("pipeline preprocessed", zap.String("status", preprocess.FormatStatusSummary(pre.StatusCounts())))
	}

	// 6. Classification
	classifyStart := p.now()
	classifier := classify.New(p.deps.Runner, classify.Options{
		Model:     p.cfg.ClassifyModel,
		Timeout:   p.cfg.ClassifyTimeout(),
		KeepEmpty: p.cfg.ClassifyKeepEmpty,
	}, log)
	mapping, details, err := classifier.Classify(ctx, files, pre.ByPath())
	p.observe("classify", p.now().Sub(classifyStart))
	if err != nil {
		return res, fmt.Errorf("classify files: %w", err)
	}
	p.ledgerClassifications(res.RunID, details)
	fmt.Fprintln(p.out, ClassificationTable(mapping))

	// 7. AFM for naming
	afm := ExtractAFM(sourceDir, src.AFM)
	log.Info("pipeline afm", zap.String("afm", afm))

	// 8. Working directory
	if sourceDir != outputDir {
		copied, err := CopyFiles(files, sourceDir, outputDir)
		if err != nil {
			return res, fmt.Errorf("prepare working directory: %w", err)
		}
		log.Info("pipeline copied files", zap.Int("files", copied), zap.String("dir", outputDir))
		mapping = mapping.Remap(func(path string) string { return Rebase(path, sourceDir, outputDir) })
	}
	// Section 1 fills in the rest from the documents.
	company := domain.CompanyInfo{}
	if afm != unknownAFM {
		company.AFM = afm
	}
	if err := WriteArtifacts(outputDir, mapping, details, company, pre); err != nil {
		return res, err
	}

	// 9. Sections
	sections := p.generateSections(ctx, log, outputDir, mapping, &company, &res)
	res.Company = company

	// 10. Compile
	rep := report.Compile(sections, company)
	res.JSONPath = filepath.Join(outputDir, CompleteJSONFile)
	if err := report.WriteJSON(res.JSONPath, rep); err != nil {
		return res, fmt.Errorf("write compiled report: %w", err)
	}
	log.Info("pipeline compiled", zap.Int("sections", len(rep.Sections)), zap.String("path", res.JSONPath))

	// 11. Render
	p.render(ctx, log, rep, &res)
	return res, nil
}

// resolveSource returns the directory to read documents from and the run's
// working directory. SharePoint downloads land in the working directory
// itself.
func (p *Pipeline) resolveSource(ctx context.Context, src Source, stamp string) (string, string, error) {
	if src.AFM != "" {
		if p.deps.Fetcher == nil {
			return "", "", errors.New("sharepoint is not configured")
		}
		dest, err := filepath.Abs(filepath.Join(p.cfg.WorkingDir, src.AFM+"_"+stamp))
		if err != nil {
			return "", "", err
		}
		p.logger.Info("pipeline sharepoint download", zap.String("afm", src.AFM), zap.String("dest", dest))
		downloaded, err := p.deps.Fetcher.DownloadForAFM(ctx, src.AFM, dest)
		if err != nil {
			return "", "", fmt.Errorf("sharepoint download: %w", err)
		}
		p.logger.Info("pipeline sharepoint downloaded", zap.Int("files", len(downloaded)))
		return dest, dest, nil
	}

	if strings.TrimSpace(src.Dir) == "" {
		return "", "", ErrNoSource
	}
	dir, err := filepath.Abs(src.Dir)
	if err != nil {
		return "", "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", "", fmt.Errorf("directory not found: %s", dir)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("not a directory: %s", dir)
	}
	out, err := filepath.Abs(filepath.Join(p.cfg.WorkingDir, ExtractAFM(dir, "")+"_"+stamp))
	if err != nil {
		return "", "", err
	}
	return dir, out, nil
}

// transcribe writes a transcript for every recording under sourceDir into
// the run's transcripts folder and returns the transcript paths.
func (p *Pipeline) transcribe(ctx context.Context, sourceDir, outputDir string) []string {
	if p.deps.Transcriber == nil {
		return nil
	}
	videos, err := discovery.DiscoverMedia(sourceDir)
	if err != nil {
		p.logger.Warn("pipeline media discovery failed", zap.Error(err))
		return nil
	}
	if len(videos) == 0 {
		return nil
	}
	dir := filepath.Join(outputDir, TranscriptsSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		p.logger.Warn("pipeline transcripts dir failed", zap.Error(err))
		return nil
	}
	var out []string
	for _, v := range videos {
		start := p.now()
		path, err := p.deps.Transcriber.TranscribeAndSave(ctx, v, dir)
		p.observe("transcribe", p.now().Sub(start))
		if err != nil {
			p.logger.Warn("pipeline transcription skipped", zap.String("file", filepath.Base(v)), zap.Error(err))
			continue
		}
		out = append(out, path)
	}
	p.logger.Info("pipeline transcribed", zap.Int("videos", len(videos)), zap.Int("transcripts", len(out)))
	return out
}

// generateSections runs section 1 first so its metadata can name the
// company for sections 2..11.
func (p *Pipeline) generateSections(ctx context.Context, log *zap.Logger, outputDir string, mapping domain.SectionMapping, company *domain.CompanyInfo, res *Result) []*domain.Section {
	gen := report.NewGenerator(p.deps.Runner, outputDir, report.GeneratorOptions{
		Model:   p.cfg.SectionModel,
		Timeout: p.cfg.SectionTimeout(),
	}, log)

	var sections []*domain.Section
	for n := 1; n <= domain.SectionCount; n++ {
		if ctx.Err() != nil {
			log.Warn("pipeline cancelled", zap.Int("section", n))
			res.Failed = append(res.Failed, remaining(n)...)
			break
		}
		start := p.now()
		s, err := gen.GenerateSection(ctx, n, *company, mapping[n])
		elapsed := p.now().Sub(start)
		p.observe("section", elapsed)
		p.recordSection(res.RunID, n, elapsed, err)
		if err != nil {
			log.Warn("pipeline section skipped", zap.Int("section", n), zap.Error(err))
			res.Failed = append(res.Failed, n)
			continue
		}
		res.Sections = append(res.Sections, n)
		sections = append(sections, s)

		if n == 1 {
			if s.Metadata != nil {
				known := company.AFM
				*company = *s.Metadata
				if company.AFM == "" {
					company.AFM = known
				}
				log.Info("pipeline company metadata",
					zap.String("company", company.CompanyName),
					zap.String("afm", company.AFM),
					zap.String("kad", company.KAD),
					zap.String("website", company.Website))
				if err := report.WriteJSON(filepath.Join(outputDir, MetadataFile), company); err != nil {
					log.Warn("pipeline metadata save failed", zap.Error(err))
				}
			} else {
				log.Warn("pipeline section 1 returned no metadata")
			}
		}
	}
	return sections
}

func (p *Pipeline) render(ctx context.Context, log *zap.Logger, rep domain.Report, res *Result) {
	r, err := report.NewRenderer(p.cfg.TemplatePath, p.cfg.LogoPath)
	if err == nil {
		htmlPath := filepath.Join(res.OutputDir, report.HTMLFile)
		if err = r.RenderFile(res.JSONPath, htmlPath); err == nil {
			res.HTMLPath = htmlPath
		}
	}
	if err != nil {
		log.Error("pipeline html render failed", zap.Error(err))
		res.Partial = true
		return
	}
	log.Info("pipeline html rendered", zap.String("path", res.HTMLPath))

	if md, err := report.RenderMarkdown(rep); err != nil {
		log.Warn("pipeline markdown export failed", zap.Error(err))
	} else {
		mdPath := filepath.Join(res.OutputDir, report.MarkdownFile)
		if err := os.WriteFile(mdPath, []byte(md), 0o644); err != nil {
			log.Warn("pipeline markdown write failed", zap.Error(err))
		} else {
			res.MarkdownPath = mdPath
		}
	}

	if p.cfg.PDFExport && p.deps.ExportPDF != nil {
		pdfPath := filepath.Join(res.OutputDir, report.PDFFile)
		start := p.now()
		if err := p.deps.ExportPDF(ctx, res.HTMLPath, pdfPath); err != nil {
			log.Warn("pipeline pdf export failed", zap.Error(err))
		} else {
			res.PDFPath = pdfPath
			log.Info("pipeline pdf exported", zap.String("path", pdfPath), zap.Duration("elapsed", p.now().Sub(start)))
		}
	}
}

func (p *Pipeline) observe(step string, d time.Duration) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.ObserveLLM(step, d)
	}
}

// finish records the outcome in the ledger, metrics and Slack. None of these
// can fail the run.
func (p *Pipeline) finish(ctx context.Context, src Source, res *Result, runErr error) {
	status := storage.RunCompleted
	switch {
	case runErr != nil:
		status = storage.RunFailed
	case res.Partial || len(res.Failed) > 0:
		status = storage.RunPartial
	}
	p.logger.Info("pipeline finish",
		zap.String("run_id", res.RunID),
		zap.String("status", status),
		zap.Int("sections", len(res.Sections)),
		zap.Ints("failed", res.Failed),
		zap.Duration("elapsed", res.Duration))

	if p.deps.Store != nil {
		afm := res.Company.AFM
		if afm == "" {
			afm = src.AFM
		}
		run := storage.Run{
			ID:             res.RunID,
			AFM:            afm,
			CompanyName:    res.Company.CompanyName,
			OutputDir:      res.OutputDir,
			HTMLPath:       res.HTMLPath,
			Status:         status,
			SectionsOK:     len(res.Sections),
			SectionsFailed: len(res.Failed),
		}
		run.FinishedAt.Time, run.FinishedAt.Valid = p.now(), true
		if runErr != nil {
			run.Error = runErr.Error()
		}
		if err := p.deps.Store.FinishRun(run); err != nil {
			p.logger.Warn("ledger finish failed", zap.Error(err))
		}
	}

	if m := p.deps.Metrics; m != nil {
		m.RunFinished(res.Duration, runErr == nil && res.HTMLPath != "")
		if err := m.WriteTextfile(p.cfg.MetricsTextfile); err != nil {
			p.logger.Warn("metrics textfile write failed", zap.Error(err))
		}
	}

	if p.deps.Notifier != nil {
		err := p.deps.Notifier.Notify(ctx, slackbot.RunSummary{
			CompanyName: res.Company.CompanyName,
			AFM:         firstNonEmpty(res.Company.AFM, src.AFM),
			Generated:   res.Sections,
			Failed:      res.Failed,
			OutputDir:   res.OutputDir,
			HTMLPath:    res.HTMLPath,
			Duration:    res.Duration,
			Partial:     res.Partial,
			Err:         runErr,
		})
		if err != nil {
			p.logger.Warn("slack notify failed", zap.Error(err))
		}
	}
}

func (p *Pipeline) ledgerStart(id string, src Source, start time.Time) {
	if p.deps.Store == nil {
		return
	}
	if err := p.deps.Store.StartRun(storage.Run{ID: id, AFM: src.AFM, Source: src.String(), StartedAt: start}); err != nil {
		p.logger.Warn("ledger start failed", zap.Error(err))
	}
}

func (p *Pipeline) recordSection(id string, n int, elapsed time.Duration, err error) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.SectionDone(err == nil)
	}
	if p.deps.Store == nil {
		return
	}
	res := storage.SectionResult{RunID: id, Section: n, Status: storage.SectionOK, DurationMS: elapsed.Milliseconds()}
	if err != nil {
		res.Status = storage.SectionFailed
		res.Error = err.Error()
	}
	if err := p.deps.Store.RecordSection(res); err != nil {
		p.logger.Warn("ledger section failed", zap.Int("section", n), zap.Error(err))
	}
}

func (p *Pipeline) ledgerClassifications(id string, details domain.ClassificationDetails) {
	if p.deps.Store == nil {
		return
	}
	items := make([]storage.FileClassification, 0, len(details.Classifications))
	for _, c := range details.Classifications {
		items = append(items, storage.FileClassification{
			RunID:     id,
			Filename:  c.Filename,
			Sections:  storage.SectionList(c.Sections),
			Reasoning: c.Reasoning,
		})
	}
	if err := p.deps.Store.RecordClassifications(items); err != nil {
		p.logger.Warn("ledger classifications failed", zap.Error(err))
	}
}

// VideoChunkDir is where the transcriber splits long recordings.
func VideoChunkDir(workingDir string) string {
	return filepath.Join(workingDir, filepath.FromSlash(videoChunksSubpath))
}

func remaining(from int) []int {
	var out []int
	for n := from; n <= domain.SectionCount; n++ {
		out = append(out, n)
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
