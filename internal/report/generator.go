// Package report generates, compiles and renders mentoring report sections.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"mentorreport/internal/domain"
	"mentorreport/internal/integrations/llm"
	"mentorreport/internal/prompts"
)

type GeneratorOptions struct {
	Model   string
	Timeout time.Duration
}

// Generator produces one section at a time inside an output directory.
// Prompts, generated JSON and debug dumps are written next to each other so a
// failed run can be inspected afterwards.
type Generator struct {
	runner    llm.Runner
	opts      GeneratorOptions
	outputDir string
	logger    *zap.Logger
	now       func() time.Time
}

func NewGenerator(runner llm.Runner, outputDir string, opts GeneratorOptions, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = "sonnet"
	}
	return &Generator{runner: runner, opts: opts, outputDir: outputDir, logger: logger, now: time.Now}
}

func PromptFile(n int) string      { return fmt.Sprintf("section_%d_prompt.txt", n) }
func DebugFile(n int) string       { return fmt.Sprintf("section_%d_output_debug.txt", n) }
func SectionJSONFile(n int) string { return prompts.OutputFile(n) }

// GenerateSection renders the prompt for section n, runs it and returns the
// parsed section. A file saved by the model wins over stdout; otherwise the
// JSON is pulled out of stdout and saved under the same name.
func (g *Generator) GenerateSection(ctx context.Context, n int, company domain.CompanyInfo, files []string) (*domain.Section, error) {
	start := g.now()
	g.logger.Info("section generate start", zap.Int("section", n), zap.Int("files", len(files)))

	prompt, err := prompts.SectionPrompt(n, company, files, start)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(g.outputDir, PromptFile(n)), []byte(prompt), 0o644); err != nil {
		return nil, fmt.Errorf("write section %d prompt: %w", n, err)
	}

	resp, err := g.runner.Run(ctx, llm.Request{
		Prompt:         prompt,
		Model:          g.opts.Model,
		AllowedTools:   llm.SectionTools,
		PermissionMode: llm.PermissionAcceptEdits,
		WorkDir:        g.outputDir,
		Timeout:        g.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("section %d: %w", n, err)
	}

	section, err := g.collect(n, resp.Text)
	if err != nil {
		return nil, err
	}
	g.logger.Info("section generate done",
		zap.Int("section", n),
		zap.Duration("elapsed", g.now().Sub(start)),
		zap.Int64("tokens", resp.Usage.TotalTokens()))
	return section, nil
}

func (g *Generator) collect(n int, stdout string) (*domain.Section, error) {
	sectionPath := filepath.Join(g.outputDir, SectionJSONFile(n))
	if g.runner.WritesFiles() {
		data, err := os.ReadFile(sectionPath)
		if err == nil {
			var s domain.Section
			if err := json.Unmarshal(data, &s); err != nil {
				return nil, fmt.Errorf("section %d: parse %s: %w", n, SectionJSONFile(n), err)
			}
			return &s, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("section %d: read %s: %w", n, SectionJSONFile(n), err)
		}
	}

	raw, err := llm.ExtractSectionJSON(stdout)
	if err != nil {
		g.dumpDebug(n, stdout)
		return nil, fmt.Errorf("section %d: %w", n, err)
	}
	var s domain.Section
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		g.dumpDebug(n, raw)
		return nil, fmt.Errorf("section %d: parse output: %w", n, err)
	}
	if err := WriteJSON(sectionPath, s); err != nil {
		return nil, fmt.Errorf("section %d: save: %w", n, err)
	}
	return &s, nil
}

func (g *Generator) dumpDebug(n int, text string) {
	path := filepath.Join(g.outputDir, DebugFile(n))
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		g.logger.Warn("section debug dump failed", zap.Int("section", n), zap.Error(err))
		return
	}
	g.logger.Info("section debug output saved", zap.Int("section", n), zap.String("path", path))
}
