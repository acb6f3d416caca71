// Package classify assigns business documents to report sections with a
// single model call.
package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"mentorreport/internal/domain"
	"mentorreport/internal/integrations/llm"
	"mentorreport/internal/preprocess"
)

type Options struct {
	Model   string
	Timeout time.Duration
	// KeepEmpty disables the local pass that fills sections the model left
	// without files.
	KeepEmpty bool
}

type Classifier struct {
	runner llm.Runner
	opts   Options
	logger *zap.Logger
}

func New(runner llm.Runner, opts Options, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{runner: runner, opts: opts, logger: logger}
}

// Classify maps files onto sections 1..11. data holds preprocessed payloads
// keyed by absolute path and may be nil. With no files it returns eleven
// empty buckets without calling the model.
func (c *Classifier) Classify(ctx context.Context, files []string, data map[string]*preprocess.StructuredData) (domain.SectionMapping, domain.ClassificationDetails, error) {
	mapping := domain.NewSectionMapping()
	details := domain.ClassificationDetails{Classifications: []domain.FileClassification{}}
	if len(files) == 0 {
		return mapping, details, nil
	}

	summaries := make([]FileSummary, 0, len(files))
	for _, f := range files {
		summaries = append(summaries, PrepareFileSummary(f, data[f]))
	}
	prompt, err := BuildPrompt(summaries)
	if err != nil {
		return mapping, details, err
	}

	c.logger.Info("llm classify",
		zap.String("model", c.opts.Model),
		zap.Int("files", len(files)),
		zap.Duration("timeout", c.opts.Timeout))
	resp, err := c.runner.Run(ctx, llm.Request{
		Prompt:       prompt,
		Model:        c.opts.Model,
		AllowedTools: llm.ClassifyTools,
		Timeout:      c.opts.Timeout,
	})
	if err != nil {
		return mapping, details, fmt.Errorf("classification call: %w", err)
	}

	details, err = ParseResponse(resp.Text)
	if err != nil {
		return mapping, details, err
	}
	mapping = ApplyClassifications(files, details)

	if !c.opts.KeepEmpty {
		if filled := FillEmptySections(mapping, files); len(filled) > 0 {
			c.logger.Warn("classify filled empty sections", zap.Ints("sections", filled))
		}
	}
	return mapping, details, nil
}

// BuildPrompt renders the classification instruction with the section
// descriptions and file summaries embedded as JSON.
func BuildPrompt(summaries []FileSummary) (string, error) {
	descriptions, err := orderedDescriptions()
	if err != nil {
		return "", err
	}
	files, err := marshalIndent(summaries)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("You are analyzing business documents for a Greek SME mentoring report that has 11 sections.\n\n")
	b.WriteString("**Your task**: Classify each file by determining which section(s) it's most relevant to (1-11). A file can be relevant to multiple sections.\n\n")
	b.WriteString("**Section Descriptions:**\n")
	b.WriteString(descriptions)
	b.WriteString("\n\n**Files to Classify:**\n")
	b.WriteString(files)
	b.WriteString("\n\n")
	b.WriteString(classificationStrategy)
	return b.String(), nil
}

const classificationStrategy = `**CRITICAL: Analyze the ACTUAL files available and ensure NO section is left empty.**

**Classification Strategy:**
1. **First**, review what files are actually available in this dataset
2. **Then**, intelligently distribute files to ensure EVERY section gets relevant content
3. **Use these guidelines** (but adapt based on what files exist):
   - Business plans → typically sections 1, 3, 4, 5, 7, 8, 10
   - Financial documents (Excel, E1, E3, ENFIA, Teiresias) → sections 2, 6, 11
   - Psychometric assessments/leadership tests → Section 9
   - Tax/legal/insurance documents → Sections 2, 11
   - OPSKE/funding proposals → Sections 4, 5, 8
   - Video transcripts (*_transcript.txt) → sections matching what is discussed
4. **If a section would have zero files**, assign the most relevant available file(s) to it
   - Example: If no ESG file exists, assign business plan to Section 7
   - Example: If no tech docs exist, assign business plan to Section 8
5. **Be INCLUSIVE** - files can map to 3-7 sections if they contain relevant information
6. **Prioritize content coverage** - better to over-assign than leave sections empty

**Output Format**: Return ONLY valid JSON (no markdown, no explanation):
{
  "classifications": [
    {
      "filename": "exact filename",
      "sections": [section_numbers],
      "reasoning": "brief explanation"
    }
  ]
}`

// ParseResponse decodes the classifier reply, tolerating markdown fences and
// surrounding prose.
func ParseResponse(text string) (domain.ClassificationDetails, error) {
	var details domain.ClassificationDetails
	body := StripResponse(text)
	if err := json.Unmarshal([]byte(body), &details); err != nil {
		return details, fmt.Errorf("parsing classification response: %w (response: %s)", err, truncate(text, 500))
	}
	if details.Classifications == nil {
		details.Classifications = []domain.FileClassification{}
	}
	return details, nil
}

// StripResponse removes code fences; when the remainder is not a bare object
// it falls back to the widest {...} span.
func StripResponse(text string) string {
	body := llm.StripFences(text)
	if strings.HasPrefix(body, "{") {
		return body
	}
	if obj := llm.ExtractJSON(text); obj != "" {
		return obj
	}
	return body
}

// ApplyClassifications turns the model answer into a section mapping.
// Filenames are matched exactly against the basenames of files; section
// numbers outside 1..11 are dropped.
func ApplyClassifications(files []string, details domain.ClassificationDetails) domain.SectionMapping {
	byName := make(map[string][]string, len(files))
	for _, f := range files {
		name := filepath.Base(f)
		byName[name] = append(byName[name], f)
	}

	mapping := domain.NewSectionMapping()
	for _, c := range details.Classifications {
		paths, ok := byName[c.Filename]
		if !ok {
			continue
		}
		for _, n := range c.Sections {
			if !domain.ValidSection(n) {
				continue
			}
			for _, p := range paths {
				if !containsPath(mapping[n], p) {
					mapping[n] = append(mapping[n], p)
				}
			}
		}
	}
	return mapping
}

// FillEmptySections assigns every file to each section that ended up empty
// and returns the sections it filled.
func FillEmptySections(mapping domain.SectionMapping, files []string) []int {
	if len(files) == 0 {
		return nil
	}
	empty := mapping.EmptySections()
	for _, n := range empty {
		mapping[n] = append([]string(nil), files...)
	}
	return empty
}

func orderedDescriptions() (string, error) {
	var b strings.Builder
	b.WriteString("{\n")
	for n := 1; n <= domain.SectionCount; n++ {
		v, err := marshalIndent(SectionDescriptions[n])
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  \"%d\": %s", n, v)
		if n < domain.SectionCount {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}")
	return b.String(), nil
}

func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func containsPath(list []string, p string) bool {
	for _, v := range list {
		if v == p {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
