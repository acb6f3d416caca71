package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"mentorreport/internal/discovery"
	"mentorreport/internal/httpx"
)

// ErrUnsupportedFormat is returned for files that are not audio or video.
var ErrUnsupportedFormat = errors.New("unsupported video/audio format")

type audioAPI interface {
	CreateTranscription(ctx context.Context, req openai.AudioRequest) (openai.AudioResponse, error)
}

type Options struct {
	Model        string
	MaxBytes     int64
	ChunkSeconds int
	// TempRoot receives the per-recording chunk directories.
	TempRoot string
}

type Transcriber struct {
	api    audioAPI
	tools  Tools
	opts   Options
	logger *zap.Logger
}

// NewTranscriber builds a Whisper client on the shared transport. Uploads are
// bounded by ctx rather than a client timeout.
func NewTranscriber(apiKey string, tools Tools, opts Options, logger *zap.Logger) *Transcriber {
	cfg := openai.DefaultConfig(apiKey)
	cfg.HTTPClient = httpx.DownloadClient()
	return newTranscriber(openai.NewClientWithConfig(cfg), tools, opts, logger)
}

func newTranscriber(api audioAPI, tools Tools, opts Options, logger *zap.Logger) *Transcriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model == "" {
		opts.Model = openai.Whisper1
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 25 * 1024 * 1024
	}
	if opts.ChunkSeconds <= 0 {
		opts.ChunkSeconds = 900
	}
	if opts.TempRoot == "" {
		opts.TempRoot = os.TempDir()
	}
	if tools.Logger == nil {
		tools.Logger = logger
	}
	return &Transcriber{api: api, tools: tools, opts: opts, logger: logger}
}

// Transcribe returns the transcript of a recording. Files above the upload
// limit are split into audio chunks; a chunk that fails is skipped.
func (t *Transcriber) Transcribe(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("video file not found: %w", err)
	}
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(path))
	if !discovery.IsMedia(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	t.logger.Info("media transcribe start",
		zap.String("file", name),
		zap.Float64("mb", float64(info.Size())/1024/1024))

	var transcript string
	if info.Size() <= t.opts.MaxBytes {
		transcript, err = t.transcribeFile(ctx, path)
		if err != nil {
			return "", fmt.Errorf("video transcription failed for %s: %w", name, err)
		}
	} else {
		transcript, err = t.transcribeChunked(ctx, path)
		if err != nil {
			return "", fmt.Errorf("video transcription failed for %s: %w", name, err)
		}
	}
	t.logger.Info("media transcribe done", zap.String("file", name), zap.Int("chars", len(transcript)))
	return transcript, nil
}

func (t *Transcriber) transcribeChunked(ctx context.Context, path string) (string, error) {
	if err := os.MkdirAll(t.opts.TempRoot, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.MkdirTemp(t.opts.TempRoot, "video_chunks_")
	if err != nil {
		return "", err
	}
	defer func() {
		if err := os.RemoveAll(tmp); err != nil {
			t.logger.Warn("media temp cleanup failed", zap.String("dir", tmp), zap.Error(err))
		}
	}()

	chunks, err := t.tools.ChunkAudio(ctx, path, t.opts.ChunkSeconds, tmp)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		t.logger.Info("media transcribe chunk", zap.Int("chunk", i+1), zap.Int("total", len(chunks)))
		text, err := t.transcribeFile(ctx, chunk)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			t.logger.Warn("media chunk failed", zap.Int("chunk", i+1), zap.Error(err))
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (t *Transcriber) transcribeFile(ctx context.Context, path string) (string, error) {
	resp, err := t.api.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.opts.Model,
		FilePath: path,
		Format:   openai.AudioResponseFormatText,
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// TranscriptName is the file a recording's transcript is saved under.
func TranscriptName(video string) string {
	base := filepath.Base(video)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_transcript.txt"
}

// TranscribeAndSave writes <stem>_transcript.txt into outDir and returns its
// path.
func (t *Transcriber) TranscribeAndSave(ctx context.Context, video, outDir string) (string, error) {
	text, err := t.Transcribe(ctx, video)
	if err != nil {
		return "", err
	}
	out := filepath.Join(outDir, TranscriptName(video))
	body := fmt.Sprintf("# Video Transcript: %s\n\n%s", filepath.Base(video), text)
	if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	t.logger.Info("media transcript saved", zap.String("file", filepath.Base(out)))
	return out, nil
}
