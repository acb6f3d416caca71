// Package media transcribes recorded mentoring sessions with Whisper,
// splitting long recordings with ffmpeg first.
package media

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var execCommandContext = exec.CommandContext

// Tools locates the ffmpeg binaries.
type Tools struct {
	FFmpeg  string
	FFprobe string
	Logger  *zap.Logger
}

func (t Tools) ffprobe() string {
	if t.FFprobe == "" {
		return "ffprobe"
	}
	return t.FFprobe
}

func (t Tools) ffmpeg() string {
	if t.FFmpeg == "" {
		return "ffmpeg"
	}
	return t.FFmpeg
}

func (t Tools) logger() *zap.Logger {
	if t.Logger == nil {
		return zap.NewNop()
	}
	return t.Logger
}

// Duration returns the container duration in seconds.
func (t Tools) Duration(ctx context.Context, path string) (float64, error) {
	cmd := execCommandContext(ctx, t.ffprobe(),
		"-v", "quiet",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("get duration of %s: %w (%s)", filepath.Base(path), err, strings.TrimSpace(stderr.String()))
	}
	d, err := strconv.ParseFloat(strings.TrimSpace(stdout.String()), 64)
	if err != nil {
		return 0, fmt.Errorf("get duration of %s: %w", filepath.Base(path), err)
	}
	return d, nil
}

// ChunkAudio copies the audio track into chunk_000.m4a, chunk_001.m4a, ...
// of at most chunkSeconds each.
func (t Tools) ChunkAudio(ctx context.Context, path string, chunkSeconds int, outDir string) ([]string, error) {
	if chunkSeconds <= 0 {
		return nil, fmt.Errorf("chunk length must be positive, got %d", chunkSeconds)
	}
	duration, err := t.Duration(ctx, path)
	if err != nil {
		return nil, err
	}
	count := int(math.Ceil(duration / float64(chunkSeconds)))
	log := t.logger()
	log.Info("media chunking",
		zap.String("file", filepath.Base(path)),
		zap.Float64("seconds", duration),
		zap.Int("chunks", count))

	chunks := make([]string, 0, count)
	for i := 0; i < count; i++ {
		start := i * chunkSeconds
		chunk := filepath.Join(outDir, fmt.Sprintf("chunk_%03d.m4a", i))
		cmd := execCommandContext(ctx, t.ffmpeg(),
			"-i", path,
			"-ss", strconv.Itoa(start),
			"-t", strconv.Itoa(chunkSeconds),
			"-c:a", "copy",
			"-vn",
			"-avoid_negative_ts", "make_zero",
			chunk,
			"-y")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		log.Debug("media chunk", zap.Int("index", i+1), zap.Int("start", start))
		if err := cmd.Run(); err != nil {
			return chunks, fmt.Errorf("create chunk %d: %w (%s)", i+1, err, lastLine(stderr.String()))
		}
		chunks = append(chunks, chunk)
	}
	return chunks, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return lines[len(lines)-1]
}
