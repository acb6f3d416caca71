package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFFmpeg re-executes the test binary in place of ffprobe and ffmpeg.
// FAKE_DURATION is what ffprobe prints; ffmpeg writes its output file.
func fakeFFmpeg(t *testing.T, duration string) *[][]string {
	t.Helper()
	var calls [][]string
	orig := execCommandContext
	t.Cleanup(func() { execCommandContext = orig })
	execCommandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1", "FAKE_DURATION="+duration)
		return cmd
	}
	return &calls
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	defer os.Exit(0)
	args := os.Args
	for len(args) > 0 && args[0] != "--" {
		args = args[1:]
	}
	args = args[1:]

	switch filepath.Base(args[0]) {
	case "ffprobe":
		if os.Getenv("FAKE_DURATION") == "fail" {
			fmt.Fprint(os.Stderr, "moov atom not found")
			os.Exit(1)
		}
		fmt.Println(os.Getenv("FAKE_DURATION"))
	case "ffmpeg":
		// The output file precedes the trailing -y.
		out := args[len(args)-2]
		if err := os.WriteFile(out, []byte("audio "+out), 0o644); err != nil {
			os.Exit(2)
		}
	}
}

type fakeWhisper struct {
	fail  map[string]bool
	calls []openai.AudioRequest
}

func (f *fakeWhisper) CreateTranscription(_ context.Context, req openai.AudioRequest) (openai.AudioResponse, error) {
	f.calls = append(f.calls, req)
	name := filepath.Base(req.FilePath)
	if f.fail[name] {
		return openai.AudioResponse{}, errors.New("rate limited")
	}
	return openai.AudioResponse{Text: "text of " + name}, nil
}

func writeFile(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", size)), 0o644))
}

func TestDuration(t *testing.T) {
	calls := fakeFFmpeg(t, "1834.52\n")
	d, err := Tools{}.Duration(context.Background(), "/v/session.mp4")
	require.NoError(t, err)
	assert.InDelta(t, 1834.52, d, 0.001)
	assert.Equal(t, []string{"ffprobe", "-v", "quiet", "-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1", "/v/session.mp4"}, (*calls)[0])

	fakeFFmpeg(t, "fail")
	_, err = Tools{FFprobe: "/opt/ffprobe"}.Duration(context.Background(), "/v/broken.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestChunkAudio(t *testing.T) {
	calls := fakeFFmpeg(t, "1900")
	dir := t.TempDir()

	chunks, err := Tools{}.ChunkAudio(context.Background(), "/v/long.mov", 900, dir)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, filepath.Join(dir, "chunk_002.m4a"), chunks[2])

	last := (*calls)[len(*calls)-1]
	assert.Equal(t, []string{"ffmpeg", "-i", "/v/long.mov", "-ss", "1800", "-t", "900",
		"-c:a", "copy", "-vn", "-avoid_negative_ts", "make_zero", chunks[2], "-y"}, last)

	_, err = Tools{}.ChunkAudio(context.Background(), "/v/long.mov", 0, dir)
	assert.Error(t, err)
}

func TestTranscribeSmallFileDirect(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "Session 1.mp4")
	writeFile(t, video, 10)
	api := &fakeWhisper{}

	tr := newTranscriber(api, Tools{}, Options{MaxBytes: 100, TempRoot: dir}, nil)
	out, err := tr.TranscribeAndSave(context.Background(), video, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Session 1_transcript.txt"), out)

	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "# Video Transcript: Session 1.mp4\n\ntext of Session 1.mp4", string(body))
	require.Len(t, api.calls, 1)
	assert.Equal(t, openai.Whisper1, api.calls[0].Model)
	assert.Equal(t, openai.AudioResponseFormatText, api.calls[0].Format)
}

func TestTranscribeLargeFileChunks(t *testing.T) {
	fakeFFmpeg(t, "2000")
	dir := t.TempDir()
	video := filepath.Join(dir, "workshop.mkv")
	writeFile(t, video, 200)
	api := &fakeWhisper{fail: map[string]bool{"chunk_001.m4a": true}}
	tempRoot := filepath.Join(dir, "temp", "video_chunks")

	tr := newTranscriber(api, Tools{}, Options{MaxBytes: 100, ChunkSeconds: 900, TempRoot: tempRoot}, nil)
	text, err := tr.Transcribe(context.Background(), video)
	require.NoError(t, err)
	assert.Equal(t, "text of chunk_000.m4a\n\ntext of chunk_002.m4a", text)
	assert.Len(t, api.calls, 3)

	left, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, left, "chunk directory must be removed")
}

func TestTranscribeRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	tr := newTranscriber(&fakeWhisper{}, Tools{}, Options{}, nil)

	_, err := tr.Transcribe(context.Background(), filepath.Join(dir, "missing.mp4"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	doc := filepath.Join(dir, "notes.pdf")
	writeFile(t, doc, 1)
	_, err = tr.Transcribe(context.Background(), doc)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	failing := filepath.Join(dir, "call.mp3")
	writeFile(t, failing, 1)
	tr = newTranscriber(&fakeWhisper{fail: map[string]bool{"call.mp3": true}}, Tools{}, Options{}, nil)
	_, err = tr.Transcribe(context.Background(), failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "video transcription failed for call.mp3")
}

func TestTranscriptName(t *testing.T) {
	assert.Equal(t, "a.b_transcript.txt", TranscriptName("/x/a.b.webm"))
}
