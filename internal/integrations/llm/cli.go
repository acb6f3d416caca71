package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

var execCommandContext = exec.CommandContext

// CLIRunner shells out to the claude CLI in print mode, sending the prompt on
// stdin.
type CLIRunner struct {
	binary string
	logger *zap.Logger
}

func NewCLIRunner(binary string, logger *zap.Logger) *CLIRunner {
	if binary == "" {
		binary = "claude"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CLIRunner{binary: binary, logger: logger}
}

func (c *CLIRunner) WritesFiles() bool { return true }

func (c *CLIRunner) Args(req Request) []string {
	args := []string{"--print", "--output-format", "text"}
	if req.Model != "" {
		args = append(args, "--model", req.Model)
	}
	if len(req.AllowedTools) > 0 {
		args = append(args, "--allowedTools", strings.Join(req.AllowedTools, " "))
	}
	if req.PermissionMode != "" {
		args = append(args, "--permission-mode", req.PermissionMode)
	}
	return args
}

func (c *CLIRunner) Run(ctx context.Context, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := execCommandContext(ctx, c.binary, c.Args(req)...)
	cmd.Stdin = strings.NewReader(req.Prompt)
	if req.WorkDir != "" {
		cmd.Dir = req.WorkDir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	c.logger.Debug("llm cli run",
		zap.String("model", req.Model),
		zap.Int("prompt_chars", len(req.Prompt)),
		zap.String("dir", req.WorkDir))

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Response{}, ErrCLINotFound
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, &TimeoutError{After: req.Timeout}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return Response{}, fmt.Errorf("claude CLI execution canceled: %w", ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return Response{}, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
		}
		return Response{}, fmt.Errorf("claude CLI execution failed: %w (stderr: %s)", err, truncateString(stderr.String(), 500))
	}

	c.logger.Debug("llm cli done",
		zap.String("model", req.Model),
		zap.Int("response_chars", stdout.Len()),
		zap.Duration("elapsed", elapsed))
	return Response{Text: strings.TrimSpace(stdout.String()), Duration: elapsed}, nil
}
