package llm

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCLINotFound = errors.New("claude CLI not found; ensure the 'claude' command is in PATH")
	ErrNoJSON      = errors.New("no JSON object found in response")
)

// ExitError is returned when the CLI exits with a non-zero status.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("claude CLI exited with code %d: %s", e.Code, truncateString(e.Stderr, 500))
}

// TimeoutError is returned when a run exceeds its Request.Timeout.
type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("model call timed out after %v", e.After)
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
