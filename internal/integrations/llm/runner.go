// Package llm runs prompts through the claude CLI or the Anthropic API and
// extracts JSON from the answers.
package llm

import (
	"context"
	"time"
)

// Request describes one prompt run. AllowedTools, PermissionMode and WorkDir
// only apply to the CLI backend.
type Request struct {
	Prompt         string
	Model          string
	AllowedTools   []string
	PermissionMode string
	WorkDir        string
	// Timeout of zero means no deadline beyond ctx.
	Timeout time.Duration
}

type Response struct {
	Text     string
	Duration time.Duration
	Usage    Usage
}

type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

type Runner interface {
	Run(ctx context.Context, req Request) (Response, error)
	// WritesFiles reports whether the backend can save files in WorkDir.
	WritesFiles() bool
}

var (
	ClassifyTools = []string{"Skill(pdf)", "Skill(xlsx)", "Skill(docx)", "Read"}
	SectionTools  = []string{"Skill(pdf)", "Skill(xlsx)", "Skill(docx)", "Read", "Grep", "Glob", "WebSearch"}
)

const PermissionAcceptEdits = "acceptEdits"
