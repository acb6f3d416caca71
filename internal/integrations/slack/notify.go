// Package slackbot posts run notifications to a Slack channel.
package slackbot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"mentorreport/internal/httpx"
)

// RunSummary is what a completion notice reports.
type RunSummary struct {
	CompanyName string
	AFM         string
	Generated   []int
	Failed      []int
	OutputDir   string
	HTMLPath    string
	Duration    time.Duration
	Partial     bool
	Err         error
}

type Notifier struct {
	api       *slack.Client
	channelID string
	logger    *zap.Logger
}

func NewNotifier(token, channelID string, logger *zap.Logger, opts ...slack.Option) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]slack.Option{slack.OptionHTTPClient(httpx.ExternalHTTPClient())}, opts...)
	return &Notifier{api: slack.New(token, opts...), channelID: channelID, logger: logger}
}

// Notify posts the summary and, when the HTML report exists, uploads it to
// the same channel. Upload failures are logged; the message error is returned.
func (n *Notifier) Notify(ctx context.Context, s RunSummary) error {
	_, _, err := n.api.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(summaryText(s), false),
		slack.MsgOptionBlocks(summaryBlocks(s)...))
	if err != nil {
		return fmt.Errorf("post slack summary: %w", err)
	}
	n.logger.Info("slack summary posted", zap.String("channel", n.channelID))

	if s.HTMLPath == "" || s.Err != nil {
		return nil
	}
	fi, err := os.Stat(s.HTMLPath)
	if err != nil || fi.Size() <= 0 {
		n.logger.Warn("slack upload skipped", zap.String("path", s.HTMLPath), zap.Error(err))
		return nil
	}
	_, err = n.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		File:     s.HTMLPath,
		FileSize: int(fi.Size()),
		Filename: filepath.Base(s.HTMLPath),
		Channel:  n.channelID,
		Title:    "Mentoring report " + displayName(s),
	})
	if err != nil {
		n.logger.Error("slack upload failed", zap.Error(err))
	}
	return nil
}

func displayName(s RunSummary) string {
	name := s.CompanyName
	if name == "" {
		name = "Greek SME"
	}
	if s.AFM != "" {
		name += " (" + s.AFM + ")"
	}
	return name
}

func summaryText(s RunSummary) string {
	switch {
	case s.Err != nil:
		return fmt.Sprintf("Mentoring report failed for %s: %v", displayName(s), s.Err)
	case s.Partial:
		return fmt.Sprintf("Mentoring report partially generated for %s", displayName(s))
	default:
		return fmt.Sprintf("Mentoring report generated for %s", displayName(s))
	}
}

func summaryBlocks(s RunSummary) []slack.Block {
	lines := []string{
		fmt.Sprintf("*Sections generated:* %d/11", len(s.Generated)),
	}
	if len(s.Failed) > 0 {
		lines = append(lines, fmt.Sprintf("*Failed sections:* %s", joinInts(s.Failed)))
	}
	if s.Duration > 0 {
		lines = append(lines, fmt.Sprintf("*Elapsed:* %s", s.Duration.Round(time.Second)))
	}
	if s.OutputDir != "" {
		lines = append(lines, fmt.Sprintf("*Output:* `%s`", s.OutputDir))
	}
	if s.Err != nil {
		lines = append(lines, fmt.Sprintf("*Error:* %v", s.Err))
	}
	return []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, summaryText(s), false, false)),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false), nil, nil),
	}
}

func joinInts(ns []int) string {
	parts := make([]string, len(ns))
	for i, n := range ns {
		parts[i] = fmt.Sprint(n)
	}
	return strings.Join(parts, ", ")
}
