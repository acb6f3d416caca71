package llm

import (
	"bytes"
	"context"
	"strings"

	"go.uber.org/zap"
)

const (
	skillsMarketplace = "anthropics/skills"
	marketplaceName   = "anthropic-agent-skills"
	documentPlugin    = "document-skills@anthropic-agent-skills"
)

// EnsurePlugin makes sure the document-skills plugin is installed so the CLI
// can read PDF, Excel and Word files. Every failure is logged and ignored.
func (c *CLIRunner) EnsurePlugin(ctx context.Context) {
	out, err := c.plugin(ctx, "marketplace", "list")
	if err != nil {
		c.logger.Warn("plugin marketplace list failed", zap.Error(err))
		return
	}
	if !strings.Contains(out, marketplaceName) && !strings.Contains(out, skillsMarketplace) {
		c.logger.Info("adding skills marketplace", zap.String("marketplace", skillsMarketplace))
		if _, err := c.plugin(ctx, "marketplace", "add", skillsMarketplace); err != nil {
			c.logger.Warn("plugin marketplace add failed", zap.Error(err))
			return
		}
	}
	if _, err := c.plugin(ctx, "install", documentPlugin); err != nil {
		c.logger.Warn("document skills install failed", zap.String("plugin", documentPlugin), zap.Error(err))
		return
	}
	c.logger.Info("document skills ready", zap.String("plugin", documentPlugin))
}

func (c *CLIRunner) plugin(ctx context.Context, args ...string) (string, error) {
	cmd := execCommandContext(ctx, c.binary, append([]string{"plugin"}, args...)...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if cmd.ProcessState == nil {
			return "", err
		}
		return "", &ExitError{Code: cmd.ProcessState.ExitCode(), Stderr: stderr.String()}
	}
	return stdout.String(), nil
}
