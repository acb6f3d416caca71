package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"

	"mentorreport/internal/httpx"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// modelAliases maps the CLI's short model names onto API model IDs.
var modelAliases = map[string]string{
	"sonnet": "claude-sonnet-4-5-20250929",
	"haiku":  "claude-haiku-4-5-20251001",
	"opus":   "claude-opus-4-1-20250805",
}

const systemPrompt = "You are a senior business mentor for Greek SMEs. " +
	"Answer with the requested JSON only. You cannot read files or browse; " +
	"work from the information in the prompt."

// AnthropicRunner answers prompts through the Messages API. It has no tool
// access, so it never writes files and section JSON is read from the reply.
type AnthropicRunner struct {
	client    anthropic.Client
	maxTokens int64
	logger    *zap.Logger
}

// NewAnthropicRunner builds a runner on the shared HTTP client. opts are
// appended to the client options.
func NewAnthropicRunner(apiKey string, maxTokens int, logger *zap.Logger, opts ...option.RequestOption) *AnthropicRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(httpx.DownloadClient()),
	}
	return &AnthropicRunner{
		client:    anthropic.NewClient(append(base, opts...)...),
		maxTokens: int64(maxTokens),
		logger:    logger,
	}
}

func (a *AnthropicRunner) WritesFiles() bool { return false }

func resolveModel(model string) string {
	if model == "" {
		return defaultAnthropicModel
	}
	if id, ok := modelAliases[model]; ok {
		return id
	}
	return model
}

func (a *AnthropicRunner) Run(ctx context.Context, req Request) (Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	model := resolveModel(req.Model)

	start := time.Now()
	message, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: a.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		a.logger.Error("llm anthropic error", zap.String("model", model), zap.Error(err))
		if req.Timeout > 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Response{}, &TimeoutError{After: req.Timeout}
		}
		return Response{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			a.logger.Info("llm anthropic response",
				zap.String("model", model),
				zap.Int("size", len(block.Text)),
				zap.Int64("tokens_in", usage.InputTokens),
				zap.Int64("tokens_out", usage.OutputTokens))
			return Response{Text: block.Text, Duration: time.Since(start), Usage: usage}, nil
		}
	}
	return Response{Usage: usage}, fmt.Errorf("no text content in Anthropic response")
}
