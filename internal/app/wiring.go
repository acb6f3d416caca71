package app

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"mentorreport/internal/config"
	"mentorreport/internal/integrations/llm"
	"mentorreport/internal/integrations/media"
	"mentorreport/internal/integrations/sharepoint"
	slackbot "mentorreport/internal/integrations/slack"
	"mentorreport/internal/metrics"
	"mentorreport/internal/pipeline"
	"mentorreport/internal/report"
	"mentorreport/internal/storage"
)

// newRunner returns the configured model backend and, for the CLI, the
// plugin setup hook.
func newRunner(e *env) (llm.Runner, func(context.Context)) {
	if e.cfg.LLMBackend == config.BackendAnthropic {
		return llm.NewAnthropicRunner(e.cfg.AnthropicAPIKey, e.cfg.AnthropicMaxTokens, e.logger), nil
	}
	cli := llm.NewCLIRunner(e.cfg.ClaudeBinary, e.logger)
	if e.cfg.SkipPluginSetup {
		return cli, nil
	}
	return cli, cli.EnsurePlugin
}

func newSharePoint(ctx context.Context, e *env) (*sharepoint.Client, error) {
	return sharepoint.New(ctx, sharepoint.Config{
		TenantID:      e.cfg.SharePointTenantID,
		ClientID:      e.cfg.SharePointClientID,
		ClientSecret:  e.cfg.SharePointClientSecret,
		SiteName:      e.cfg.SharePointSiteName,
		DriveName:     e.cfg.SharePointDriveName,
		GraphBaseURL:  e.cfg.GraphBaseURL,
		AuthorityHost: e.cfg.AuthorityHost,
	}, e.logger)
}

func newTranscriber(e *env) (*media.Transcriber, error) {
	if !e.cfg.TranscriptionConfigured() {
		return nil, errors.New("OPENAI_API_KEY is not set")
	}
	chunks := pipeline.VideoChunkDir(e.cfg.WorkingDir)
	if err := os.MkdirAll(chunks, 0o755); err != nil {
		return nil, err
	}
	return media.NewTranscriber(e.cfg.OpenAIAPIKey,
		media.Tools{FFmpeg: e.cfg.FFmpegPath, FFprobe: e.cfg.FFprobePath, Logger: e.logger},
		media.Options{
			Model:        e.cfg.WhisperModel,
			MaxBytes:     int64(e.cfg.TranscribeMaxMB) * 1024 * 1024,
			ChunkSeconds: e.cfg.TranscribeChunkSecond,
			TempRoot:     chunks,
		}, e.logger), nil
}

// newPipeline assembles the optional integrations. The ledger is best
// effort: a database that cannot be opened only disables it.
func newPipeline(ctx context.Context, e *env, src pipeline.Source) (*pipeline.Pipeline, func(), error) {
	runner, ensure := newRunner(e)
	deps := pipeline.Deps{
		Runner:       runner,
		EnsurePlugin: ensure,
		Metrics:      metrics.New(),
		Out:          e.out,
		Logger:       e.logger,
	}
	if e.cfg.PDFExport {
		deps.ExportPDF = report.ExportPDF
	}

	if src.AFM != "" {
		client, err := newSharePoint(ctx, e)
		if err != nil {
			return nil, nil, err
		}
		deps.Fetcher = client
	}
	if e.cfg.TranscriptionConfigured() {
		t, err := newTranscriber(e)
		if err != nil {
			e.logger.Warn("transcription disabled", zap.Error(err))
		} else {
			deps.Transcriber = t
		}
	}
	if e.cfg.SlackConfigured() {
		deps.Notifier = slackbot.NewNotifier(e.cfg.SlackBotToken, e.cfg.SlackChannelID, e.logger)
	}

	cleanup := func() {}
	store, err := storage.Open(e.cfg.DBPath)
	if err != nil {
		e.logger.Warn("run ledger disabled", zap.String("db", e.cfg.DBPath), zap.Error(err))
	} else {
		deps.Store = store
		cleanup = func() { store.Close() }
	}
	return pipeline.New(e.cfg, deps), cleanup, nil
}
