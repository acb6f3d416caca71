// Package app wires configuration, logging and the integrations into the
// mentorreport command line.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mentorreport/internal/config"
	"mentorreport/internal/httpx"
	"mentorreport/internal/logging"
)

const (
	Version = "0.3.0"
	appName = "mentorreport"
)

// Main runs the command line and exits non-zero on error.
func Main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(os.Stdin, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// env is what every command gets after startup.
type env struct {
	cfg    config.Config
	logger *zap.Logger
	in     io.Reader
	out    io.Writer
}

// loadEnv reads the configuration and builds the logger. logLevel overrides
// the configured level when set.
func loadEnv(cmd *cobra.Command, logLevel string, in io.Reader) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, err
	}
	applied := httpx.ConfigureExternalHTTPClient(cfg.ExternalHTTPTimeoutSeconds)
	logger.Debug("config loaded",
		zap.String("working_dir", cfg.WorkingDir),
		zap.String("llm_backend", cfg.LLMBackend),
		zap.String("section_model", cfg.SectionModel),
		zap.String("classify_model", cfg.ClassifyModel),
		zap.Bool("sharepoint", cfg.SharePointConfigured()),
		zap.Bool("transcription", cfg.TranscriptionConfigured()),
		zap.Bool("slack", cfg.SlackConfigured()),
		zap.Duration("external_http_timeout", applied))
	return &env{cfg: cfg, logger: logger, in: in, out: cmd.OutOrStdout()}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

// NewRootCommand builds the command tree. in feeds the interactive prompt.
func NewRootCommand(in io.Reader, out io.Writer) *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:   appName,
		Short: "Generate 11-section mentoring reports for Greek SMEs",
		Long: `mentorreport discovers the business documents of a company, classifies
them into the eleven report sections, generates every section through the
claude CLI (or the Anthropic API) and renders the result as HTML.

Documents come from a local folder or from the company's SharePoint
"mentoring" folder, looked up by AFM.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	withEnv := func(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd, logLevel, in)
			if err != nil {
				return err
			}
			defer e.close()
			return run(cmd, args, e)
		}
	}

	root.AddCommand(
		generateCommand(withEnv),
		preprocessCommand(withEnv),
		classifyCommand(withEnv),
		renderCommand(withEnv),
		sharepointCommand(withEnv),
		transcribeCommand(withEnv),
		scheduleCommand(withEnv),
		historyCommand(withEnv),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return root
}

type envRunner func(run func(cmd *cobra.Command, args []string, e *env) error) func(*cobra.Command, []string) error
