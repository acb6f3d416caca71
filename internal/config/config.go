package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultExternalHTTPTimeout = 90 * time.Second
const defaultExternalHTTPTimeoutSeconds = int(defaultExternalHTTPTimeout / time.Second)

const (
	BackendCLI       = "cli"
	BackendAnthropic = "anthropic"
)

type Config struct {
	WorkingDir   string `yaml:"working_dir"`
	TemplatePath string `yaml:"template_path"`
	LogoPath     string `yaml:"logo_path"`
	LogFile      string `yaml:"log_file"`
	LogLevel     string `yaml:"log_level"`

	LLMBackend             string `yaml:"llm_backend"`
	ClaudeBinary           string `yaml:"claude_binary"`
	SectionModel           string `yaml:"section_model"`
	ClassifyModel          string `yaml:"classify_model"`
	ClassifyTimeoutSeconds int    `yaml:"classify_timeout_seconds"`
	SectionTimeoutSeconds  int    `yaml:"section_timeout_seconds"`
	ClassifyKeepEmpty      bool   `yaml:"classify_keep_empty_sections"`
	SkipPluginSetup        bool   `yaml:"skip_plugin_setup"`
	AnthropicAPIKey        string `yaml:"anthropic_api_key"`
	AnthropicMaxTokens     int    `yaml:"anthropic_max_tokens"`

	OpenAIAPIKey          string `yaml:"openai_api_key"`
	WhisperModel          string `yaml:"whisper_model"`
	TranscribeMaxMB       int    `yaml:"transcribe_max_mb"`
	TranscribeChunkSecond int    `yaml:"transcribe_chunk_seconds"`
	FFmpegPath            string `yaml:"ffmpeg_path"`
	FFprobePath           string `yaml:"ffprobe_path"`

	SharePointTenantID     string `yaml:"sharepoint_tenant_id"`
	SharePointClientID     string `yaml:"sharepoint_client_id"`
	SharePointClientSecret string `yaml:"sharepoint_client_secret"`
	SharePointSiteName     string `yaml:"sharepoint_site_name"`
	SharePointDriveName    string `yaml:"sharepoint_drive_name"`
	GraphBaseURL           string `yaml:"graph_base_url"`
	AuthorityHost          string `yaml:"authority_host"`

	DBPath                     string `yaml:"db_path"`
	ExternalHTTPTimeoutSeconds int    `yaml:"external_http_timeout_seconds"`
	MetricsTextfile            string `yaml:"metrics_textfile"`
	PDFExport                  bool   `yaml:"pdf_export"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`

	ScheduleCron  string   `yaml:"schedule_cron"`
	ScheduledAFMs []string `yaml:"scheduled_afms"`
	Timezone      string   `yaml:"timezone"`

	Location *time.Location `yaml:"-"` // computed from Timezone, not from YAML
}

// LoadConfig reads .env, then config.yaml (or CONFIG_PATH), then applies
// environment overrides, defaults and validation.
func LoadConfig() (Config, error) {
	var cfg Config

	if err := godotenv.Load(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing %s: %w", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	envOverride(&cfg.WorkingDir, "WORKING_DIR")
	envOverride(&cfg.TemplatePath, "TEMPLATE_PATH")
	envOverride(&cfg.LogoPath, "LOGO_PATH")
	envOverride(&cfg.LogFile, "LOG_FILE")
	envOverride(&cfg.LogLevel, "LOG_LEVEL")
	envOverride(&cfg.LLMBackend, "LLM_BACKEND")
	envOverride(&cfg.ClaudeBinary, "CLAUDE_BINARY")
	envOverride(&cfg.SectionModel, "SECTION_MODEL")
	envOverride(&cfg.ClassifyModel, "CLASSIFY_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.WhisperModel, "WHISPER_MODEL")
	envOverride(&cfg.FFmpegPath, "FFMPEG_PATH")
	envOverride(&cfg.FFprobePath, "FFPROBE_PATH")
	envOverride(&cfg.SharePointTenantID, "SHAREPOINT_TENANT_ID")
	envOverride(&cfg.SharePointClientID, "SHAREPOINT_CLIENT_ID")
	envOverride(&cfg.SharePointClientSecret, "SHAREPOINT_CLIENT_SECRET")
	envOverride(&cfg.SharePointSiteName, "SHAREPOINT_SITE_NAME")
	envOverrideAllowEmpty(&cfg.SharePointDriveName, "SHAREPOINT_DRIVE_NAME")
	envOverride(&cfg.GraphBaseURL, "GRAPH_BASE_URL")
	envOverride(&cfg.AuthorityHost, "AUTHORITY_HOST")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverride(&cfg.MetricsTextfile, "METRICS_TEXTFILE")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	envOverride(&cfg.ScheduleCron, "SCHEDULE_CRON")
	envOverride(&cfg.Timezone, "TIMEZONE")
	envOverrideBool(&cfg.ClassifyKeepEmpty, "CLASSIFY_KEEP_EMPTY_SECTIONS")
	envOverrideBool(&cfg.SkipPluginSetup, "SKIP_PLUGIN_SETUP")
	envOverrideBool(&cfg.PDFExport, "PDF_EXPORT")

	var errs []error
	errs = append(errs,
		envOverrideInt(&cfg.ClassifyTimeoutSeconds, "CLASSIFY_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.SectionTimeoutSeconds, "SECTION_TIMEOUT_SECONDS"),
		envOverrideInt(&cfg.AnthropicMaxTokens, "ANTHROPIC_MAX_TOKENS"),
		envOverrideInt(&cfg.TranscribeMaxMB, "TRANSCRIBE_MAX_MB"),
		envOverrideInt(&cfg.TranscribeChunkSecond, "TRANSCRIBE_CHUNK_SECONDS"),
		envOverrideInt(&cfg.ExternalHTTPTimeoutSeconds, "EXTERNAL_HTTP_TIMEOUT_SECONDS"),
	)
	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}

	if afms := os.Getenv("SCHEDULED_AFMS"); afms != "" {
		cfg.ScheduledAFMs = nil
		for _, a := range strings.Split(afms, ",") {
			a = strings.TrimSpace(a)
			if a != "" {
				cfg.ScheduledAFMs = append(cfg.ScheduledAFMs, a)
			}
		}
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.WorkingDir == "" {
		cfg.WorkingDir = "./working_dir"
	}
	if cfg.LogoPath == "" {
		cfg.LogoPath = "./templates/logo.jpeg"
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "app.log"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LLMBackend == "" {
		cfg.LLMBackend = BackendCLI
	}
	if cfg.ClaudeBinary == "" {
		cfg.ClaudeBinary = "claude"
	}
	if cfg.SectionModel == "" {
		cfg.SectionModel = "sonnet"
	}
	if cfg.ClassifyModel == "" {
		cfg.ClassifyModel = "haiku"
	}
	if cfg.ClassifyTimeoutSeconds == 0 {
		cfg.ClassifyTimeoutSeconds = 180
	}
	if cfg.AnthropicMaxTokens == 0 {
		cfg.AnthropicMaxTokens = 16000
	}
	if cfg.WhisperModel == "" {
		cfg.WhisperModel = "whisper-1"
	}
	if cfg.TranscribeMaxMB == 0 {
		cfg.TranscribeMaxMB = 25
	}
	if cfg.TranscribeChunkSecond == 0 {
		cfg.TranscribeChunkSecond = 900
	}
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.GraphBaseURL == "" {
		cfg.GraphBaseURL = "https://graph.microsoft.com/v1.0"
	}
	if cfg.AuthorityHost == "" {
		cfg.AuthorityHost = "https://login.microsoftonline.com"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "./mentorreport.db"
	}
	if cfg.ExternalHTTPTimeoutSeconds == 0 {
		cfg.ExternalHTTPTimeoutSeconds = defaultExternalHTTPTimeoutSeconds
	}
	if cfg.ScheduleCron == "" {
		cfg.ScheduleCron = "0 2 * * *"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "Local"
	}
}

// Validate checks value ranges and resolves the timezone.
func (c *Config) Validate() error {
	switch c.LLMBackend {
	case BackendCLI:
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_backend=anthropic")
		}
	default:
		return fmt.Errorf("llm_backend must be 'cli' or 'anthropic', got '%s'", c.LLMBackend)
	}
	if c.ClassifyTimeoutSeconds < 0 {
		return fmt.Errorf("invalid classify_timeout_seconds '%d': must be >= 0", c.ClassifyTimeoutSeconds)
	}
	if c.SectionTimeoutSeconds < 0 {
		return fmt.Errorf("invalid section_timeout_seconds '%d': must be >= 0", c.SectionTimeoutSeconds)
	}
	if c.TranscribeMaxMB < 1 {
		return fmt.Errorf("invalid transcribe_max_mb '%d': must be >= 1", c.TranscribeMaxMB)
	}
	if c.TranscribeChunkSecond < 30 {
		return fmt.Errorf("invalid transcribe_chunk_seconds '%d': must be >= 30", c.TranscribeChunkSecond)
	}
	if c.ExternalHTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid external_http_timeout_seconds '%d': must be >= 5", c.ExternalHTTPTimeoutSeconds)
	}
	if (c.SlackBotToken == "") != (c.SlackChannelID == "") {
		return fmt.Errorf("slack_bot_token and slack_channel_id must be set together")
	}

	if strings.EqualFold(c.Timezone, "Local") {
		c.Location = time.Local
	} else {
		loc, err := time.LoadLocation(c.Timezone)
		if err != nil {
			return fmt.Errorf("invalid timezone '%s': %w", c.Timezone, err)
		}
		c.Location = loc
	}
	return nil
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideAllowEmpty(field *string, envKey string) {
	if val, ok := os.LookupEnv(envKey); ok {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}

func envOverrideBool(field *bool, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = strings.EqualFold(val, "true") || val == "1"
	}
}

func (c Config) SharePointConfigured() bool {
	return c.SharePointTenantID != "" && c.SharePointClientID != "" &&
		c.SharePointClientSecret != "" && c.SharePointSiteName != ""
}

func (c Config) TranscriptionConfigured() bool {
	return c.OpenAIAPIKey != ""
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.SlackChannelID != ""
}

func (c Config) ClassifyTimeout() time.Duration {
	return time.Duration(c.ClassifyTimeoutSeconds) * time.Second
}

func (c Config) SectionTimeout() time.Duration {
	return time.Duration(c.SectionTimeoutSeconds) * time.Second
}
