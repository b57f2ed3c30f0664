package config

import (
	"strings"
	"time"
)

// AppConfig holds application-level settings.
type AppConfig struct {
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"` // optional rotating log file
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // redis | postgres
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig holds the postgres connection string.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// HTTPConfig controls outbound HTTP calls made by fetchers and the extractor.
type HTTPConfig struct {
	Timeout   string `mapstructure:"timeout"` // duration string, e.g., "5s"
	UserAgent string `mapstructure:"user_agent"`
}

// PipelineConfig bounds the digest run.
type PipelineConfig struct {
	UserWorkers    int    `mapstructure:"user_workers"`
	SourceWorkers  int    `mapstructure:"source_workers"`
	EnrichWorkers  int    `mapstructure:"enrich_workers"`  // concurrent LLM calls per user
	ExtractWorkers int    `mapstructure:"extract_workers"` // concurrent page extractions per source
	RunTimeout     string `mapstructure:"run_timeout"`     // per-user deadline, e.g., "5m"
	ItemLimit      int    `mapstructure:"item_limit"`      // items per source fetch
	SummaryWords   int    `mapstructure:"summary_words"`
	Narrative      bool   `mapstructure:"narrative"` // ask the LLM for an overview paragraph
}

// LLMConfig configures one LLM provider endpoint. API keys are per user.
type LLMConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
	Timeout string `mapstructure:"timeout"`
}

// ServerConfig controls the HTTP surface.
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	CronSecret    string `mapstructure:"cron_secret"`
	WebhookSecret string `mapstructure:"webhook_secret"`
}

// SchedulerConfig controls the in-process trigger.
type SchedulerConfig struct {
	Spec     string `mapstructure:"spec"` // cron expression
	Disabled bool   `mapstructure:"disabled"`
}

// InboundConfig controls inbound email handling.
type InboundConfig struct {
	Domain     string `mapstructure:"domain"`      // alias domain, e.g., digest.app
	SourceName string `mapstructure:"source_name"` // name of the auto-created newsletter source
}

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// WebhookConfig configures the webhook channel.
type WebhookConfig struct {
	URL    string `mapstructure:"url"`
	Secret string `mapstructure:"secret"`
}

// DeliveryConfig groups delivery channels.
type DeliveryConfig struct {
	Channels   []string      `mapstructure:"channels"` // email, webhook, file
	SMTP       SMTPConfig    `mapstructure:"smtp"`
	Webhook    WebhookConfig `mapstructure:"webhook"`
	OutputDir  string        `mapstructure:"output_dir"`
	Preface    string        `mapstructure:"preface"`
	Postscript string        `mapstructure:"postscript"`
}

// CloudflareConfig enables the browser-rendering fallback extractor.
type CloudflareConfig struct {
	AccountID string `mapstructure:"account_id"`
	APIToken  string `mapstructure:"api_token"`
}

// Enabled reports whether both credentials are present.
func (c CloudflareConfig) Enabled() bool {
	return c.AccountID != "" && c.APIToken != ""
}

// Config is the top-level configuration structure.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Postgres   PostgresConfig   `mapstructure:"postgres"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	OpenAI     LLMConfig        `mapstructure:"openai"`
	Anthropic  LLMConfig        `mapstructure:"anthropic"`
	Groq       LLMConfig        `mapstructure:"groq"`
	Google     LLMConfig        `mapstructure:"google"`
	Server     ServerConfig     `mapstructure:"server"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Inbound    InboundConfig    `mapstructure:"inbound"`
	Delivery   DeliveryConfig   `mapstructure:"delivery"`
	Cloudflare CloudflareConfig `mapstructure:"cloudflare"`
}

// FillDefaults applies default values if not provided.
func (c *Config) FillDefaults() {
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "redis"
	}
	c.Storage.Driver = strings.ToLower(c.Storage.Driver)
	if c.Redis.Addr == "" {
		c.Redis.Addr = "127.0.0.1:6379"
	}
	if c.HTTP.Timeout == "" {
		c.HTTP.Timeout = "5s"
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "DailyDigest/1.0"
	}
	if c.Pipeline.UserWorkers == 0 {
		c.Pipeline.UserWorkers = 4
	}
	if c.Pipeline.SourceWorkers == 0 {
		c.Pipeline.SourceWorkers = 4
	}
	if c.Pipeline.EnrichWorkers == 0 {
		c.Pipeline.EnrichWorkers = 4
	}
	if c.Pipeline.ExtractWorkers == 0 {
		c.Pipeline.ExtractWorkers = 4
	}
	if c.Pipeline.RunTimeout == "" {
		c.Pipeline.RunTimeout = "5m"
	}
	if c.Pipeline.ItemLimit == 0 {
		c.Pipeline.ItemLimit = 10
	}
	if c.Pipeline.SummaryWords == 0 {
		c.Pipeline.SummaryWords = 200
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4-turbo-preview"
	}
	if c.Anthropic.BaseURL == "" {
		c.Anthropic.BaseURL = "https://api.anthropic.com/v1"
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-3-sonnet-20240229"
	}
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = "https://api.groq.com/openai/v1"
	}
	if c.Groq.Model == "" {
		c.Groq.Model = "llama3-70b-8192"
	}
	if c.Google.BaseURL == "" {
		c.Google.BaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	}
	if c.Google.Model == "" {
		c.Google.Model = "gemini-1.5-flash"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Scheduler.Spec == "" {
		c.Scheduler.Spec = "0 * * * *"
	}
	if c.Inbound.Domain == "" {
		c.Inbound.Domain = "digest.app"
	}
	if c.Inbound.SourceName == "" {
		c.Inbound.SourceName = "Email Newsletters"
	}
	if c.Delivery.SMTP.Port == 0 {
		c.Delivery.SMTP.Port = 587
	}
	if c.Delivery.OutputDir == "" {
		c.Delivery.OutputDir = "./out"
	}
	if len(c.Delivery.Channels) == 0 {
		c.Delivery.Channels = []string{"file"}
	}
}

// Duration parses a duration string, returning def when empty or invalid.
func Duration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// LLM returns the endpoint config for a provider id.
func (c Config) LLM(provider string) LLMConfig {
	switch strings.ToLower(provider) {
	case "anthropic":
		return c.Anthropic
	case "groq":
		return c.Groq
	case "google":
		return c.Google
	default:
		return c.OpenAI
	}
}
