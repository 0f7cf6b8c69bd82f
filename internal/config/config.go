package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/outreach-cli/internal/extract"
)

// Config holds the full application configuration.
type Config struct {
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Mail      MailConfig      `yaml:"mail" mapstructure:"mail"`
	SendGrid  SendGridConfig  `yaml:"sendgrid" mapstructure:"sendgrid"`
	SES       SESConfig       `yaml:"ses" mapstructure:"ses"`
	Sender    SenderConfig    `yaml:"sender" mapstructure:"sender"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	LLM       LLMConfig       `yaml:"llm" mapstructure:"llm"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini" mapstructure:"gemini"`
	Scrape    ScrapeConfig    `yaml:"scrape" mapstructure:"scrape"`
	Jina      JinaConfig      `yaml:"jina" mapstructure:"jina"`
	Compose   ComposeConfig   `yaml:"compose" mapstructure:"compose"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the webhook server and its background executor.
type ServerConfig struct {
	Port              int      `yaml:"port" mapstructure:"port"`
	Workers           int      `yaml:"workers" mapstructure:"workers"`
	QueueSize         int      `yaml:"queue_size" mapstructure:"queue_size"`
	RateLimitRPS      float64  `yaml:"rate_limit_rps" mapstructure:"rate_limit_rps"`
	RateLimitBurst    int      `yaml:"rate_limit_burst" mapstructure:"rate_limit_burst"`
	BasicAuthUser     string   `yaml:"basic_auth_user" mapstructure:"basic_auth_user"`
	BasicAuthPassword string   `yaml:"basic_auth_password" mapstructure:"basic_auth_password"`
	AllowedOrigins    []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MailConfig selects the provider for outreach emails.
type MailConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// SendGridConfig holds SendGrid API settings.
type SendGridConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// SESConfig holds Amazon SES credentials.
type SESConfig struct {
	Region          string `yaml:"region" mapstructure:"region"`
	AccessKeyID     string `yaml:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" mapstructure:"secret_access_key"`
	Endpoint        string `yaml:"endpoint" mapstructure:"endpoint"`
}

// SenderConfig is the From identity of outreach emails. Email may also be
// given as `Name <addr>`.
type SenderConfig struct {
	Email string `yaml:"email" mapstructure:"email"`
	Name  string `yaml:"name" mapstructure:"name"`
}

// AuditConfig configures the internal audit report.
type AuditConfig struct {
	Recipient string `yaml:"recipient" mapstructure:"recipient"`
	FromName  string `yaml:"from_name" mapstructure:"from_name"`
	Provider  string `yaml:"provider" mapstructure:"provider"`
}

// LLMConfig selects the language model backend.
type LLMConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	Model   string `yaml:"model" mapstructure:"model"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScrapeConfig configures company website fetching.
type ScrapeConfig struct {
	TimeoutSecs     int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxContentChars int    `yaml:"max_content_chars" mapstructure:"max_content_chars"`
	UserAgent       string `yaml:"user_agent" mapstructure:"user_agent"`
}

// JinaConfig holds Jina AI Reader settings. The Jina fallback is enabled
// only when Key is set.
type JinaConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ComposeConfig holds the outreach copy and scheduling window.
type ComposeConfig struct {
	Subject         string        `yaml:"subject" mapstructure:"subject"`
	Greeting        string        `yaml:"greeting" mapstructure:"greeting"`
	SendImmediately bool          `yaml:"send_immediately" mapstructure:"send_immediately"`
	MinDelay        time.Duration `yaml:"min_delay" mapstructure:"min_delay"`
	MaxDelay        time.Duration `yaml:"max_delay" mapstructure:"max_delay"`
	SenderFirstName string        `yaml:"sender_first_name" mapstructure:"sender_first_name"`
	ProductName     string        `yaml:"product_name" mapstructure:"product_name"`
	CalendarURL     string        `yaml:"calendar_url" mapstructure:"calendar_url"`
	TelegramURL     string        `yaml:"telegram_url" mapstructure:"telegram_url"`
}

// ExtractConfig configures customer extraction.
type ExtractConfig struct {
	GenericDomains []string `yaml:"generic_domains" mapstructure:"generic_domains"`
}

// Greeting strategies accepted in compose.greeting.
const (
	GreetingFirstName = "first_name"
	GreetingLLM       = "llm"
)

// LLM backends accepted in llm.provider.
const (
	LLMAnthropic = "anthropic"
	LLMGemini    = "gemini"
)

// Load reads configuration from .env, config.yaml and the environment.
// Variables already set in the process environment win over .env.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// setDefaults registers every key, so AutomaticEnv sees credentials that
// have no real default.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.workers", 4)
	v.SetDefault("server.queue_size", 64)
	v.SetDefault("server.rate_limit_rps", 5)
	v.SetDefault("server.rate_limit_burst", 10)
	v.SetDefault("server.basic_auth_user", "")
	v.SetDefault("server.basic_auth_password", "")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("mail.provider", "sendgrid")
	v.SetDefault("sendgrid.key", "")
	v.SetDefault("sendgrid.base_url", "https://api.sendgrid.com")
	v.SetDefault("ses.region", "us-east-1")
	v.SetDefault("ses.access_key_id", "")
	v.SetDefault("ses.secret_access_key", "")
	v.SetDefault("ses.endpoint", "")

	v.SetDefault("sender.email", "")
	v.SetDefault("sender.name", "Derek")

	v.SetDefault("audit.recipient", "")
	v.SetDefault("audit.from_name", "ZeroDev Email Agent")
	v.SetDefault("audit.provider", "sendgrid")

	v.SetDefault("llm.provider", LLMAnthropic)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("gemini.key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.base_url", "")

	v.SetDefault("scrape.timeout_secs", 10)
	v.SetDefault("scrape.max_content_chars", 2000)
	v.SetDefault("scrape.user_agent", "")
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")

	v.SetDefault("compose.subject", "ZeroDev experience?")
	v.SetDefault("compose.greeting", GreetingFirstName)
	v.SetDefault("compose.send_immediately", false)
	v.SetDefault("compose.min_delay", "24h")
	v.SetDefault("compose.max_delay", "48h")
	v.SetDefault("compose.sender_first_name", "Derek")
	v.SetDefault("compose.product_name", "ZeroDev")
	v.SetDefault("compose.calendar_url", "https://calendly.com/zerodev/30min")
	v.SetDefault("compose.telegram_url", "https://t.me/derek_chiang")

	v.SetDefault("extract.generic_domains", extract.DefaultGenericDomains)
}

// Validate checks the settings a command cannot run without. Missing
// provider credentials are not errors; those paths degrade per call.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.LLM.Provider {
	case LLMAnthropic, LLMGemini:
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not one of anthropic, gemini", c.LLM.Provider))
	}
	switch c.Compose.Greeting {
	case GreetingFirstName, GreetingLLM:
	default:
		errs = append(errs, fmt.Sprintf("compose.greeting %q is not one of first_name, llm", c.Compose.Greeting))
	}
	if c.Compose.MinDelay < 0 || c.Compose.MaxDelay < 0 {
		errs = append(errs, "compose delays must be >= 0")
	}

	switch mode {
	case "run":
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
		if c.Server.Workers < 0 || c.Server.QueueSize < 0 {
			errs = append(errs, "server.workers and server.queue_size must be >= 0")
		}
		if c.Server.RateLimitRPS < 0 {
			errs = append(errs, "server.rate_limit_rps must be >= 0")
		}
		if (c.Server.BasicAuthUser == "") != (c.Server.BasicAuthPassword == "") {
			errs = append(errs, "server.basic_auth_user and server.basic_auth_password must be set together")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown mode %q", mode))
	}

	if len(errs) > 0 {
		return eris.New("config: " + strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
