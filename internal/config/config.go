package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Notification channels.
const (
	NotifyTelegram = "telegram"
	NotifyWhatsApp = "whatsapp"
	NotifyLog      = "log"
)

// Telegram inbound modes.
const (
	TelegramPolling = "polling"
	TelegramWebhook = "webhook"
	TelegramOff     = "off"
)

// Config holds the full application configuration.
type Config struct {
	Environment string          `yaml:"environment" mapstructure:"environment"`
	Server      ServerConfig    `yaml:"server" mapstructure:"server"`
	Log         LogConfig       `yaml:"log" mapstructure:"log"`
	Session     SessionConfig   `yaml:"session" mapstructure:"session"`
	Anthropic   AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Telegram    TelegramConfig  `yaml:"telegram" mapstructure:"telegram"`
	Twilio      TwilioConfig    `yaml:"twilio" mapstructure:"twilio"`
	Notify      NotifyConfig    `yaml:"notify" mapstructure:"notify"`
	Database    DatabaseConfig  `yaml:"database" mapstructure:"database"`
	KeepAlive   KeepAliveConfig `yaml:"keepalive" mapstructure:"keepalive"`
	Catalog     CatalogConfig   `yaml:"catalog" mapstructure:"catalog"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `yaml:"port" mapstructure:"port"`
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
	// TrustedProxies are the peer IPs or CIDRs whose X-Forwarded-* headers
	// are believed. Requests from other peers are keyed by the socket address.
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`
}

// DefaultTrustedProxies covers loopback and private networks, where hosting
// load balancers reach the service.
var DefaultTrustedProxies = []string{
	"127.0.0.1", "::1",
	"10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7",
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SessionConfig configures the dialog engine and the expiry sweeper.
type SessionConfig struct {
	SweepInterval    time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
	IncompleteAfter  time.Duration `yaml:"incomplete_after" mapstructure:"incomplete_after"`
	Retention        time.Duration `yaml:"retention" mapstructure:"retention"`
	DetailsTurns     int           `yaml:"details_turns" mapstructure:"details_turns"`
	MessageThreshold int           `yaml:"message_threshold" mapstructure:"message_threshold"`
}

// AnthropicConfig holds Anthropic API settings. Without a key replies come
// from the catalog rules.
type AnthropicConfig struct {
	Key     string        `yaml:"key" mapstructure:"key"`
	Model   string        `yaml:"model" mapstructure:"model"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token         string `yaml:"token" mapstructure:"token"`
	ChatID        string `yaml:"chat_id" mapstructure:"chat_id"`
	Mode          string `yaml:"mode" mapstructure:"mode"`
	WebhookSecret string `yaml:"webhook_secret" mapstructure:"webhook_secret"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
}

// TwilioConfig holds Twilio WhatsApp credentials.
type TwilioConfig struct {
	AccountSID        string `yaml:"account_sid" mapstructure:"account_sid"`
	AuthToken         string `yaml:"auth_token" mapstructure:"auth_token"`
	WhatsAppFrom      string `yaml:"whatsapp_from" mapstructure:"whatsapp_from"`
	DisableValidation bool   `yaml:"disable_validation" mapstructure:"disable_validation"`
}

// NotifyConfig selects where leads are delivered. An empty channel picks
// Telegram, then WhatsApp, then the log, depending on what is configured.
type NotifyConfig struct {
	Channel string `yaml:"channel" mapstructure:"channel"`
	// WhatsAppTo is the manager's number for the WhatsApp channel.
	WhatsAppTo string        `yaml:"whatsapp_to" mapstructure:"whatsapp_to"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// DatabaseConfig configures the optional lead journal.
type DatabaseConfig struct {
	URL string `yaml:"url" mapstructure:"url"`
}

// KeepAliveConfig configures self pinging on free tier hosting.
type KeepAliveConfig struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`
}

// CatalogConfig points at a catalog file replacing the embedded one.
type CatalogConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// legacyEnv maps config keys to the plain environment names used by
// deployments and .env files.
var legacyEnv = map[string]string{
	"environment":               "ENVIRONMENT",
	"server.port":               "PORT",
	"telegram.token":            "TELEGRAM_BOT_TOKEN",
	"telegram.chat_id":          "TELEGRAM_CHAT_ID",
	"anthropic.key":             "ANTHROPIC_API_KEY",
	"twilio.account_sid":        "TWILIO_ACCOUNT_SID",
	"twilio.auth_token":         "TWILIO_AUTH_TOKEN",
	"twilio.whatsapp_from":      "TWILIO_WHATSAPP_FROM",
	"twilio.disable_validation": "DISABLE_WEBHOOK_VALIDATION",
	"database.url":              "DATABASE_URL",
	"keepalive.url":             "RENDER_EXTERNAL_URL",
}

const envPrefix = "LEADBOT"

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	loadDotEnv()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("environment", "production")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.static_dir", "static")
	v.SetDefault("server.trusted_proxies", DefaultTrustedProxies)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("session.sweep_interval", time.Minute)
	v.SetDefault("session.incomplete_after", 10*time.Minute)
	v.SetDefault("session.retention", 2*time.Hour)
	v.SetDefault("session.details_turns", 2)
	v.SetDefault("session.message_threshold", 5)
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.timeout", 10*time.Second)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", "")
	v.SetDefault("telegram.mode", TelegramPolling)
	v.SetDefault("telegram.webhook_secret", "")
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("twilio.account_sid", "")
	v.SetDefault("twilio.auth_token", "")
	v.SetDefault("twilio.whatsapp_from", "")
	v.SetDefault("twilio.disable_validation", false)
	v.SetDefault("notify.channel", "")
	v.SetDefault("notify.whatsapp_to", "")
	v.SetDefault("notify.timeout", 10*time.Second)
	v.SetDefault("database.url", "")
	v.SetDefault("keepalive.url", "")
	v.SetDefault("keepalive.interval", 5*time.Minute)
	v.SetDefault("catalog.path", "")

	for key, legacy := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return nil, eris.Wrapf(err, "config: bind %s", key)
		}
	}

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

// loadDotEnv loads the first .env file found for local development. Existing
// environment variables win over file values.
func loadDotEnv() {
	for _, path := range []string{".env", "environments/.env.development"} {
		if godotenv.Load(path) == nil {
			return
		}
	}
}

// Validate reports settings the service cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return eris.Errorf("config: invalid server.port %d", c.Server.Port)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return eris.Errorf("config: unknown log.format %q", c.Log.Format)
	}
	switch c.Telegram.Mode {
	case TelegramPolling, TelegramWebhook, TelegramOff:
	default:
		return eris.Errorf("config: unknown telegram.mode %q", c.Telegram.Mode)
	}

	for name, d := range map[string]time.Duration{
		"session.sweep_interval":   c.Session.SweepInterval,
		"session.incomplete_after": c.Session.IncompleteAfter,
		"session.retention":        c.Session.Retention,
		"anthropic.timeout":        c.Anthropic.Timeout,
		"notify.timeout":           c.Notify.Timeout,
	} {
		if d <= 0 {
			return eris.Errorf("config: %s must be positive", name)
		}
	}
	if c.Session.IncompleteAfter >= c.Session.Retention {
		return eris.New("config: session.incomplete_after must be shorter than session.retention")
	}

	switch c.Notify.Channel {
	case "", NotifyLog:
	case NotifyTelegram:
		if c.Telegram.Token == "" || c.Telegram.ChatID == "" {
			return eris.New("config: telegram notifications need telegram.token and telegram.chat_id")
		}
	case NotifyWhatsApp:
		if !c.Twilio.Configured() || c.Notify.WhatsAppTo == "" {
			return eris.New("config: whatsapp notifications need twilio credentials and notify.whatsapp_to")
		}
	default:
		return eris.Errorf("config: unknown notify.channel %q", c.Notify.Channel)
	}
	return nil
}

// Configured reports whether all Twilio credentials are present.
func (t TwilioConfig) Configured() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.WhatsAppFrom != ""
}

// NotifyChannel resolves the lead delivery channel.
func (c *Config) NotifyChannel() string {
	if c.Notify.Channel != "" {
		return c.Notify.Channel
	}
	switch {
	case c.Telegram.Token != "" && c.Telegram.ChatID != "":
		return NotifyTelegram
	case c.Twilio.Configured() && c.Notify.WhatsAppTo != "":
		return NotifyWhatsApp
	default:
		return NotifyLog
	}
}

// IsDevelopment reports whether the service runs locally.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
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
