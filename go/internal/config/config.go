// Package config loads process configuration from an optional YAML file and
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sendqueue"
	"github.com/mcdev12/outreach/go/internal/sequence"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig          `yaml:"server"`
	Log       LogConfig             `yaml:"log"`
	Secrets   SecretsConfig         `yaml:"secrets"`
	Email     EmailConfig           `yaml:"email"`
	SMS       SMSConfig             `yaml:"sms"`
	Defaults  DefaultsConfig        `yaml:"defaults"`
	SendQueue sendqueue.Config      `yaml:"send_queue"`
	Sequences sequence.EngineConfig `yaml:"sequences"`
	Webhooks  webhook.Config        `yaml:"webhooks"`
	Activity  ActivityConfig        `yaml:"activity"`
	Telemetry TelemetryConfig       `yaml:"telemetry"`
	Scheduler SchedulerConfig       `yaml:"scheduler"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// TickTimeout bounds one scheduler tick, independent of the request.
	TickTimeout    time.Duration `yaml:"tick_timeout"`
	AllowedOrigins []string      `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error"`
	Pretty bool   `yaml:"pretty"`
}

type SecretsConfig struct {
	Scheduler string `yaml:"scheduler" validate:"required"`
	Callback  string `yaml:"callback" validate:"required"`
	// Feed guards the live activity feed. Left empty, the feed is closed.
	Feed string `yaml:"feed"`
}

type EmailConfig struct {
	RelayURL string        `yaml:"relay_url" validate:"omitempty,url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

type SMSConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	AccountSID        string        `yaml:"account_sid"`
	AuthToken         string        `yaml:"auth_token"`
	StatusCallbackURL string        `yaml:"status_callback_url" validate:"omitempty,url"`
	Timeout           time.Duration `yaml:"timeout"`
}

// DefaultsConfig is the process-wide send configuration used when an org
// has none of its own.
type DefaultsConfig struct {
	Enabled bool              `yaml:"enabled"`
	Send    models.SendConfig `yaml:"send"`
}

type ActivityConfig struct {
	// Publisher is one of log, nats, rabbitmq or none.
	Publisher string `yaml:"publisher" validate:"oneof=log nats rabbitmq none"`
	NATSURL   string `yaml:"nats_url"`
	AMQPURL   string `yaml:"amqp_url"`
	Exchange  string `yaml:"exchange"`
}

type TelemetryConfig struct {
	ServiceName  string `yaml:"service_name"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	Insecure     bool   `yaml:"insecure"`
}

type SchedulerConfig struct {
	BaseURL           string        `yaml:"base_url" validate:"omitempty,url"`
	SendQueueInterval time.Duration `yaml:"send_queue_interval"`
	SequenceInterval  time.Duration `yaml:"sequence_interval"`
	WebhookInterval   time.Duration `yaml:"webhook_interval"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	NotifyChannel     string        `yaml:"notify_channel"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
			TickTimeout:     15 * time.Minute,
			AllowedOrigins:  []string{"*"},
		},
		Log:       LogConfig{Level: "info"},
		Email:     EmailConfig{Timeout: 15 * time.Second},
		SMS:       SMSConfig{Timeout: 15 * time.Second},
		SendQueue: sendqueue.DefaultConfig(),
		Sequences: sequence.DefaultEngineConfig(),
		Webhooks:  webhook.DefaultConfig(),
		Activity:  ActivityConfig{Publisher: "log", Exchange: "outreach.activity"},
		Telemetry: TelemetryConfig{ServiceName: "outreach"},
		Scheduler: SchedulerConfig{
			BaseURL:           "http://localhost:8080",
			SendQueueInterval: time.Minute,
			SequenceInterval:  time.Minute,
			WebhookInterval:   30 * time.Second,
			RequestTimeout:    16 * time.Minute,
			NotifyChannel:     "webhook_events",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.deriveSendTimeouts()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvAsInt("PORT", c.Server.Port)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Secrets.Scheduler = getEnv("SCHEDULER_SECRET", c.Secrets.Scheduler)
	c.Secrets.Callback = getEnv("CALLBACK_SECRET", c.Secrets.Callback)
	c.Secrets.Feed = getEnv("FEED_SECRET", c.Secrets.Feed)
	c.Email.RelayURL = getEnv("EMAIL_RELAY_URL", c.Email.RelayURL)
	c.Email.APIKey = getEnv("EMAIL_RELAY_API_KEY", c.Email.APIKey)
	c.SMS.BaseURL = getEnv("SMS_BASE_URL", c.SMS.BaseURL)
	c.SMS.AccountSID = getEnv("SMS_ACCOUNT_SID", c.SMS.AccountSID)
	c.SMS.AuthToken = getEnv("SMS_AUTH_TOKEN", c.SMS.AuthToken)
	c.SMS.StatusCallbackURL = getEnv("SMS_STATUS_CALLBACK_URL", c.SMS.StatusCallbackURL)
	c.Activity.Publisher = getEnv("ACTIVITY_PUBLISHER", c.Activity.Publisher)
	c.Activity.NATSURL = getEnv("NATS_URL", c.Activity.NATSURL)
	c.Activity.AMQPURL = getEnv("AMQP_URL", c.Activity.AMQPURL)
	c.Telemetry.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", c.Telemetry.OTLPEndpoint)
	c.Scheduler.BaseURL = getEnv("SCHEDULER_BASE_URL", c.Scheduler.BaseURL)
}

// ProviderTimeout is the longest a single email or SMS call may take.
func (c *Config) ProviderTimeout() time.Duration {
	return max(c.Email.Timeout, c.SMS.Timeout)
}

func (c *Config) deriveSendTimeouts() {
	c.SendQueue.SendTimeout = c.ProviderTimeout()
	c.Sequences.SendTimeout = c.ProviderTimeout()
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	for _, check := range []func() error{c.SendQueue.Validate, c.Sequences.Validate, c.Webhooks.Validate} {
		if err := check(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
	}
	if c.Scheduler.RequestTimeout <= c.Server.TickTimeout {
		return fmt.Errorf("invalid config: scheduler.request_timeout %s must be longer than server.tick_timeout %s", c.Scheduler.RequestTimeout, c.Server.TickTimeout)
	}
	if c.Activity.Publisher == "nats" && c.Activity.NATSURL == "" {
		return errors.New("invalid config: activity.nats_url is required for the nats publisher")
	}
	if c.Activity.Publisher == "rabbitmq" && c.Activity.AMQPURL == "" {
		return errors.New("invalid config: activity.amqp_url is required for the rabbitmq publisher")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
