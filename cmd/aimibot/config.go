package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Logging   loggerConfig
	Params    ParamsConfig
	Telegram  TelegramConfig
	OpenAI    OpenAIConfig
	Redis     RedisConfig
	DynamoDB  DynamoDBConfig
	Persona   PersonaConfig
	Voice     VoiceConfig
	Access    AccessConfig
	Dashboard DashboardConfig
}

type ParamsConfig struct {
	// Prefix enables SSM Parameter Store for secrets.
	Prefix string
}

type TelegramConfig struct {
	Token                string
	Endpoint             string
	WebhookURL           string
	WebhookSecret        string
	PaymentProviderToken string
	PollTimeout          time.Duration
	MaxConcurrency       int
	UpdateTimeout        time.Duration
}

type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Moderation  bool
	SpeechModel string
}

type RedisConfig struct {
	URL string
}

type DynamoDBConfig struct {
	Table    string
	Endpoint string
}

type PersonaConfig struct {
	File         string
	EmotionTTL   time.Duration
	HistoryTurns int
	HistoryTTL   time.Duration
}

type VoiceConfig struct {
	Enabled bool
	Dir     string
	Lang    string
	TTL     time.Duration
	FFmpeg  string
}

type AccessConfig struct {
	TrialEnabled   bool
	TrialDuration  time.Duration
	PlanDuration   time.Duration
	NSFWGlobal     bool
	MaxInputLength int
}

type DashboardConfig struct {
	Addr           string
	AllowedOrigins []string
}

func loadConfig() Config {
	return Config{
		Logging: loggerConfig{
			Level:  viper.GetString("logging.level"),
			Format: viper.GetString("logging.format"),
		},
		Params: ParamsConfig{
			Prefix: strings.TrimSpace(viper.GetString("params.prefix")),
		},
		Telegram: TelegramConfig{
			Token:                strings.TrimSpace(viper.GetString("telegram.token")),
			Endpoint:             strings.TrimSpace(viper.GetString("telegram.endpoint")),
			WebhookURL:           strings.TrimSpace(viper.GetString("telegram.webhook_url")),
			WebhookSecret:        strings.TrimSpace(viper.GetString("telegram.webhook_secret")),
			PaymentProviderToken: strings.TrimSpace(viper.GetString("telegram.payment_provider_token")),
			PollTimeout:          viper.GetDuration("telegram.poll_timeout"),
			MaxConcurrency:       viper.GetInt("telegram.max_concurrency"),
			UpdateTimeout:        viper.GetDuration("telegram.update_timeout"),
		},
		OpenAI: OpenAIConfig{
			BaseURL:     strings.TrimSpace(viper.GetString("openai.base_url")),
			APIKey:      strings.TrimSpace(viper.GetString("openai.api_key")),
			Model:       strings.TrimSpace(viper.GetString("openai.model")),
			MaxTokens:   viper.GetInt("openai.max_tokens"),
			Temperature: viper.GetFloat64("openai.temperature"),
			TopP:        viper.GetFloat64("openai.top_p"),
			Moderation:  viper.GetBool("openai.moderation"),
			SpeechModel: strings.TrimSpace(viper.GetString("openai.speech_model")),
		},
		Redis: RedisConfig{
			URL: strings.TrimSpace(viper.GetString("redis.url")),
		},
		DynamoDB: DynamoDBConfig{
			Table:    strings.TrimSpace(viper.GetString("dynamodb.table")),
			Endpoint: strings.TrimSpace(viper.GetString("dynamodb.endpoint")),
		},
		Persona: PersonaConfig{
			File:         strings.TrimSpace(viper.GetString("persona.file")),
			EmotionTTL:   viper.GetDuration("emotion.ttl"),
			HistoryTurns: viper.GetInt("history.max_turns"),
			HistoryTTL:   viper.GetDuration("history.ttl"),
		},
		Voice: VoiceConfig{
			Enabled: viper.GetBool("voice.enabled"),
			Dir:     strings.TrimSpace(viper.GetString("voice.dir")),
			Lang:    strings.TrimSpace(viper.GetString("voice.lang")),
			TTL:     viper.GetDuration("voice.ttl"),
			FFmpeg:  strings.TrimSpace(viper.GetString("voice.ffmpeg")),
		},
		Access: AccessConfig{
			TrialEnabled:   viper.GetBool("access.trial_enabled"),
			TrialDuration:  viper.GetDuration("access.trial_duration"),
			PlanDuration:   viper.GetDuration("access.plan_duration"),
			NSFWGlobal:     viper.GetBool("access.nsfw_global"),
			MaxInputLength: viper.GetInt("access.max_input_length"),
		},
		Dashboard: DashboardConfig{
			Addr:           strings.TrimSpace(viper.GetString("dashboard.addr")),
			AllowedOrigins: viper.GetStringSlice("dashboard.allowed_origins"),
		},
	}
}

// usesSSM reports whether secrets are read from Parameter Store.
func (c Config) usesSSM() bool {
	return c.Params.Prefix != ""
}

// ValidateBot checks what the lambda and poll commands need.
func (c Config) ValidateBot() error {
	var errs []error
	if err := c.ValidateTelegram(); err != nil {
		errs = append(errs, err)
	}
	if !c.usesSSM() && c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("openai.api_key is required without params.prefix"))
	}
	if c.OpenAI.Model == "" {
		errs = append(errs, errors.New("openai.model is required"))
	}
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.DynamoDB.Table == "" {
		errs = append(errs, errors.New("dynamodb.table is required"))
	}
	if c.Voice.Enabled && c.Voice.Dir == "" {
		errs = append(errs, errors.New("voice.dir is required when voice is enabled"))
	}
	if c.Access.TrialDuration < 0 || c.Access.PlanDuration < 0 {
		errs = append(errs, errors.New("access durations must not be negative"))
	}
	if c.Telegram.MaxConcurrency < 0 {
		errs = append(errs, fmt.Errorf("telegram.max_concurrency must not be negative, got %d", c.Telegram.MaxConcurrency))
	}
	return errors.Join(errs...)
}

// ValidateTelegram checks what every command talking to the Bot API needs.
func (c Config) ValidateTelegram() error {
	if !c.usesSSM() && c.Telegram.Token == "" {
		return errors.New("telegram.token is required without params.prefix")
	}
	return nil
}

func (c Config) ValidateDashboard() error {
	var errs []error
	if c.Redis.URL == "" {
		errs = append(errs, errors.New("redis.url is required"))
	}
	if c.Dashboard.Addr == "" {
		errs = append(errs, errors.New("dashboard.addr is required"))
	}
	return errors.Join(errs...)
}
