package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"aimibot/internal/integrations/paramstore"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	initViperDefaults()
	t.Cleanup(viper.Reset)
}

func TestLoadConfig_Defaults(t *testing.T) {
	resetViper(t)
	cfg := loadConfig()

	require.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	require.Equal(t, 150, cfg.OpenAI.MaxTokens)
	require.Equal(t, 0.8, cfg.OpenAI.Temperature)
	require.Equal(t, 0.95, cfg.OpenAI.TopP)
	require.Equal(t, 2*time.Hour, cfg.Persona.EmotionTTL)
	require.Equal(t, 4, cfg.Persona.HistoryTurns)
	require.Equal(t, time.Hour, cfg.Persona.HistoryTTL)
	require.Equal(t, 5*time.Minute, cfg.Access.TrialDuration)
	require.Equal(t, 30*24*time.Hour, cfg.Access.PlanDuration)
	require.Equal(t, 7*24*time.Hour, cfg.Voice.TTL)
	require.Equal(t, "pt-br", cfg.Voice.Lang)
	require.True(t, cfg.Access.TrialEnabled)
	require.False(t, cfg.Access.NSFWGlobal)
	require.Equal(t, ":8000", cfg.Dashboard.Addr)
}

func TestLoadConfig_EnvAndFile(t *testing.T) {
	resetViper(t)
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(envKeyReplacer())
	viper.AutomaticEnv()
	t.Setenv("AIMI_TELEGRAM_TOKEN", "123:abc")
	t.Setenv("AIMI_HISTORY_MAX_TURNS", "6")

	path := filepath.Join(t.TempDir(), "aimibot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("openai:\n  model: gpt-4o\naccess:\n  nsfw_global: true\n  trial_duration: 10m\n"), 0o600))
	viper.SetConfigFile(path)
	require.NoError(t, viper.ReadInConfig())

	cfg := loadConfig()
	require.Equal(t, "123:abc", cfg.Telegram.Token)
	require.Equal(t, 6, cfg.Persona.HistoryTurns)
	require.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	require.True(t, cfg.Access.NSFWGlobal)
	require.Equal(t, 10*time.Minute, cfg.Access.TrialDuration)
}

func validBotConfig() Config {
	return Config{
		Telegram: TelegramConfig{Token: "123:abc"},
		OpenAI:   OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
		Redis:    RedisConfig{URL: "redis://localhost:6379/0"},
		DynamoDB: DynamoDBConfig{Table: "aimibot"},
		Voice:    VoiceConfig{Enabled: true, Dir: "/tmp/voice"},
	}
}

func TestValidateBot(t *testing.T) {
	require.NoError(t, validBotConfig().ValidateBot())

	cfg := validBotConfig()
	cfg.Telegram.Token = ""
	cfg.OpenAI.APIKey = ""
	cfg.Redis.URL = ""
	cfg.Voice.Dir = ""
	err := cfg.ValidateBot()
	require.Error(t, err)
	require.Contains(t, err.Error(), "telegram.token")
	require.Contains(t, err.Error(), "openai.api_key")
	require.Contains(t, err.Error(), "redis.url")
	require.Contains(t, err.Error(), "voice.dir")

	cfg = validBotConfig()
	cfg.Telegram.Token = ""
	cfg.OpenAI.APIKey = ""
	cfg.Params.Prefix = "/aimibot/prod"
	require.NoError(t, cfg.ValidateBot())

	cfg = validBotConfig()
	cfg.DynamoDB.Table = ""
	cfg.Telegram.MaxConcurrency = -1
	err = cfg.ValidateBot()
	require.Contains(t, err.Error(), "dynamodb.table")
	require.Contains(t, err.Error(), "max_concurrency")
}

func TestValidateDashboard(t *testing.T) {
	require.NoError(t, Config{Redis: RedisConfig{URL: "redis://x"}, Dashboard: DashboardConfig{Addr: ":8000"}}.ValidateDashboard())
	err := Config{}.ValidateDashboard()
	require.Contains(t, err.Error(), "redis.url")
	require.Contains(t, err.Error(), "dashboard.addr")
}

func TestSecretSource_StaticConfig(t *testing.T) {
	cfg := validBotConfig()
	cfg.Telegram.PaymentProviderToken = "pay"
	cfg.Telegram.WebhookSecret = "hook"

	getter, prefix, err := secretSource(context.Background(), cfg)
	require.NoError(t, err)
	require.Equal(t, "/aimibot", prefix)

	secrets, err := paramstore.LoadSecrets(context.Background(), getter, prefix)
	require.NoError(t, err)
	require.Equal(t, paramstore.Secrets{TelegramToken: "123:abc", PaymentProviderToken: "pay", WebhookSecret: "hook"}, secrets)

	raw, err := getter.GetParameter(context.Background(), "/aimibot/open-ai-token")
	require.NoError(t, err)
	require.JSONEq(t, `{"token":"sk-test"}`, raw)
}

func TestLoadPersona(t *testing.T) {
	p, err := loadPersona(Config{})
	require.NoError(t, err)
	require.NotNil(t, p)

	_, err = loadPersona(Config{Persona: PersonaConfig{File: filepath.Join(t.TempDir(), "missing.yaml")}})
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, loggerConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "user_id", 1)
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)

	_, err = newLogger(&buf, loggerConfig{Format: "xml"})
	require.Error(t, err)
	_, err = newLogger(&buf, loggerConfig{Level: "loud"})
	require.Error(t, err)

	logger, err = newLogger(&buf, loggerConfig{})
	require.NoError(t, err)
	require.NotNil(t, logger)
}
