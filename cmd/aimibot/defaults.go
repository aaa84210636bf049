package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	// Secrets: SSM when params.prefix is set, plain config otherwise.
	viper.SetDefault("params.prefix", "")

	viper.SetDefault("telegram.token", "")
	viper.SetDefault("telegram.endpoint", "")
	viper.SetDefault("telegram.webhook_url", "")
	viper.SetDefault("telegram.webhook_secret", "")
	viper.SetDefault("telegram.payment_provider_token", "")
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)
	viper.SetDefault("telegram.max_concurrency", 4)
	viper.SetDefault("telegram.update_timeout", 2*time.Minute)

	viper.SetDefault("openai.base_url", "")
	viper.SetDefault("openai.api_key", "")
	viper.SetDefault("openai.model", "gpt-4o-mini")
	viper.SetDefault("openai.max_tokens", 150)
	viper.SetDefault("openai.temperature", 0.8)
	viper.SetDefault("openai.top_p", 0.95)
	viper.SetDefault("openai.moderation", true)
	viper.SetDefault("openai.speech_model", "tts-1")

	viper.SetDefault("redis.url", "redis://localhost:6379/0")

	viper.SetDefault("dynamodb.table", "aimibot")
	viper.SetDefault("dynamodb.endpoint", "")

	viper.SetDefault("persona.file", "")
	viper.SetDefault("emotion.ttl", 2*time.Hour)
	viper.SetDefault("history.max_turns", 4)
	viper.SetDefault("history.ttl", time.Hour)

	viper.SetDefault("voice.enabled", true)
	viper.SetDefault("voice.dir", "/tmp/aimibot/voice")
	viper.SetDefault("voice.lang", "pt-br")
	viper.SetDefault("voice.ttl", 7*24*time.Hour)
	viper.SetDefault("voice.ffmpeg", "ffmpeg")

	viper.SetDefault("access.trial_enabled", true)
	viper.SetDefault("access.trial_duration", 5*time.Minute)
	viper.SetDefault("access.plan_duration", 30*24*time.Hour)
	viper.SetDefault("access.nsfw_global", false)
	viper.SetDefault("access.max_input_length", 1000)

	viper.SetDefault("dashboard.addr", ":8000")
	viper.SetDefault("dashboard.allowed_origins", []string{})
}
