package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/openai/openai-go/option"

	"aimibot/handler"
	"aimibot/internal/cache"
	"aimibot/internal/dashboard"
	"aimibot/internal/emotion"
	"aimibot/internal/history"
	"aimibot/internal/integrations/openai"
	"aimibot/internal/integrations/paramstore"
	"aimibot/internal/integrations/speech"
	"aimibot/internal/integrations/telegram"
	"aimibot/internal/persona"
	"aimibot/internal/repository"
	"aimibot/internal/usecase"
	"aimibot/internal/voice"
)

// staticPrefix namespaces secrets that come from plain config.
const staticPrefix = "/aimibot"

type app struct {
	cfg     Config
	logger  *slog.Logger
	cache   *cache.Client
	bot     *telegram.Client
	router  *handler.Router
	secrets paramstore.Secrets
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
}

// secretSource returns where secrets are read from and the prefix they
// live under.
func secretSource(ctx context.Context, cfg Config) (paramstore.Getter, string, error) {
	if cfg.usesSSM() {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, "", fmt.Errorf("load AWS config: %w", err)
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			return nil, "", err
		}
		return ps, cfg.Params.Prefix, nil
	}

	openAIToken, err := json.Marshal(map[string]string{"token": cfg.OpenAI.APIKey})
	if err != nil {
		return nil, "", err
	}
	static := paramstore.Static{
		paramstore.Name(staticPrefix, paramstore.TelegramTokenParam): cfg.Telegram.Token,
		paramstore.Name(staticPrefix, paramstore.OpenAITokenParam):   string(openAIToken),
	}
	if cfg.Telegram.PaymentProviderToken != "" {
		static[paramstore.Name(staticPrefix, paramstore.PaymentTokenParam)] = cfg.Telegram.PaymentProviderToken
	}
	if cfg.Telegram.WebhookSecret != "" {
		static[paramstore.Name(staticPrefix, paramstore.WebhookSecretParam)] = cfg.Telegram.WebhookSecret
	}
	return static, staticPrefix, nil
}

func newBot(cfg Config, secrets paramstore.Secrets) (*telegram.Client, error) {
	return telegram.New(secrets.TelegramToken, cfg.Telegram.Endpoint, nil,
		telegram.WithProviderToken(secrets.PaymentProviderToken))
}

func loadPersona(cfg Config) (*persona.Persona, error) {
	if cfg.Persona.File == "" {
		return persona.Default(), nil
	}
	return persona.LoadFile(cfg.Persona.File)
}

// buildApp wires every component the bot needs to answer updates.
func buildApp(ctx context.Context, cfg Config, logger *slog.Logger) (*app, error) {
	getter, prefix, err := secretSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	secrets, err := paramstore.LoadSecrets(ctx, getter, prefix)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, secrets: secrets}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	// ---- Redis ----
	a.cache, err = cache.NewFromURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	if err := a.cache.Ping(ctx); err != nil {
		return nil, err
	}

	// ---- Persona, emotion, history ----
	p, err := loadPersona(cfg)
	if err != nil {
		return nil, err
	}
	table, err := p.TriggerTable()
	if err != nil {
		return nil, err
	}
	tracker, err := emotion.NewTracker(a.cache, table, emotion.Config{Default: p.DefaultEmotion, TTL: cfg.Persona.EmotionTTL}, logger)
	if err != nil {
		return nil, err
	}
	buffer, err := history.NewBuffer(a.cache, history.Config{MaxTurns: cfg.Persona.HistoryTurns, TTL: cfg.Persona.HistoryTTL}, logger)
	if err != nil {
		return nil, err
	}

	// ---- OpenAI ----
	var llmOpts []openai.Option
	if cfg.OpenAI.BaseURL != "" {
		llmOpts = append(llmOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	llm, err := openai.NewClient(getter, prefix, llmOpts...)
	if err != nil {
		return nil, err
	}

	// ---- DynamoDB ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	dynamo := awsdynamodb.NewFromConfig(awsCfg, func(o *awsdynamodb.Options) {
		if cfg.DynamoDB.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
		}
	})
	users, err := repository.New(dynamo, cfg.DynamoDB.Table)
	if err != nil {
		return nil, err
	}

	// ---- Use cases ----
	accounts, err := usecase.NewAccountService(users, usecase.AccountConfig{
		TrialEnabled:  cfg.Access.TrialEnabled,
		TrialDuration: cfg.Access.TrialDuration,
		PlanDuration:  cfg.Access.PlanDuration,
	}, logger)
	if err != nil {
		return nil, err
	}
	sales, err := dashboard.NewPublisher(a.cache)
	if err != nil {
		return nil, err
	}
	payments, err := usecase.NewPaymentService(users, sales, cfg.Access.PlanDuration, logger)
	if err != nil {
		return nil, err
	}
	chat, err := usecase.NewChatService(llm, tracker, buffer, p, accounts, usecase.ChatConfig{
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		TopP:        cfg.OpenAI.TopP,
		MaxInputLen: cfg.Access.MaxInputLength,
		Moderation:  cfg.OpenAI.Moderation,
		NSFWGlobal:  cfg.Access.NSFWGlobal,
	}, logger)
	if err != nil {
		return nil, err
	}

	// ---- Voice ----
	var v handler.Voice
	if cfg.Voice.Enabled {
		var speechOpts []option.RequestOption
		if cfg.OpenAI.BaseURL != "" {
			speechOpts = append(speechOpts, option.WithBaseURL(cfg.OpenAI.BaseURL))
		}
		tts, err := speech.NewClient(llm.APIKey, cfg.OpenAI.SpeechModel, speechOpts...)
		if err != nil {
			return nil, err
		}
		synth, err := voice.NewSynthesizer(a.cache, tts, nil, voice.Config{
			Dir:        cfg.Voice.Dir,
			Lang:       cfg.Voice.Lang,
			TTL:        cfg.Voice.TTL,
			FFmpegPath: cfg.Voice.FFmpeg,
		}, logger)
		if err != nil {
			return nil, err
		}
		v = synth
	}

	// ---- Telegram ----
	a.bot, err = newBot(cfg, secrets)
	if err != nil {
		return nil, err
	}
	a.router, err = handler.NewRouter(a.bot, accounts, chat, payments, v, p.DefaultEmotion, logger)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}
