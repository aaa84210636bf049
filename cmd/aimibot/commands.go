package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"aimibot/handler"
	"aimibot/internal/cache"
	"aimibot/internal/dashboard"
	"aimibot/internal/integrations/paramstore"
)

// setup loads config, installs the default logger and validates the
// command's requirements.
func setup(validate func(Config) error) (Config, *slog.Logger, error) {
	cfg := loadConfig()
	logger, err := newLogger(os.Stderr, cfg.Logging)
	if err != nil {
		return Config{}, nil, err
	}
	slog.SetDefault(logger)
	if err := validate(cfg); err != nil {
		return Config{}, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger, nil
}

func newLambdaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve Telegram webhook calls behind API Gateway",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(Config.ValidateBot)
			if err != nil {
				return err
			}
			a, err := buildApp(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("failed to build app", "err", err)
				return err
			}
			defer a.Close()

			h, err := handler.NewHandler(a.router, a.secrets.WebhookSecret, logger)
			if err != nil {
				return err
			}
			if a.secrets.WebhookSecret == "" {
				logger.Warn("webhook secret not configured; requests are not authenticated")
			}
			lambda.Start(h.Handle)
			return nil
		},
	}
}

func newPollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "poll",
		Short: "Run the bot with long polling",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(Config.ValidateBot)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to build app", "err", err)
				return err
			}
			defer a.Close()

			if err := a.bot.DeleteWebhook(ctx); err != nil {
				return err
			}
			return runPolling(ctx, a, cfg.Telegram, logger)
		},
	}
}

func runPolling(ctx context.Context, a *app, cfg TelegramConfig, logger *slog.Logger) error {
	maxConc := cfg.MaxConcurrency
	if maxConc <= 0 {
		maxConc = 4
	}
	timeout := cfg.UpdateTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	sem := make(chan struct{}, maxConc)
	var wg sync.WaitGroup

	logger.Info("polling for updates", "max_concurrency", maxConc)
	for u := range a.bot.Updates(ctx, int(cfg.PollTimeout/time.Second)) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}
		wg.Add(1)
		go func(u tgbotapi.Update) {
			defer wg.Done()
			defer func() { <-sem }()
			// In-flight updates finish even after a shutdown signal.
			uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
			defer cancel()
			if err := a.router.Route(uctx, u); err != nil {
				logger.Error("failed to route update", "update_id", u.UpdateID, "err", err)
			}
		}(u)
	}
	wg.Wait()
	logger.Info("polling stopped")
	return nil
}

func newSetWebhookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Point Telegram at the webhook URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(Config.ValidateTelegram)
			if err != nil {
				return err
			}
			url, _ := cmd.Flags().GetString("url")
			if !cmd.Flags().Changed("url") {
				url = cfg.Telegram.WebhookURL
			}
			if url == "" {
				return errors.New("webhook url is required (--url or telegram.webhook_url)")
			}

			ctx := cmd.Context()
			getter, prefix, err := secretSource(ctx, cfg)
			if err != nil {
				return err
			}
			secrets, err := paramstore.LoadSecrets(ctx, getter, prefix)
			if err != nil {
				return err
			}
			bot, err := newBot(cfg, secrets)
			if err != nil {
				return err
			}
			if err := bot.SetWebhook(ctx, url, secrets.WebhookSecret); err != nil {
				return err
			}
			logger.Info("webhook registered", "url", url, "secret", secrets.WebhookSecret != "")
			return nil
		},
	}
	cmd.Flags().String("url", "", "Public HTTPS URL of the webhook.")
	return cmd
}

func newDashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Serve the live sales dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(Config.ValidateDashboard)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rc, err := cache.NewFromURL(cfg.Redis.URL)
			if err != nil {
				return err
			}
			defer rc.Close()

			hub := dashboard.NewHub(logger)
			srv, err := dashboard.NewServer(hub, cfg.Dashboard.AllowedOrigins, logger)
			if err != nil {
				return err
			}
			return serveDashboard(ctx, cfg.Dashboard.Addr, hub, srv, rc, logger)
		},
	}
}

func serveDashboard(ctx context.Context, addr string, hub *dashboard.Hub, srv *dashboard.Server, rc *cache.Client, logger *slog.Logger) error {
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		if err := hub.Run(ctx, rc); err != nil {
			errCh <- fmt.Errorf("sales feed: %w", err)
		}
	}()
	go func() {
		logger.Info("dashboard listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("dashboard shutdown", "err", err)
	}
	return runErr
}
