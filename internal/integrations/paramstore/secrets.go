package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	TelegramTokenParam = "telegram-token"
	PaymentTokenParam  = "payment-provider-token"
	WebhookSecretParam = "webhook-secret"
	OpenAITokenParam   = "open-ai-token"
)

// Secrets are the credentials the bot needs at startup.
type Secrets struct {
	TelegramToken        string
	PaymentProviderToken string
	WebhookSecret        string
}

// LoadSecrets reads the bot credentials under prefix. The Telegram token is
// required; the payment token and webhook secret may be absent, in which
// case invoices and webhook verification are disabled by the caller.
func LoadSecrets(ctx context.Context, g Getter, prefix string) (Secrets, error) {
	if g == nil {
		return Secrets{}, errors.New("paramstore: getter must not be nil")
	}
	var s Secrets
	token, err := g.GetParameter(ctx, Name(prefix, TelegramTokenParam))
	if err != nil {
		return Secrets{}, fmt.Errorf("paramstore: load telegram token: %w", err)
	}
	s.TelegramToken = strings.TrimSpace(token)
	if s.TelegramToken == "" {
		return Secrets{}, errors.New("paramstore: telegram token is empty")
	}
	if v, err := g.GetParameter(ctx, Name(prefix, PaymentTokenParam)); err == nil {
		s.PaymentProviderToken = strings.TrimSpace(v)
	}
	if v, err := g.GetParameter(ctx, Name(prefix, WebhookSecretParam)); err == nil {
		s.WebhookSecret = strings.TrimSpace(v)
	}
	return s, nil
}
