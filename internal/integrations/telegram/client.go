package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	ActionTyping      = tgbotapi.ChatTyping
	ActionRecordVoice = tgbotapi.ChatRecordVoice
)

// botAPI is the subset of *tgbotapi.BotAPI used by Client.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Invoice describes one Telegram payment invoice.
type Invoice struct {
	Title          string
	Description    string
	Payload        string
	Currency       string
	Amount         int // minor units
	StartParameter string
}

// Client sends bot messages through the Telegram Bot API.
type Client struct {
	api           botAPI
	providerToken string
}

type Option func(*Client)

// WithProviderToken sets the payment provider token used for invoices.
func WithProviderToken(token string) Option {
	return func(c *Client) {
		c.providerToken = strings.TrimSpace(token)
	}
}

// New connects to the Bot API with token. endpoint may be empty for the
// public API; otherwise it must follow tgbotapi.APIEndpoint's format.
func New(token, endpoint string, httpClient *http.Client, opts ...Option) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("telegram: token must not be empty")
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 70 * time.Second}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	return newClient(bot, opts...)
}

func newClient(api botAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, errors.New("telegram: bot api must not be nil")
	}
	c := &Client{api: api}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CanInvoice reports whether a payment provider token is configured.
func (c *Client) CanInvoice() bool {
	return c.providerToken != ""
}

// SendText sends a text message. markdown enables Telegram's legacy
// Markdown parse mode; buttons become a one-row inline keyboard.
func (c *Client) SendText(_ context.Context, chatID int64, text string, markdown bool, buttons ...Button) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	if len(buttons) > 0 {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons))
		for _, b := range buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(row)
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: SendText: %w", err)
	}
	return nil
}

// SendVoice uploads a local audio file as a voice note.
func (c *Client) SendVoice(_ context.Context, chatID int64, path string) error {
	if _, err := c.api.Send(tgbotapi.NewVoice(chatID, tgbotapi.FilePath(path))); err != nil {
		return fmt.Errorf("telegram: SendVoice: %w", err)
	}
	return nil
}

func (c *Client) SendAction(_ context.Context, chatID int64, action string) error {
	if _, err := c.api.Request(tgbotapi.NewChatAction(chatID, action)); err != nil {
		return fmt.Errorf("telegram: SendAction %s: %w", action, err)
	}
	return nil
}

func (c *Client) SendInvoice(_ context.Context, chatID int64, inv Invoice) error {
	if !c.CanInvoice() {
		return errors.New("telegram: SendInvoice: payment provider token is not configured")
	}
	cfg := tgbotapi.NewInvoice(chatID, inv.Title, inv.Description, inv.Payload, c.providerToken,
		inv.StartParameter, inv.Currency, []tgbotapi.LabeledPrice{{Label: inv.Title, Amount: inv.Amount}})
	cfg.SuggestedTipAmounts = []int{}
	if _, err := c.api.Send(cfg); err != nil {
		return fmt.Errorf("telegram: SendInvoice %s: %w", inv.Payload, err)
	}
	return nil
}

// AnswerPreCheckout approves or rejects a pending checkout. errorMessage is
// shown to the user on rejection.
func (c *Client) AnswerPreCheckout(_ context.Context, queryID string, ok bool, errorMessage string) error {
	cfg := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: queryID, OK: ok}
	if !ok {
		cfg.ErrorMessage = errorMessage
	}
	if _, err := c.api.Request(cfg); err != nil {
		return fmt.Errorf("telegram: AnswerPreCheckout: %w", err)
	}
	return nil
}

func (c *Client) AnswerCallback(_ context.Context, callbackID, text string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram: AnswerCallback: %w", err)
	}
	return nil
}

func (c *Client) EditText(_ context.Context, chatID int64, messageID int, text string) error {
	if _, err := c.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		return fmt.Errorf("telegram: EditText: %w", err)
	}
	return nil
}

// SetWebhook registers url as the update endpoint. A non-empty secret is
// echoed back by Telegram in the X-Telegram-Bot-Api-Secret-Token header.
func (c *Client) SetWebhook(_ context.Context, url, secret string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return errors.New("telegram: SetWebhook: url must not be empty")
	}
	params := tgbotapi.Params{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	if _, err := c.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("telegram: SetWebhook: %w", err)
	}
	return nil
}

// DeleteWebhook switches the bot back to getUpdates delivery.
func (c *Client) DeleteWebhook(_ context.Context) error {
	if _, err := c.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return fmt.Errorf("telegram: DeleteWebhook: %w", err)
	}
	return nil
}

// Updates long-polls for updates until ctx is done, then closes the channel.
func (c *Client) Updates(ctx context.Context, timeoutSeconds int) <-chan tgbotapi.Update {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	in := c.api.GetUpdatesChan(cfg)

	out := make(chan tgbotapi.Update)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- u:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
