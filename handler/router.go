package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"aimibot/internal/domain"
	"aimibot/internal/integrations/telegram"
	"aimibot/internal/usecase"
)

type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, markdown bool, buttons ...telegram.Button) error
	SendVoice(ctx context.Context, chatID int64, path string) error
	SendAction(ctx context.Context, chatID int64, action string) error
	SendInvoice(ctx context.Context, chatID int64, inv telegram.Invoice) error
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errorMessage string) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
	EditText(ctx context.Context, chatID int64, messageID int, text string) error
	CanInvoice() bool
}

type Accounts interface {
	Register(ctx context.Context, u domain.User) (usecase.Registration, error)
	CheckAccess(ctx context.Context, userID int64) (domain.User, error)
	Status(ctx context.Context, userID int64) (string, error)
}

type Chatter interface {
	Reply(ctx context.Context, in usecase.ReplyInput) (usecase.ReplyOutput, error)
}

type Payments interface {
	PreCheckout(payload string) (usecase.Plan, error)
	CompletePurchase(ctx context.Context, in usecase.PurchaseInput) (usecase.Plan, error)
}

type Voice interface {
	Synthesize(ctx context.Context, text string, userID int64, emotion domain.Emotion) (string, error)
}

// Router turns Telegram updates into bot replies.
type Router struct {
	bot            Messenger
	accounts       Accounts
	chat           Chatter
	payments       Payments
	voice          Voice
	defaultEmotion domain.Emotion
	logger         *slog.Logger
}

// NewRouter wires the bot flows. voice may be nil to reply with text only.
func NewRouter(bot Messenger, accounts Accounts, chat Chatter, payments Payments, voice Voice, defaultEmotion domain.Emotion, logger *slog.Logger) (*Router, error) {
	if bot == nil {
		return nil, errors.New("handler: messenger must not be nil")
	}
	if accounts == nil {
		return nil, errors.New("handler: accounts must not be nil")
	}
	if chat == nil {
		return nil, errors.New("handler: chat must not be nil")
	}
	if payments == nil {
		return nil, errors.New("handler: payments must not be nil")
	}
	if defaultEmotion == "" {
		defaultEmotion = domain.EmotionCarinhosa
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		bot:            bot,
		accounts:       accounts,
		chat:           chat,
		payments:       payments,
		voice:          voice,
		defaultEmotion: defaultEmotion,
		logger:         logger,
	}, nil
}

// Route handles one update. Errors are only returned for failures the
// user could not be told about.
func (r *Router) Route(ctx context.Context, u tgbotapi.Update) error {
	switch {
	case u.PreCheckoutQuery != nil:
		return r.preCheckout(ctx, u.PreCheckoutQuery)
	case u.CallbackQuery != nil:
		return r.callback(ctx, u.CallbackQuery)
	case u.Message != nil:
		return r.message(ctx, u.Message)
	default:
		r.logger.Debug("update ignored", "update_id", u.UpdateID)
		return nil
	}
}

func (r *Router) message(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil || m.Chat == nil {
		return nil
	}
	switch {
	case m.SuccessfulPayment != nil:
		return r.successfulPayment(ctx, m)
	case m.IsCommand():
		return r.command(ctx, m)
	case m.Sticker != nil:
		return r.bot.SendText(ctx, m.Chat.ID, msgSticker, false)
	case m.Text != "":
		return r.converse(ctx, m)
	default:
		return nil
	}
}

func (r *Router) command(ctx context.Context, m *tgbotapi.Message) error {
	cmd := m.Command()
	r.logger.Info("command received", "command", cmd, "user_id", m.From.ID)
	switch cmd {
	case "start":
		return r.start(ctx, m)
	case "ajuda", "help":
		return r.bot.SendText(ctx, m.Chat.ID, msgHelp, true)
	case "status":
		return r.status(ctx, m)
	case "planos":
		return r.plans(ctx, m.Chat.ID)
	default:
		return r.bot.SendText(ctx, m.Chat.ID, msgHelp, true)
	}
}

func (r *Router) start(ctx context.Context, m *tgbotapi.Message) error {
	reg, err := r.accounts.Register(ctx, domain.User{
		ID:        m.From.ID,
		FirstName: m.From.FirstName,
		Username:  m.From.UserName,
	})
	if err != nil {
		r.logger.Error("failed to register user", "user_id", m.From.ID, "err", err)
		return r.bot.SendText(ctx, m.Chat.ID, msgGenericError, false)
	}
	if err := r.bot.SendText(ctx, m.Chat.ID, reg.Welcome, false); err != nil {
		return err
	}
	r.speak(ctx, m.Chat.ID, m.From.ID, reg.Welcome, r.defaultEmotion)
	return r.bot.SendText(ctx, m.Chat.ID, msgStartFollowUp, false,
		telegram.Button{Text: btnStartTalking, Data: callbackStartConversation})
}

func (r *Router) status(ctx context.Context, m *tgbotapi.Message) error {
	text, err := r.accounts.Status(ctx, m.From.ID)
	switch {
	case usecase.Reason(err) == "not_registered":
		return r.bot.SendText(ctx, m.Chat.ID, msgStatusMissing, false)
	case err != nil:
		r.logger.Error("failed to load status", "user_id", m.From.ID, "err", err)
		return r.bot.SendText(ctx, m.Chat.ID, msgGenericError, false)
	}
	return r.bot.SendText(ctx, m.Chat.ID, text, true)
}

func (r *Router) plans(ctx context.Context, chatID int64) error {
	if !r.bot.CanInvoice() {
		return r.bot.SendText(ctx, chatID, msgPlansOffline, false)
	}
	if err := r.bot.SendText(ctx, chatID, msgPlansIntro, false); err != nil {
		return err
	}
	for _, p := range usecase.Plans() {
		err := r.bot.SendInvoice(ctx, chatID, telegram.Invoice{
			Title:          p.Title,
			Description:    p.Description,
			Payload:        p.Payload,
			Currency:       p.Currency,
			Amount:         p.Amount,
			StartParameter: invoiceStartParameter,
		})
		if err != nil {
			return fmt.Errorf("handler: send invoice %s: %w", p.Key, err)
		}
	}
	return nil
}

func (r *Router) callback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if err := r.bot.AnswerCallback(ctx, q.ID, ""); err != nil {
		r.logger.Warn("failed to answer callback", "err", err)
	}
	if q.Data != callbackStartConversation || q.Message == nil || q.Message.Chat == nil || q.From == nil {
		return nil
	}
	chatID := q.Message.Chat.ID
	if err := r.bot.EditText(ctx, chatID, q.Message.MessageID, msgReadyToTalk); err != nil {
		return err
	}
	r.speak(ctx, chatID, q.From.ID, msgReadyToTalk, domain.EmotionFofa)
	return nil
}

func (r *Router) converse(ctx context.Context, m *tgbotapi.Message) error {
	chatID, userID := m.Chat.ID, m.From.ID

	user, err := r.accounts.CheckAccess(ctx, userID)
	if err != nil {
		r.logger.Warn("access denied", "user_id", userID, "reason", usecase.Reason(err))
		return r.bot.SendText(ctx, chatID, replyForError(err), false)
	}

	if err := r.bot.SendAction(ctx, chatID, telegram.ActionTyping); err != nil {
		r.logger.Warn("failed to send typing action", "err", err)
	}

	out, err := r.chat.Reply(ctx, usecase.ReplyInput{UserID: userID, Text: m.Text, User: &user})
	if err != nil {
		r.logger.Error("failed to generate reply", "user_id", userID, "code", usecase.CodeOf(err), "reason", usecase.Reason(err), "err", err)
		return r.bot.SendText(ctx, chatID, replyForError(err), false)
	}

	if err := r.bot.SendText(ctx, chatID, out.Text, false); err != nil {
		return err
	}
	if r.voice != nil {
		if err := r.bot.SendAction(ctx, chatID, telegram.ActionRecordVoice); err != nil {
			r.logger.Warn("failed to send record action", "err", err)
		}
	}
	r.speak(ctx, chatID, userID, out.Text, out.Mood)
	return nil
}

// speak sends text as a voice note. Any failure leaves the text reply as
// the only answer.
func (r *Router) speak(ctx context.Context, chatID, userID int64, text string, e domain.Emotion) {
	if r.voice == nil {
		return
	}
	path, err := r.voice.Synthesize(ctx, text, userID, e)
	if err != nil {
		r.logger.Error("failed to synthesize voice", "user_id", userID, "err", err)
		return
	}
	if err := r.bot.SendVoice(ctx, chatID, path); err != nil {
		r.logger.Error("failed to send voice", "user_id", userID, "err", err)
	}
}

func (r *Router) preCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) error {
	if _, err := r.payments.PreCheckout(q.InvoicePayload); err != nil {
		r.logger.Warn("pre-checkout rejected", "payload", q.InvoicePayload)
		return r.bot.AnswerPreCheckout(ctx, q.ID, false, msgUnknownPlan)
	}
	return r.bot.AnswerPreCheckout(ctx, q.ID, true, "")
}

func (r *Router) successfulPayment(ctx context.Context, m *tgbotapi.Message) error {
	p := m.SuccessfulPayment
	chargeID := p.TelegramPaymentChargeID
	if chargeID == "" {
		chargeID = p.ProviderPaymentChargeID
	}
	name := m.From.FirstName
	if m.From.UserName != "" {
		name = "@" + m.From.UserName
	}

	plan, err := r.payments.CompletePurchase(ctx, usecase.PurchaseInput{
		UserID:   m.From.ID,
		UserName: name,
		Payload:  p.InvoicePayload,
		Currency: p.Currency,
		Amount:   p.TotalAmount,
		ChargeID: chargeID,
	})
	switch {
	case usecase.CodeOf(err) == usecase.ErrorUnknownPlan:
		return r.bot.SendText(ctx, m.Chat.ID, msgPaymentNoPlan, false)
	case err != nil:
		r.logger.Error("failed to activate plan", "user_id", m.From.ID, "err", err)
		return r.bot.SendText(ctx, m.Chat.ID, msgPaymentFailed, false)
	}
	return r.bot.SendText(ctx, m.Chat.ID, fmt.Sprintf(msgPlanConfirmed, plan.Title), true)
}

func replyForError(err error) string {
	switch usecase.CodeOf(err) {
	case usecase.ErrorAccessDenied:
		if usecase.Reason(err) == "not_registered" {
			return msgNotRegistered
		}
		return msgTrialExpired
	case usecase.ErrorInvalidInput:
		if usecase.Reason(err) == "message_too_long" {
			return msgTooLong
		}
		return msgGenericError
	case usecase.ErrorInvalidQuestion:
		return msgNSFWNotAllowed
	case usecase.ErrorRateLimited:
		return msgRateLimited
	case usecase.ErrorUpstream:
		if usecase.Reason(err) == "empty_reply" {
			return msgEmptyReply
		}
		return msgLLMConfused
	default:
		return msgGenericError
	}
}
