package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"aimibot/internal/domain"
)

const (
	defaultMaxInputLen = 1000
	defaultMaxTokens   = 150
	defaultTemperature = 0.8
	defaultTopP        = 0.95
)

var defaultStop = []string{"Usuário:", "\n"}

// now is swapped in tests.
var now = time.Now

type LLMClient interface {
	Chat(ctx context.Context, req domain.CompletionRequest) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type EmotionTracker interface {
	Current(ctx context.Context, userID int64) domain.Emotion
	Update(ctx context.Context, userID int64, userText, assistantText string) domain.Emotion
}

type HistoryBuffer interface {
	Read(ctx context.Context, userID int64) string
	Append(ctx context.Context, userID int64, userText, assistantText string)
}

type PromptBuilder interface {
	BuildMessages(e domain.Emotion, history, userText string) []domain.ChatMessage
}

type AccessChecker interface {
	CheckAccess(ctx context.Context, userID int64) (domain.User, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type ChatConfig struct {
	Model       string
	MaxTokens   int
	Temperature float64
	TopP        float64
	Stop        []string
	MaxInputLen int
	// Moderation runs every message through the moderation endpoint first.
	Moderation bool
	// NSFWGlobal lets nsfw_plus subscribers past flagged messages.
	NSFWGlobal bool
}

// ChatService produces one persona reply per user message.
type ChatService struct {
	llm     LLMClient
	emotion EmotionTracker
	history HistoryBuffer
	prompt  PromptBuilder
	access  AccessChecker
	cfg     ChatConfig
	logger  *slog.Logger
}

type ReplyInput struct {
	UserID int64
	Text   string
	// User skips the access check when the caller already ran it.
	User *domain.User
}

type ReplyOutput struct {
	Text string
	// Mood is the emotion the reply was written in.
	Mood domain.Emotion
	// Next is the emotion after scoring the user's message.
	Next domain.Emotion
}

func NewChatService(llm LLMClient, tracker EmotionTracker, history HistoryBuffer, prompt PromptBuilder, access AccessChecker, cfg ChatConfig, logger *slog.Logger) (*ChatService, error) {
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if tracker == nil {
		return nil, errors.New("usecase: emotion tracker must not be nil")
	}
	if history == nil {
		return nil, errors.New("usecase: history buffer must not be nil")
	}
	if prompt == nil {
		return nil, errors.New("usecase: prompt builder must not be nil")
	}
	if access == nil {
		return nil, errors.New("usecase: access checker must not be nil")
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.TopP <= 0 {
		cfg.TopP = defaultTopP
	}
	if cfg.Stop == nil {
		cfg.Stop = defaultStop
	}
	if cfg.MaxInputLen <= 0 {
		cfg.MaxInputLen = defaultMaxInputLen
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatService{
		llm:     llm,
		emotion: tracker,
		history: history,
		prompt:  prompt,
		access:  access,
		cfg:     cfg,
		logger:  logger,
	}, nil
}

func (s *ChatService) Reply(ctx context.Context, in ReplyInput) (ReplyOutput, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return ReplyOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if utf8.RuneCountInString(text) > s.cfg.MaxInputLen {
		return ReplyOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}

	var user domain.User
	if in.User != nil {
		user = *in.User
	} else {
		u, err := s.access.CheckAccess(ctx, in.UserID)
		if err != nil {
			return ReplyOutput{}, err
		}
		user = u
	}

	if s.cfg.Moderation {
		flagged, err := s.llm.Moderate(ctx, text)
		if err != nil {
			if status, ok := upstreamStatusCode(err); ok && status == 429 {
				return ReplyOutput{}, newError(ErrorRateLimited, "moderation_rate_limited", err)
			}
			return ReplyOutput{}, newError(ErrorUpstream, "moderation_error", err)
		}
		if flagged && !s.nsfwAllowed(user) {
			s.logger.Info("message blocked by moderation", "user_id", in.UserID)
			return ReplyOutput{}, newError(ErrorInvalidQuestion, "nsfw_not_allowed", nil)
		}
	}

	mood := s.emotion.Current(ctx, in.UserID)
	history := s.history.Read(ctx, in.UserID)

	raw, err := s.llm.Chat(ctx, domain.CompletionRequest{
		Model:       s.cfg.Model,
		Messages:    s.prompt.BuildMessages(mood, history, text),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
		TopP:        s.cfg.TopP,
		Stop:        s.cfg.Stop,
	})
	if err != nil {
		if status, ok := upstreamStatusCode(err); ok && status == 429 {
			return ReplyOutput{}, newError(ErrorRateLimited, "openai_rate_limited", err)
		}
		return ReplyOutput{}, newError(ErrorUpstream, "openai_error", err)
	}

	answer := cleanReply(raw)
	if answer == "" {
		return ReplyOutput{}, newError(ErrorUpstream, "empty_reply", nil)
	}

	s.history.Append(ctx, in.UserID, text, answer)
	next := s.emotion.Update(ctx, in.UserID, text, answer)
	s.logger.Info("reply generated", "user_id", in.UserID, "mood", mood, "next", next)

	return ReplyOutput{Text: answer, Mood: mood, Next: next}, nil
}

func (s *ChatService) nsfwAllowed(u domain.User) bool {
	return s.cfg.NSFWGlobal && u.CurrentPlan == domain.PlanNSFWPlus && u.HasPaidPlan(now())
}

// cleanReply drops anything the model wrote past its own turn and a leading
// speaker tag.
func cleanReply(raw string) string {
	out := raw
	if i := strings.Index(out, "Usuário:"); i >= 0 {
		out = out[:i]
	}
	out = strings.TrimSpace(out)
	out = strings.TrimSpace(strings.TrimPrefix(out, "Aimi:"))
	return out
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

var newUUID = func() string {
	return uuid.NewString()
}
