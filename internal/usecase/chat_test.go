package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aimibot/internal/domain"
	"aimibot/internal/integrations/openai"
	"aimibot/internal/persona"
)

type mockLLM struct {
	answer   string
	err      error
	flagged  bool
	modErr   error
	requests []domain.CompletionRequest
	moderate int
}

func (m *mockLLM) Chat(_ context.Context, req domain.CompletionRequest) (string, error) {
	m.requests = append(m.requests, req)
	return m.answer, m.err
}

func (m *mockLLM) Moderate(_ context.Context, _ string) (bool, error) {
	m.moderate++
	return m.flagged, m.modErr
}

type mockTracker struct {
	current domain.Emotion
	next    domain.Emotion
	updated []string
}

func (m *mockTracker) Current(_ context.Context, _ int64) domain.Emotion {
	return m.current
}

func (m *mockTracker) Update(_ context.Context, _ int64, userText, _ string) domain.Emotion {
	m.updated = append(m.updated, userText)
	if m.next == "" {
		return m.current
	}
	return m.next
}

type mockHistory struct {
	text     string
	appended [][2]string
}

func (m *mockHistory) Read(_ context.Context, _ int64) string {
	return m.text
}

func (m *mockHistory) Append(_ context.Context, _ int64, userText, assistantText string) {
	m.appended = append(m.appended, [2]string{userText, assistantText})
}

type mockAccess struct {
	user domain.User
	err  error
}

func (m *mockAccess) CheckAccess(_ context.Context, _ int64) (domain.User, error) {
	return m.user, m.err
}

type chatDeps struct {
	llm     *mockLLM
	tracker *mockTracker
	history *mockHistory
	access  *mockAccess
}

func newChatDeps(answer string) *chatDeps {
	return &chatDeps{
		llm:     &mockLLM{answer: answer},
		tracker: &mockTracker{current: domain.EmotionCarinhosa},
		history: &mockHistory{},
		access:  &mockAccess{user: domain.User{ID: 1, CurrentPlan: domain.PlanFree}},
	}
}

func newTestChat(t *testing.T, d *chatDeps, cfg ChatConfig) *ChatService {
	t.Helper()
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	svc, err := NewChatService(d.llm, d.tracker, d.history, persona.Default(), d.access, cfg, nil)
	require.NoError(t, err)
	return svc
}

func TestNewChatService_ValidatesDependencies(t *testing.T) {
	d := newChatDeps("")
	p := persona.Default()
	cfg := ChatConfig{Model: "gpt-4o-mini"}

	_, err := NewChatService(nil, d.tracker, d.history, p, d.access, cfg, nil)
	require.Error(t, err)
	_, err = NewChatService(d.llm, nil, d.history, p, d.access, cfg, nil)
	require.Error(t, err)
	_, err = NewChatService(d.llm, d.tracker, nil, p, d.access, cfg, nil)
	require.Error(t, err)
	_, err = NewChatService(d.llm, d.tracker, d.history, nil, d.access, cfg, nil)
	require.Error(t, err)
	_, err = NewChatService(d.llm, d.tracker, d.history, p, nil, cfg, nil)
	require.Error(t, err)
	_, err = NewChatService(d.llm, d.tracker, d.history, p, d.access, ChatConfig{Model: " "}, nil)
	require.Error(t, err)
}

func TestReply_HappyPath(t *testing.T) {
	d := newChatDeps("Aimi: Oiê, senpai! Senti sua falta 🥰")
	d.tracker.next = domain.EmotionProvocante
	d.history.text = "Usuário: oi\nAimi: oi oi"
	svc := newTestChat(t, d, ChatConfig{})

	out, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "  você é gostosa  "})
	require.NoError(t, err)
	require.Equal(t, "Oiê, senpai! Senti sua falta 🥰", out.Text)
	require.Equal(t, domain.EmotionCarinhosa, out.Mood)
	require.Equal(t, domain.EmotionProvocante, out.Next)

	require.Equal(t, [][2]string{{"você é gostosa", "Oiê, senpai! Senti sua falta 🥰"}}, d.history.appended)
	require.Equal(t, []string{"você é gostosa"}, d.tracker.updated)
	require.Zero(t, d.llm.moderate)

	require.Len(t, d.llm.requests, 1)
	req := d.llm.requests[0]
	require.Equal(t, "gpt-4o-mini", req.Model)
	require.Equal(t, 150, req.MaxTokens)
	require.Equal(t, 0.8, req.Temperature)
	require.Equal(t, 0.95, req.TopP)
	require.Equal(t, []string{"Usuário:", "\n"}, req.Stop)

	require.Len(t, req.Messages, 3)
	require.Equal(t, "system", req.Messages[0].Role)
	require.Contains(t, req.Messages[0].Content, "carinhosa")
	require.Equal(t, "Conversa recente:\nUsuário: oi\nAimi: oi oi", req.Messages[1].Content)
	require.Equal(t, domain.ChatMessage{Role: "user", Content: "você é gostosa"}, req.Messages[2])
}

func TestReply_NoHistorySkipsContextMessage(t *testing.T) {
	d := newChatDeps("Oi!")
	svc := newTestChat(t, d, ChatConfig{})

	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	require.NoError(t, err)
	require.Len(t, d.llm.requests[0].Messages, 2)
}

func TestReply_ValidationErrors(t *testing.T) {
	d := newChatDeps("x")
	svc := newTestChat(t, d, ChatConfig{MaxInputLen: 5})

	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "   "})
	expectUsecaseError(t, err, ErrorInvalidInput, "empty_message")

	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "ééééé"})
	require.NoError(t, err)

	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: strings.Repeat("a", 6)})
	expectUsecaseError(t, err, ErrorInvalidInput, "message_too_long")
}

func TestReply_AccessDeniedPassesThrough(t *testing.T) {
	d := newChatDeps("x")
	d.access.err = newError(ErrorAccessDenied, "trial_expired", nil)
	svc := newTestChat(t, d, ChatConfig{})

	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	expectUsecaseError(t, err, ErrorAccessDenied, "trial_expired")
	require.Empty(t, d.llm.requests)
	require.Empty(t, d.history.appended)
}

func TestReply_Moderation(t *testing.T) {
	freezeTime(t)

	d := newChatDeps("hehe")
	d.llm.flagged = true
	svc := newTestChat(t, d, ChatConfig{Moderation: true, NSFWGlobal: true})
	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "algo ousado"})
	expectUsecaseError(t, err, ErrorInvalidQuestion, "nsfw_not_allowed")
	require.Empty(t, d.llm.requests)

	d.access.user = domain.User{ID: 1, CurrentPlan: domain.PlanNSFWPlus, PlanExpiresAt: fixedNow.Add(time.Hour)}
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "algo ousado"})
	require.NoError(t, err)

	svc = newTestChat(t, d, ChatConfig{Moderation: true, NSFWGlobal: false})
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "algo ousado"})
	expectUsecaseError(t, err, ErrorInvalidQuestion, "nsfw_not_allowed")

	d.access.user.PlanExpiresAt = fixedNow.Add(-time.Hour)
	svc = newTestChat(t, d, ChatConfig{Moderation: true, NSFWGlobal: true})
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "algo ousado"})
	expectUsecaseError(t, err, ErrorInvalidQuestion, "nsfw_not_allowed")
}

func TestReply_ModerationErrors(t *testing.T) {
	d := newChatDeps("x")
	d.llm.modErr = &openai.HTTPStatusError{StatusCode: http.StatusInternalServerError}
	svc := newTestChat(t, d, ChatConfig{Moderation: true})
	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	expectUsecaseError(t, err, ErrorUpstream, "moderation_error")

	d.llm.modErr = &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	expectUsecaseError(t, err, ErrorRateLimited, "moderation_rate_limited")
}

func TestReply_OpenAIErrors(t *testing.T) {
	d := newChatDeps("")
	d.llm.err = &openai.HTTPStatusError{StatusCode: http.StatusTooManyRequests}
	svc := newTestChat(t, d, ChatConfig{})
	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	expectUsecaseError(t, err, ErrorRateLimited, "openai_rate_limited")

	d.llm.err = errors.New("connection reset")
	_, err = svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	expectUsecaseError(t, err, ErrorUpstream, "openai_error")

	require.Empty(t, d.history.appended)
	require.Empty(t, d.tracker.updated)
}

func TestReply_EmptyReply(t *testing.T) {
	d := newChatDeps("  Aimi:  ")
	svc := newTestChat(t, d, ChatConfig{})
	_, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "oi"})
	expectUsecaseError(t, err, ErrorUpstream, "empty_reply")
	require.Empty(t, d.history.appended)
}

func TestCleanReply(t *testing.T) {
	cases := map[string]string{
		"Oi, senpai!":                        "Oi, senpai!",
		"  Aimi: Oi!  ":                      "Oi!",
		"Claro! Usuário: e agora? Aimi: hm":  "Claro!",
		"Usuário: isso não devia estar aqui": "",
		"":                                   "",
	}
	for in, want := range cases {
		require.Equal(t, want, cleanReply(in), in)
	}
}

func TestReply_PreCheckedUserSkipsAccessCheck(t *testing.T) {
	freezeTime(t)
	d := newChatDeps("hehe")
	d.access.err = errors.New("must not be called")
	d.llm.flagged = true
	svc := newTestChat(t, d, ChatConfig{Moderation: true, NSFWGlobal: true})

	u := domain.User{ID: 1, CurrentPlan: domain.PlanNSFWPlus, PlanExpiresAt: fixedNow.Add(time.Hour)}
	out, err := svc.Reply(context.Background(), ReplyInput{UserID: 1, Text: "algo ousado", User: &u})
	require.NoError(t, err)
	require.Equal(t, "hehe", out.Text)
}
