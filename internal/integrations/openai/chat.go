package openai

import (
	"context"
	"errors"
	"strings"

	"aimibot/internal/domain"
)

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []domain.ChatMessage `json:"messages"`
	MaxTokens   int                  `json:"max_tokens,omitempty"`
	Temperature *float64             `json:"temperature,omitempty"`
	TopP        *float64             `json:"top_p,omitempty"`
	Stop        []string             `json:"stop,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      domain.ChatMessage `json:"message"`
		FinishReason string             `json:"finish_reason"`
	} `json:"choices"`
}

// newChatRequest leaves zero sampling values unset so the provider default
// applies.
func newChatRequest(in domain.CompletionRequest) chatRequest {
	out := chatRequest{
		Model:     in.Model,
		Messages:  in.Messages,
		MaxTokens: in.MaxTokens,
		Stop:      in.Stop,
	}
	if in.Temperature > 0 {
		t := in.Temperature
		out.Temperature = &t
	}
	if in.TopP > 0 {
		p := in.TopP
		out.TopP = &p
	}
	return out
}

// Chat generates one reply and returns the first choice, trimmed.
func (c *Client) Chat(ctx context.Context, in domain.CompletionRequest) (string, error) {
	if strings.TrimSpace(in.Model) == "" {
		return "", errors.New("openai: chat: model must not be empty")
	}
	if len(in.Messages) == 0 {
		return "", errors.New("openai: chat: messages must not be empty")
	}

	var payload chatResponse
	if err := c.post(ctx, "chat", "/chat/completions", newChatRequest(in), &payload); err != nil {
		return "", err
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("openai: chat: no choices in response")
	}
	return strings.TrimSpace(payload.Choices[0].Message.Content), nil
}
