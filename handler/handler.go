package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
)

const (
	headerCorrelationID = "X-Correlation-Id"
	headerSecretToken   = "X-Telegram-Bot-Api-Secret-Token"
)

type UpdateRouter interface {
	Route(ctx context.Context, u tgbotapi.Update) error
}

type errorResponse struct {
	Error string `json:"error"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

// Handler is the API Gateway entry point for Telegram webhook calls.
type Handler struct {
	router UpdateRouter
	secret string
	logger *slog.Logger
}

// NewHandler builds the webhook handler. An empty secret disables the
// secret token check.
func NewHandler(router UpdateRouter, secret string, logger *slog.Logger) (*Handler, error) {
	if router == nil {
		return nil, errors.New("handler: router must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{router: router, secret: strings.TrimSpace(secret), logger: logger}, nil
}

func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := header(req.Headers, headerCorrelationID)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}
	logger := h.logger.With("correlation_id", correlationID)

	if req.HTTPMethod != "" && req.HTTPMethod != http.MethodPost {
		return jsonResponse(http.StatusMethodNotAllowed, correlationID, errorResponse{Error: "METHOD_NOT_ALLOWED"}), nil
	}
	if h.secret != "" {
		got := header(req.Headers, headerSecretToken)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			logger.Warn("webhook secret mismatch")
			return jsonResponse(http.StatusUnauthorized, correlationID, errorResponse{Error: "UNAUTHORIZED"}), nil
		}
	}

	var update tgbotapi.Update
	if err := json.Unmarshal([]byte(req.Body), &update); err != nil {
		logger.Warn("invalid update body", "err", err)
		return jsonResponse(http.StatusBadRequest, correlationID, errorResponse{Error: "INVALID_INPUT"}), nil
	}

	// Telegram redelivers on non-2xx, so routing failures are logged and
	// acknowledged.
	if err := h.router.Route(ctx, update); err != nil {
		logger.Error("failed to route update", "update_id", update.UpdateID, "err", err)
	}
	return jsonResponse(http.StatusOK, correlationID, okResponse{OK: true}), nil
}

func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func jsonResponse(status int, correlationID string, body any) events.APIGatewayProxyResponse {
	raw, err := json.Marshal(body)
	if err != nil {
		raw = []byte(`{"error":"INTERNAL_ERROR"}`)
		status = http.StatusInternalServerError
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":      "application/json",
			headerCorrelationID: correlationID,
		},
		Body: string(raw),
	}
}

var newCorrelationID = func() string {
	return uuid.NewString()
}
