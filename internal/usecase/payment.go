package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"aimibot/internal/domain"
)

// SalePublisher fans completed sales out to the dashboard.
type SalePublisher interface {
	PublishSale(ctx context.Context, sale domain.Sale) error
}

type PaymentService struct {
	users        UserStore
	sales        SalePublisher
	planDuration time.Duration
	logger       *slog.Logger
}

type PurchaseInput struct {
	UserID   int64
	UserName string
	Payload  string
	Currency string
	Amount   int
	ChargeID string
}

// NewPaymentService builds the purchase flow. sales may be nil.
func NewPaymentService(users UserStore, sales SalePublisher, planDuration time.Duration, logger *slog.Logger) (*PaymentService, error) {
	if users == nil {
		return nil, errors.New("usecase: user store must not be nil")
	}
	if planDuration <= 0 {
		planDuration = defaultPlanDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentService{users: users, sales: sales, planDuration: planDuration, logger: logger}, nil
}

// PreCheckout accepts a pending payment only for payloads in the catalog.
func (s *PaymentService) PreCheckout(payload string) (Plan, error) {
	plan, ok := PlanByPayload(strings.TrimSpace(payload))
	if !ok {
		return Plan{}, newError(ErrorUnknownPlan, "unknown_payload", nil)
	}
	return plan, nil
}

// CompletePurchase activates the bought plan and records the charge. A
// charge that was already recorded counts as success so Telegram retries
// stay harmless.
func (s *PaymentService) CompletePurchase(ctx context.Context, in PurchaseInput) (Plan, error) {
	plan, ok := PlanByPayload(strings.TrimSpace(in.Payload))
	if !ok {
		s.logger.Error("payment for unknown payload", "user_id", in.UserID, "payload", in.Payload)
		return Plan{}, newError(ErrorUnknownPlan, "unknown_payload", nil)
	}

	txID := strings.TrimSpace(in.ChargeID)
	if txID == "" {
		txID = newUUID()
	}
	currency := in.Currency
	if currency == "" {
		currency = plan.Currency
	}
	amount := in.Amount
	if amount <= 0 {
		amount = plan.Amount
	}
	ts := now()

	err := s.users.ActivatePlan(ctx, in.UserID, plan.Key, ts.Add(s.planDuration), domain.Transaction{
		ID:        txID,
		UserID:    in.UserID,
		Plan:      plan.Key,
		Amount:    amount,
		Currency:  currency,
		CreatedAt: ts,
	})
	switch {
	case errors.Is(err, domain.ErrDuplicateTransaction):
		s.logger.Info("duplicate payment ignored", "user_id", in.UserID, "tx_id", txID)
		return plan, nil
	case err != nil:
		s.logger.Error("plan activation failed", "user_id", in.UserID, "plan", plan.Key, "err", err)
		return plan, newError(ErrorInternal, "plan_activation_failed", err)
	}
	s.logger.Info("plan activated", "user_id", in.UserID, "plan", plan.Key, "tx_id", txID)

	if s.sales != nil {
		sale := domain.Sale{
			Product: plan.Title,
			Amount:  FormatAmount(amount, currency),
			User:    in.UserName,
			Plan:    plan.Key,
			At:      ts.UTC(),
		}
		if err := s.sales.PublishSale(ctx, sale); err != nil {
			s.logger.Warn("sale publish failed", "user_id", in.UserID, "err", err)
		}
	}
	return plan, nil
}
