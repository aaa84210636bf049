package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"aimibot/internal/domain"
)

const (
	defaultTrialDuration = 5 * time.Minute
	defaultPlanDuration  = 30 * 24 * time.Hour
	statusTimeLayout     = "02/01/2006 15:04"
)

// UserStore persists accounts and purchases.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (domain.User, bool, error)
	CreateUser(ctx context.Context, u domain.User) (bool, error)
	TouchLastSeen(ctx context.Context, userID int64, at time.Time) error
	ActivatePlan(ctx context.Context, userID int64, plan string, expiresAt time.Time, tx domain.Transaction) error
	ListTransactions(ctx context.Context, userID int64, limit int) ([]domain.Transaction, error)
}

type AccountConfig struct {
	TrialEnabled  bool
	TrialDuration time.Duration
	PlanDuration  time.Duration
}

// AccountService registers users and decides who may talk to the persona.
type AccountService struct {
	users  UserStore
	cfg    AccountConfig
	logger *slog.Logger
}

type Registration struct {
	Welcome string
	IsNew   bool
}

func NewAccountService(users UserStore, cfg AccountConfig, logger *slog.Logger) (*AccountService, error) {
	if users == nil {
		return nil, errors.New("usecase: user store must not be nil")
	}
	if cfg.TrialDuration <= 0 {
		cfg.TrialDuration = defaultTrialDuration
	}
	if cfg.PlanDuration <= 0 {
		cfg.PlanDuration = defaultPlanDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{users: users, cfg: cfg, logger: logger}, nil
}

// Register creates the account with a fresh trial on first contact and
// refreshes last-seen on later ones.
func (s *AccountService) Register(ctx context.Context, u domain.User) (Registration, error) {
	if u.ID == 0 {
		return Registration{}, newError(ErrorInvalidInput, "missing_user", nil)
	}
	name := strings.TrimSpace(u.FirstName)
	ts := now()

	created, err := s.users.CreateUser(ctx, domain.User{
		ID:          u.ID,
		FirstName:   name,
		Username:    u.Username,
		CurrentPlan: domain.PlanFree,
		TrialEndsAt: ts.Add(s.cfg.TrialDuration),
		CreatedAt:   ts,
		LastSeenAt:  ts,
	})
	if err != nil {
		return Registration{}, newError(ErrorInternal, "dynamodb_create_user_error", err)
	}
	if created {
		minutes := int(s.cfg.TrialDuration / time.Minute)
		s.logger.Info("user registered", "user_id", u.ID, "trial_minutes", minutes)
		return Registration{
			Welcome: fmt.Sprintf("O-oi, senpai %s! Meu nome é Aimi. Prazer em conhecer você! ❤️ "+
				"Você tem %d minutos para conversar comigo e testar minha voz!", name, minutes),
			IsNew: true,
		}, nil
	}

	if err := s.users.TouchLastSeen(ctx, u.ID, ts); err != nil {
		s.logger.Warn("touch last seen failed", "user_id", u.ID, "err", err)
	}
	s.logger.Info("returning user", "user_id", u.ID)
	return Registration{
		Welcome: fmt.Sprintf("Bem-vindo de volta, senpai %s! Que bom te ver de novo! 🥰", name),
	}, nil
}

// CheckAccess returns the user when a paid plan or the trial is active.
// Denials are ACCESS_DENIED errors with reason not_registered or
// trial_expired.
func (s *AccountService) CheckAccess(ctx context.Context, userID int64) (domain.User, error) {
	u, found, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, newError(ErrorInternal, "dynamodb_get_user_error", err)
	}
	if !found {
		return domain.User{}, newError(ErrorAccessDenied, "not_registered", nil)
	}
	ts := now()
	if u.HasPaidPlan(ts) {
		return u, nil
	}
	if s.cfg.TrialEnabled && u.InTrial(ts) {
		return u, nil
	}
	return u, newError(ErrorAccessDenied, "trial_expired", nil)
}

// Status renders the account summary as Telegram Markdown.
func (s *AccountService) Status(ctx context.Context, userID int64) (string, error) {
	u, found, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", newError(ErrorInternal, "dynamodb_get_user_error", err)
	}
	if !found {
		return "", newError(ErrorAccessDenied, "not_registered", nil)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*Status da sua Conta*\n\n*Plano Atual:* `%s`\n", u.CurrentPlan)
	ts := now()
	switch {
	case u.CurrentPlan != domain.PlanFree && !u.PlanExpiresAt.IsZero():
		if u.PlanExpiresAt.After(ts) {
			fmt.Fprintf(&b, "*Válido até:* `%s`\n", u.PlanExpiresAt.UTC().Format(statusTimeLayout))
		} else {
			fmt.Fprintf(&b, "_Seu plano expirou em %s._\n", u.PlanExpiresAt.UTC().Format(statusTimeLayout))
		}
	case u.InTrial(ts):
		fmt.Fprintf(&b, "*Trial termina em:* `%s`\n", u.TrialEndsAt.UTC().Format(statusTimeLayout))
	default:
		b.WriteString("_Seu trial já expirou._\n")
	}

	txs, err := s.users.ListTransactions(ctx, userID, 1)
	if err != nil {
		s.logger.Warn("list transactions failed", "user_id", userID, "err", err)
	} else if len(txs) > 0 {
		last := txs[0]
		title := last.Plan
		if p, ok := PlanByKey(last.Plan); ok {
			title = p.Title
		}
		fmt.Fprintf(&b, "*Última compra:* %s em `%s`\n", title, last.CreatedAt.UTC().Format(statusTimeLayout))
	}
	return b.String(), nil
}
