package domain

import (
	"errors"
	"time"
)

const (
	PlanFree     = "free"
	PlanPremium  = "premium"
	PlanNSFWPlus = "nsfw_plus"
)

var (
	// ErrUserNotFound is returned when a write targets a user that never registered.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateTransaction is returned when a charge id was already recorded.
	ErrDuplicateTransaction = errors.New("transaction already recorded")
)

// User is the persisted account of a Telegram user.
type User struct {
	ID            int64
	FirstName     string
	Username      string
	CurrentPlan   string
	TrialEndsAt   time.Time
	PlanExpiresAt time.Time
	CreatedAt     time.Time
	LastSeenAt    time.Time
}

// HasPaidPlan reports whether the user holds a non-free plan that is still valid at now.
func (u User) HasPaidPlan(now time.Time) bool {
	return u.CurrentPlan != "" && u.CurrentPlan != PlanFree && !u.PlanExpiresAt.IsZero() && u.PlanExpiresAt.After(now)
}

// InTrial reports whether the trial window is still open at now.
func (u User) InTrial(now time.Time) bool {
	return !u.TrialEndsAt.IsZero() && u.TrialEndsAt.After(now)
}

// Transaction records one completed purchase.
type Transaction struct {
	ID        string
	UserID    int64
	Plan      string
	Amount    int // minor units
	Currency  string
	CreatedAt time.Time
}

// Sale is the event broadcast to the dashboard after a purchase.
type Sale struct {
	Product string    `json:"product"`
	Amount  string    `json:"amount"`
	User    string    `json:"user"`
	Plan    string    `json:"plan"`
	At      time.Time `json:"at"`
}
