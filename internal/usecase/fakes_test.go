package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"aimibot/internal/domain"
)

var fixedNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func freezeTime(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return fixedNow }
	t.Cleanup(func() { now = prev })
}

type mockUsers struct {
	users       map[int64]domain.User
	getErr      error
	createErr   error
	touchErr    error
	activateErr error
	listErr     error

	txs       map[int64][]domain.Transaction
	touched   []int64
	activated []domain.Transaction
	expiresAt time.Time
}

func (m *mockUsers) GetUser(_ context.Context, userID int64) (domain.User, bool, error) {
	if m.getErr != nil {
		return domain.User{}, false, m.getErr
	}
	u, ok := m.users[userID]
	return u, ok, nil
}

func (m *mockUsers) CreateUser(_ context.Context, u domain.User) (bool, error) {
	if m.createErr != nil {
		return false, m.createErr
	}
	if _, ok := m.users[u.ID]; ok {
		return false, nil
	}
	if m.users == nil {
		m.users = map[int64]domain.User{}
	}
	m.users[u.ID] = u
	return true, nil
}

func (m *mockUsers) TouchLastSeen(_ context.Context, userID int64, _ time.Time) error {
	m.touched = append(m.touched, userID)
	return m.touchErr
}

func (m *mockUsers) ActivatePlan(_ context.Context, userID int64, plan string, expiresAt time.Time, tx domain.Transaction) error {
	if m.activateErr != nil {
		return m.activateErr
	}
	m.activated = append(m.activated, tx)
	m.expiresAt = expiresAt
	u := m.users[userID]
	u.CurrentPlan = plan
	u.PlanExpiresAt = expiresAt
	m.users[userID] = u
	return nil
}

func (m *mockUsers) ListTransactions(_ context.Context, userID int64, limit int) ([]domain.Transaction, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	txs := m.txs[userID]
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs, nil
}

func expectUsecaseError(t *testing.T, err error, code ErrorCode, reason string) {
	t.Helper()
	var usecaseErr *Error
	require.ErrorAs(t, err, &usecaseErr)
	require.Equal(t, code, usecaseErr.Code)
	require.Equal(t, reason, usecaseErr.Reason)
}
