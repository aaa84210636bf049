package history

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

const (
	keyPrefix       = "aimi:history:"
	DefaultMaxTurns = 4
	DefaultTTL      = time.Hour
)

// Store is the slice of the cache the buffer needs.
type Store interface {
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	AppendBounded(ctx context.Context, key string, maxLen int64, ttl time.Duration, values ...string) error
}

type Config struct {
	MaxTurns int
	TTL      time.Duration
}

// Buffer keeps the last MaxTurns exchanges per user as a bounded Redis list
// of alternating "Usuário: ..." / "Aimi: ..." lines, oldest first.
type Buffer struct {
	store    Store
	maxTurns int
	ttl      time.Duration
	logger   *slog.Logger
}

func NewBuffer(store Store, cfg Config, logger *slog.Logger) (*Buffer, error) {
	if store == nil {
		return nil, errors.New("history: store must not be nil")
	}
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Buffer{store: store, maxTurns: cfg.MaxTurns, ttl: cfg.TTL, logger: logger}, nil
}

// Key returns the cache key of a user's history list.
func Key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// MaxLines is the list length the buffer trims to.
func (b *Buffer) MaxLines() int {
	return 2 * b.maxTurns
}

// Lines returns the stored lines oldest first. A missing key or a cache
// error yields nil.
func (b *Buffer) Lines(ctx context.Context, userID int64) []string {
	lines, err := b.store.LRange(ctx, Key(userID), 0, -1)
	if err != nil {
		b.logger.Warn("history_read_failed", "user_id", userID, "err", err)
		return nil
	}
	return lines
}

// Read returns the history as newline-joined text, or "" when there is none.
func (b *Buffer) Read(ctx context.Context, userID int64) string {
	return strings.Join(b.Lines(ctx, userID), "\n")
}

// Append records one exchange. Push, trim and expiry are applied atomically;
// failures are logged and otherwise ignored.
func (b *Buffer) Append(ctx context.Context, userID int64, userText, assistantText string) {
	err := b.store.AppendBounded(ctx, Key(userID), int64(b.MaxLines()), b.ttl,
		"Usuário: "+userText,
		"Aimi: "+assistantText,
	)
	if err != nil {
		b.logger.Warn("history_append_failed", "user_id", userID, "err", err)
	}
}
