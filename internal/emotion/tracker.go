package emotion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"aimibot/internal/domain"
)

const (
	keyPrefix  = "aimi:emotion:"
	DefaultTTL = 2 * time.Hour
)

// Store is the slice of the cache the tracker needs. Get returns "" for a
// missing key.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	SetEX(ctx context.Context, key, value string, ttl time.Duration) error
}

type Config struct {
	Default domain.Emotion
	TTL     time.Duration
}

// Tracker infers and remembers the persona's emotion per user. Cache
// failures never reach the caller: reads fall back to the default label and
// writes are dropped after being logged.
type Tracker struct {
	store  Store
	table  *Table
	def    domain.Emotion
	ttl    time.Duration
	logger *slog.Logger
}

func NewTracker(store Store, table *Table, cfg Config, logger *slog.Logger) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("emotion: store must not be nil")
	}
	if table == nil {
		return nil, errors.New("emotion: trigger table must not be nil")
	}
	if !table.Has(cfg.Default) {
		return nil, fmt.Errorf("emotion: default label %q is not in the trigger table", cfg.Default)
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		store:  store,
		table:  table,
		def:    cfg.Default,
		ttl:    cfg.TTL,
		logger: logger,
	}, nil
}

// Key returns the cache key holding a user's emotion.
func Key(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

// Default returns the configured fallback label.
func (t *Tracker) Default() domain.Emotion {
	return t.def
}

// Current returns the stored label, or the default when nothing usable is cached.
func (t *Tracker) Current(ctx context.Context, userID int64) domain.Emotion {
	v, err := t.store.Get(ctx, Key(userID))
	if err != nil {
		t.logger.Warn("emotion_read_failed", "user_id", userID, "err", err)
		return t.def
	}
	if v == "" {
		t.logger.Debug("emotion_cache_miss", "user_id", userID)
		return t.def
	}
	label := domain.Emotion(v)
	if !t.table.Has(label) {
		t.logger.Warn("emotion_unknown_label", "user_id", userID, "label", v)
		return t.def
	}
	return label
}

// Update scores userText and persists the winning label. When nothing
// matches the stored state is left alone and Current is returned.
// assistantText does not take part in scoring.
func (t *Tracker) Update(ctx context.Context, userID int64, userText, assistantText string) domain.Emotion {
	_ = assistantText

	label, score := t.table.Detect(userText)
	if score <= 0 {
		return t.Current(ctx, userID)
	}

	t.logger.Info("emotion_updated", "user_id", userID, "label", label, "score", score)
	if err := t.store.SetEX(ctx, Key(userID), string(label), t.ttl); err != nil {
		t.logger.Warn("emotion_persist_failed", "user_id", userID, "label", label, "err", err)
	}
	return label
}
