package history

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"aimibot/internal/cache"
)

type failingStore struct{ err error }

func (f failingStore) LRange(context.Context, string, int64, int64) ([]string, error) {
	return nil, f.err
}

func (f failingStore) AppendBounded(context.Context, string, int64, time.Duration, ...string) error {
	return f.err
}

func newRedisBuffer(t *testing.T, cfg Config) (*Buffer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := cache.New(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	b, err := NewBuffer(c, cfg, nil)
	require.NoError(t, err)
	return b, mr
}

func TestNewBuffer_Defaults(t *testing.T) {
	_, err := NewBuffer(nil, Config{}, nil)
	require.Error(t, err)

	b, err := NewBuffer(failingStore{}, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultMaxTurns, b.maxTurns)
	require.Equal(t, DefaultTTL, b.ttl)
	require.Equal(t, 8, b.MaxLines())
}

func TestKey(t *testing.T) {
	require.Equal(t, "aimi:history:123", Key(123))
}

func TestRead_EmptyForNewUser(t *testing.T) {
	b, _ := newRedisBuffer(t, Config{})
	require.Equal(t, "", b.Read(context.Background(), 1))
	require.Empty(t, b.Lines(context.Background(), 1))
}

func TestAppend_FormatsAndExpires(t *testing.T) {
	b, mr := newRedisBuffer(t, Config{})
	ctx := context.Background()

	b.Append(ctx, 5, "oi Aimi", "Oi! Senti sua falta ❤️")
	require.Equal(t, "Usuário: oi Aimi\nAimi: Oi! Senti sua falta ❤️", b.Read(ctx, 5))
	require.Equal(t, time.Hour, mr.TTL("aimi:history:5"))

	mr.FastForward(time.Hour + time.Second)
	require.Equal(t, "", b.Read(ctx, 5))
}

func TestAppend_KeepsNewestTurns(t *testing.T) {
	b, _ := newRedisBuffer(t, Config{MaxTurns: 4, TTL: time.Hour})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		b.Append(ctx, 9, fmt.Sprintf("u%d", i), fmt.Sprintf("a%d", i))
	}

	lines := b.Lines(ctx, 9)
	require.Len(t, lines, 8)
	require.Equal(t, "Usuário: u2", lines[0])
	require.Equal(t, "Aimi: a2", lines[1])
	require.Equal(t, "Aimi: a5", lines[7])
}

func TestAppend_RefreshesTTL(t *testing.T) {
	b, mr := newRedisBuffer(t, Config{TTL: time.Hour})
	ctx := context.Background()

	b.Append(ctx, 1, "a", "b")
	mr.FastForward(50 * time.Minute)
	b.Append(ctx, 1, "c", "d")
	require.Equal(t, time.Hour, mr.TTL("aimi:history:1"))
	require.Len(t, b.Lines(ctx, 1), 4)
}

func TestRead_Idempotent(t *testing.T) {
	b, _ := newRedisBuffer(t, Config{})
	ctx := context.Background()

	b.Append(ctx, 2, "x", "y")
	first := b.Read(ctx, 2)
	require.Equal(t, first, b.Read(ctx, 2))
}

func TestUsersAreIsolated(t *testing.T) {
	b, _ := newRedisBuffer(t, Config{})
	ctx := context.Background()

	b.Append(ctx, 1, "um", "one")
	b.Append(ctx, 2, "dois", "two")
	require.Equal(t, "Usuário: um\nAimi: one", b.Read(ctx, 1))
	require.Equal(t, "Usuário: dois\nAimi: two", b.Read(ctx, 2))
}

func TestCacheFailuresAreSwallowed(t *testing.T) {
	b, err := NewBuffer(failingStore{err: errors.New("connection refused")}, Config{}, nil)
	require.NoError(t, err)

	require.NotPanics(t, func() { b.Append(context.Background(), 1, "a", "b") })
	require.Equal(t, "", b.Read(context.Background(), 1))
}
