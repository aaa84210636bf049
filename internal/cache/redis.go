package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps a go-redis client with the small command set used by the bot.
// One Client is created at process start and shared by every component.
type Client struct {
	rdb redis.UniversalClient
}

// New wraps an existing go-redis client.
func New(rdb redis.UniversalClient) (*Client, error) {
	if rdb == nil {
		return nil, errors.New("cache: redis client must not be nil")
	}
	return &Client{rdb: rdb}, nil
}

// NewFromURL builds a client from a redis:// or rediss:// URL.
func NewFromURL(rawURL string) (*Client, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.New("cache: redis url must not be empty")
	}
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}
	return New(redis.NewClient(opts))
}

// Get returns the string stored at key. A missing key yields "" and a nil error.
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("cache: Get %q: %w", key, err)
	}
	return v, nil
}

// SetEX stores value at key with the given time-to-live.
func (c *Client) SetEX(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := c.rdb.SetEx(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: SetEX %q: %w", key, err)
	}
	return nil
}

// LRange returns the inclusive [start, stop] range of the list at key.
// Negative indices count from the tail. A missing key yields an empty slice.
func (c *Client) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	items, err := c.rdb.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: LRange %q: %w", key, err)
	}
	return items, nil
}

// AppendBounded pushes values to the tail of the list at key, trims the list
// to its newest maxLen entries and resets its TTL, all inside one MULTI/EXEC.
func (c *Client) AppendBounded(ctx context.Context, key string, maxLen int64, ttl time.Duration, values ...string) error {
	if maxLen <= 0 {
		return fmt.Errorf("cache: AppendBounded %q: maxLen must be positive", key)
	}
	if len(values) == 0 {
		return nil
	}
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, args...)
		pipe.LTrim(ctx, key, -maxLen, -1)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache: AppendBounded %q: %w", key, err)
	}
	return nil
}

// Publish sends payload on a pub/sub channel.
func (c *Client) Publish(ctx context.Context, channel, payload string) error {
	if err := c.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("cache: Publish %q: %w", channel, err)
	}
	return nil
}

// Subscription delivers pub/sub payloads until Close is called.
type Subscription struct {
	C    <-chan string
	ps   *redis.PubSub
	done chan struct{}
	once sync.Once
}

// Close stops the subscription; C is closed shortly after.
func (s *Subscription) Close() error {
	s.once.Do(func() { close(s.done) })
	return s.ps.Close()
}

// Subscribe listens on channel. It returns once the server has confirmed the
// subscription, so messages published afterwards are not lost.
func (c *Client) Subscribe(ctx context.Context, channel string) (*Subscription, error) {
	ps := c.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("cache: Subscribe %q: %w", channel, err)
	}
	out := make(chan string)
	sub := &Subscription{C: out, ps: ps, done: make(chan struct{})}
	go func() {
		defer close(out)
		for msg := range ps.Channel() {
			select {
			case out <- msg.Payload:
			case <-sub.done:
				return
			}
		}
	}()
	return sub, nil
}

// Ping checks connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: Ping: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}
