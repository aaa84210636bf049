package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"aimibot/internal/domain"
)

// Channel is the Redis pub/sub channel carrying sales.
const Channel = "aimi:sales"

type publishClient interface {
	Publish(ctx context.Context, channel, payload string) error
}

// Publisher sends sales to every dashboard process through Redis.
type Publisher struct {
	client publishClient
}

func NewPublisher(client publishClient) (*Publisher, error) {
	if client == nil {
		return nil, errors.New("dashboard: publish client must not be nil")
	}
	return &Publisher{client: client}, nil
}

func (p *Publisher) PublishSale(ctx context.Context, sale domain.Sale) error {
	raw, err := json.Marshal(sale)
	if err != nil {
		return fmt.Errorf("dashboard: marshal sale: %w", err)
	}
	return p.client.Publish(ctx, Channel, string(raw))
}
