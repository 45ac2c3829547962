package policysync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

// ValkeyBus distributes notifications over a Valkey pub/sub channel.
// Each message carries the publishing replica's ID so a replica skips its
// own notifications.
type ValkeyBus struct {
	client  valkey.Client
	channel string
	origin  string
}

// NewValkeyBus connects to Valkey and verifies the connection
func NewValkeyBus(addr, channel string) (*ValkeyBus, error) {
	if channel == "" {
		channel = "accessd:policy"
	}

	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Valkey: %w", err)
	}

	b := newValkeyBus(client, channel)
	slog.Info("Initialized Valkey policy sync bus",
		"address", addr,
		"channel", channel,
		"origin", b.origin)
	return b, nil
}

func newValkeyBus(client valkey.Client, channel string) *ValkeyBus {
	return &ValkeyBus{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
	}
}

// Publish sends this replica's origin ID on the channel
func (b *ValkeyBus) Publish(ctx context.Context) error {
	cmd := b.client.B().Publish().Channel(b.channel).Message(b.origin).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("failed to publish policy invalidation: %w", err)
	}
	return nil
}

// Subscribe blocks on the channel until ctx is canceled
func (b *ValkeyBus) Subscribe(ctx context.Context, handler func()) error {
	cmd := b.client.B().Subscribe().Channel(b.channel).Build()
	err := b.client.Receive(ctx, cmd, func(msg valkey.PubSubMessage) {
		if msg.Message == b.origin {
			return
		}
		slog.Debug("Received policy invalidation", "channel", msg.Channel, "origin", msg.Message)
		handler()
	})
	if err != nil && (ctx.Err() != nil || errors.Is(err, valkey.ErrClosing)) {
		return nil
	}
	return err
}

// Close closes the Valkey client
func (b *ValkeyBus) Close() error {
	b.client.Close()
	return nil
}
