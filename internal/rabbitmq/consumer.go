package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"project-chat/internal/models"
)

// Invalidator drops a cached membership fact.
type Invalidator interface {
	Invalidate(userID, roomID string)
}

// MembershipConsumer listens for membership changes published by the project
// service and evicts the matching cached facts.
type MembershipConsumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	logger *slog.Logger
}

// NewMembershipConsumer declares queue, binds it to routingKey on exchange and
// returns a consumer ready to Run.
func NewMembershipConsumer(amqpURL, exchange, queue, routingKey string, logger *slog.Logger) (*MembershipConsumer, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}

	conn, ch, err := dialExchange(amqpURL, exchange)
	if err != nil {
		return nil, err
	}

	q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, routingKey, exchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &MembershipConsumer{conn: conn, ch: ch, queue: q.Name, logger: logger}, nil
}

// Run consumes until ctx is cancelled or the channel closes.
func (c *MembershipConsumer) Run(ctx context.Context, inv Invalidator) error {
	deliveries, err := c.ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("membership deliveries channel closed")
			}
			if err := ApplyMembershipChange(d.Body, inv); err != nil {
				c.logger.Warn("discarding membership change", "error", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *MembershipConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// ApplyMembershipChange decodes one change event and invalidates its fact.
func ApplyMembershipChange(body []byte, inv Invalidator) error {
	var change models.MembershipChange
	if err := json.Unmarshal(body, &change); err != nil {
		return fmt.Errorf("decode membership change: %w", err)
	}
	if change.UserID == "" || change.RoomID == "" {
		return errors.New("membership change missing user_id or room_id")
	}
	inv.Invalidate(change.UserID, change.RoomID)
	return nil
}
