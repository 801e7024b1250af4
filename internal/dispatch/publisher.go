// Package dispatch publishes ingested messages to the downstream consumer
// over AMQP. The consumer side (reply composition, document retrieval) runs
// in separate services; this gateway only guarantees delivery of the event.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/ingest"
)

const routingKeyPrefix = "gateway.message.ingested"

type Publisher struct {
	conn     *amqp091.Connection
	exchange string
}

// NewPublisher connects to the broker and declares the topic exchange the
// downstream consumers bind to.
func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		exchange: exchange,
	}, nil
}

// Handle implements ingest.Downstream. Each event is published persistently
// with a fresh message id; the tenant id rides in the routing key so
// consumers can bind per tenant or for the whole fleet.
func (p *Publisher) Handle(ctx context.Context, event ingest.Event) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer ch.Close()

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := fmt.Sprintf("%s.%s", routingKeyPrefix, event.TenantID)
	err = ch.PublishWithContext(
		ctx, p.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp091.Persistent,
			MessageId:     uuid.NewString(),
			CorrelationId: event.ConversationID,
			Timestamp:     time.Now(),
			Body:          body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	log.Debug().
		Str("tenantId", event.TenantID).
		Str("routingKey", key).
		Msg("downstream event published")
	return nil
}

func (p *Publisher) Close() error {
	return p.conn.Close()
}
