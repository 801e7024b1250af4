// Package events fans lifecycle events (pairing challenges, state changes)
// out through redis pub/sub, so API processes other than the one holding the
// tenant's socket can still surface them.
package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/model"
	redisclient "github.com/wirechat/gateway-go/internal/redis"
)

const publishTimeout = 5 * time.Second

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type Broker struct {
	redis *redisclient.Client
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	return &Broker{redis: redisClient}
}

// NotifyPairing implements gateway.LifecycleNotifier. The challenge is
// base64 encoded; subscribers render it as a QR for the operator. Returns
// immediately; the publish happens on its own goroutine.
func (b *Broker) NotifyPairing(tenantID string, challenge []byte) {
	data, _ := json.Marshal(map[string]string{
		"challenge": base64.StdEncoding.EncodeToString(challenge),
	})
	go b.publish(tenantID, Event{Type: "pairing_challenge", Data: data})
}

// NotifyState implements gateway.LifecycleNotifier. Returns immediately like
// NotifyPairing; a slow redis never stalls a session's event loop.
func (b *Broker) NotifyState(tenantID string, state model.ConnectionState) {
	data, _ := json.Marshal(map[string]string{"state": string(state)})
	go b.publish(tenantID, Event{Type: "state_changed", Data: data})
}

func (b *Broker) publish(tenantID string, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("events: marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	channel := redisclient.LifecycleChannel(tenantID)
	if err := b.redis.Publish(ctx, channel, payload).Err(); err != nil {
		log.Error().
			Str("tenantId", tenantID).
			Str("channel", channel).
			Err(err).
			Msg("events: publish")
	}
}

// Subscribe streams a tenant's lifecycle events until ctx is done. The
// returned cancel function must be called to release the redis subscription.
func (b *Broker) Subscribe(ctx context.Context, tenantID string) (<-chan Event, func()) {
	channel := redisclient.LifecycleChannel(tenantID)
	pubsub := b.redis.Subscribe(ctx, channel)

	out := make(chan Event, 16)
	go func() {
		defer close(out)

		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("events: unmarshal event")
				continue
			}
			select {
			case out <- event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, func() { _ = pubsub.Close() }
}
