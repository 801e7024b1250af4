// Package ingest turns raw inbound message events into persisted business
// records, exactly once per external message id, and feeds newly ingested
// messages to the downstream consumer.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wirechat/gateway-go/internal/model"
	"github.com/wirechat/gateway-go/internal/repository"
	"github.com/wirechat/gateway-go/internal/transport"
)

type Outcome string

const (
	// OutcomeIngested: a new message row was persisted and dispatched.
	OutcomeIngested Outcome = "ingested"
	// OutcomeSkipped: group/broadcast sender or no text payload. Not an error.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeDuplicate: the external message id was already persisted.
	OutcomeDuplicate Outcome = "duplicate_skipped"
)

// Event is the payload handed to the downstream consumer for every newly
// and uniquely ingested message.
type Event struct {
	TenantID        string `json:"tenantId"`
	ConversationID  string `json:"conversationId"`
	CustomerID      string `json:"customerId"`
	CustomerAddress string `json:"customerAddress"`
	Text            string `json:"text"`
}

// Downstream receives ingested messages. Must be safe to invoke
// concurrently from many tenants.
type Downstream interface {
	Handle(ctx context.Context, event Event) error
}

type Pipeline struct {
	customers     repository.CustomerRepository
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	downstream    Downstream

	dispatchTimeout time.Duration
	dispatches      sync.WaitGroup
}

func NewPipeline(
	customers repository.CustomerRepository,
	conversations repository.ConversationRepository,
	messages repository.MessageRepository,
	downstream Downstream,
	dispatchTimeout time.Duration,
) *Pipeline {
	return &Pipeline{
		customers:       customers,
		conversations:   conversations,
		messages:        messages,
		downstream:      downstream,
		dispatchTimeout: dispatchTimeout,
	}
}

// Ingest persists one inbound message. Duplicate deliveries of the same
// external id resolve to exactly one row: the unique index arbitrates, not
// a lock, so concurrent duplicates are safe. Downstream dispatch runs
// asynchronously; its failure never rolls back the persisted message.
func (p *Pipeline) Ingest(ctx context.Context, tenantID string, msg transport.InboundMessage) (Outcome, error) {
	if isGroupAddress(msg.SenderAddress) {
		return OutcomeSkipped, nil
	}
	if strings.TrimSpace(msg.Body) == "" {
		return OutcomeSkipped, nil
	}

	customer, err := p.customers.Upsert(ctx, model.UpsertCustomerParams{
		TenantID:    tenantID,
		Address:     msg.SenderAddress,
		DisplayName: msg.SenderName,
	})
	if err != nil {
		return "", fmt.Errorf("upsert customer: %w", err)
	}

	conv, err := p.resolveOpenConversation(ctx, tenantID, customer.ID)
	if err != nil {
		return "", fmt.Errorf("resolve conversation: %w", err)
	}

	persisted, err := p.messages.Create(ctx, model.CreateMessageParams{
		TenantID:       tenantID,
		ConversationID: conv.ID,
		CustomerID:     customer.ID,
		ExternalID:     msg.ExternalID,
		Direction:      model.MessageDirectionInbound,
		SenderAddress:  msg.SenderAddress,
		Body:           msg.Body,
		RawKind:        msg.RawKind,
		SentAt:         msg.SentAt,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateMessage) {
			return OutcomeDuplicate, nil
		}
		return "", fmt.Errorf("insert message: %w", err)
	}

	if err := p.conversations.TouchLastMessage(ctx, conv.ID, persisted.SentAt); err != nil {
		log.Error().Str("conversationId", conv.ID).Err(err).Msg("ingest: touch conversation")
	}

	p.dispatch(Event{
		TenantID:        tenantID,
		ConversationID:  conv.ID,
		CustomerID:      customer.ID,
		CustomerAddress: customer.Address,
		Text:            persisted.Body,
	})

	return OutcomeIngested, nil
}

// resolveOpenConversation returns the customer's single open conversation,
// creating one if needed. A concurrent create loses the partial unique
// index race and falls back to the winner's row.
func (p *Pipeline) resolveOpenConversation(ctx context.Context, tenantID, customerID string) (*model.Conversation, error) {
	conv, err := p.conversations.FindOpenByCustomerID(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv, err = p.conversations.Create(ctx, tenantID, customerID)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			conv, err = p.conversations.FindOpenByCustomerID(ctx, tenantID, customerID)
			if err != nil {
				return nil, err
			}
			// The winner's row can be gone again if it was closed between
			// the insert conflict and the re-lookup. Surface an error so
			// transport redelivery retries the whole resolution.
			if conv == nil {
				return nil, fmt.Errorf("open conversation for customer %s vanished after insert conflict", customerID)
			}
			return conv, nil
		}
		return nil, err
	}
	return conv, nil
}

func (p *Pipeline) dispatch(event Event) {
	p.dispatches.Add(1)
	go func() {
		defer p.dispatches.Done()

		ctx, cancel := context.WithTimeout(context.Background(), p.dispatchTimeout)
		defer cancel()

		if err := p.downstream.Handle(ctx, event); err != nil {
			// At-least-once downstream delivery: the message row stays
			// persisted; redelivery is the consumer's concern.
			log.Error().
				Str("tenantId", event.TenantID).
				Str("conversationId", event.ConversationID).
				Err(err).
				Msg("ingest: downstream dispatch failed")
		}
	}()
}

// Drain blocks until in-flight downstream dispatches finish.
func (p *Pipeline) Drain() {
	p.dispatches.Wait()
}

func isGroupAddress(address string) bool {
	return strings.HasSuffix(address, "@g.us") || strings.HasSuffix(address, "@broadcast")
}
