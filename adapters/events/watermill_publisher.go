package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/tollgate-labs/tollgate/ports"
)

// Topic carries every gating audit event
const Topic = "tollgate.auth"

// Event kinds
const (
	KindAccessGranted    = "access_granted"
	KindAccessDenied     = "access_denied"
	KindSessionRefreshed = "session_refreshed"
)

// AuthEvent is the JSON payload published for each gating decision
type AuthEvent struct {
	Kind    string    `json:"kind"`
	Address string    `json:"address"`
	Balance string    `json:"balance,omitempty"`
	At      time.Time `json:"at"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill-backed audit publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// PublishAccessGranted publishes a grant decision
func (p *WatermillPublisher) PublishAccessGranted(ctx context.Context, address string, balance string) error {
	return p.publish(AuthEvent{Kind: KindAccessGranted, Address: address, Balance: balance})
}

// PublishAccessDenied publishes a denial decision
func (p *WatermillPublisher) PublishAccessDenied(ctx context.Context, address string, balance string) error {
	return p.publish(AuthEvent{Kind: KindAccessDenied, Address: address, Balance: balance})
}

// PublishSessionRefreshed publishes a session renewal
func (p *WatermillPublisher) PublishSessionRefreshed(ctx context.Context, address string) error {
	return p.publish(AuthEvent{Kind: KindSessionRefreshed, Address: address})
}

func (p *WatermillPublisher) publish(event AuthEvent) error {
	event.At = time.Now().UTC()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(Topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
