package domain

import (
	"context"
	"time"
)

// EventBus defines the interface for event-driven communication.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string            `json:"id"`
	Topic     string            `json:"topic"`
	Payload   []byte            `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp int64             `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string `json:"type"`

	// Channel settings (Community tier)
	ChannelBufferSize int `json:"channelBufferSize"`

	// NATS settings (Pro tier)
	NATSUrl           string `json:"natsUrl"`
	NATSToken         string `json:"-"`
	NATSMaxReconnects int    `json:"natsMaxReconnects"`
	NATSReconnectWait int    `json:"natsReconnectWait"` // seconds

	// NATSQueueGroup load-balances each subject across replicas when set.
	NATSQueueGroup string `json:"natsQueueGroup"`
}

// Standard topic names for the claim lifecycle.
const (
	TopicClaimSubmit   = "claimguard.claim.submit"
	TopicClaimCreated  = "claimguard.claim.created"
	TopicClaimFlagged  = "claimguard.claim.flagged"
	TopicClaimReviewed = "claimguard.claim.reviewed"
)

// ClaimEvent is the payload published on claim lifecycle topics.
type ClaimEvent struct {
	ClaimID           string    `json:"claimId"`
	EmployeeName      string    `json:"employeeName"`
	Status            Status    `json:"status"`
	PreviousStatus    Status    `json:"previousStatus,omitempty"`
	RiskLevel         RiskLevel `json:"riskLevel"`
	AuthenticityScore float64   `json:"authenticityScore"`
	IsDuplicate       bool      `json:"isDuplicate"`
	Reviewer          string    `json:"reviewer,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}
