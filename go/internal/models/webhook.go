package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WebhookEventStatus defines the delivery state of a domain event.
type WebhookEventStatus string

const (
	WebhookEventStatusPending WebhookEventStatus = "pending"
	WebhookEventStatusSent    WebhookEventStatus = "sent"
	WebhookEventStatusFailed  WebhookEventStatus = "failed"
)

// WebhookSubscription is an external endpoint listening for event types.
// An EventTypes entry of "*" matches every type.
type WebhookSubscription struct {
	ID         uuid.UUID `json:"id"`
	OrgID      uuid.UUID `json:"org_id"`
	URL        string    `json:"url"`
	Secret     string    `json:"-"`
	EventTypes []string  `json:"event_types"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
}

// Matches reports whether the subscription wants events of the given type.
func (s WebhookSubscription) Matches(eventType string) bool {
	for _, t := range s.EventTypes {
		if t == eventType || t == "*" {
			return true
		}
	}
	return false
}

// WebhookEvent is a domain event waiting to be fanned out to subscribers.
type WebhookEvent struct {
	ID        uuid.UUID          `json:"id"`
	OrgID     uuid.UUID          `json:"org_id"`
	EventType string             `json:"event_type"`
	Payload   json.RawMessage    `json:"payload"`
	Status    WebhookEventStatus `json:"status"`
	Attempts  int                `json:"attempts"`
	LastError string             `json:"last_error,omitempty"`
	SentAt    *time.Time         `json:"sent_at,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// WebhookAttempt records one POST of one event to one subscriber.
type WebhookAttempt struct {
	EventID        uuid.UUID     `json:"event_id"`
	SubscriptionID uuid.UUID     `json:"subscription_id"`
	Attempt        int           `json:"attempt"`
	StatusCode     int           `json:"status_code"`
	Success        bool          `json:"success"`
	Error          string        `json:"error,omitempty"`
	Duration       time.Duration `json:"duration"`
}
