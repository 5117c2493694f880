// Package webhook stores domain events and fans them out to subscriber
// endpoints with signed, retried POSTs.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/models"
)

// Event types emitted by the engine.
const (
	EventCampaignLaunched           = "campaign.launched"
	EventCampaignPaused             = "campaign.paused"
	EventCampaignResumed            = "campaign.resumed"
	EventCampaignCompleted          = "campaign.completed"
	EventSequenceEnrolled           = "sequence.enrolled"
	EventSequenceEnrollmentComplete = "sequence.enrollment_completed"
	EventSequenceEnrollmentCancel   = "sequence.enrollment_cancelled"
)

// DeliveryEvent returns the event type for an inbound delivery status.
func DeliveryEvent(status string) string {
	return "delivery." + status
}

// EventStore defines what the emitter needs from the repository
type EventStore interface {
	CreateEvent(ctx context.Context, orgID uuid.UUID, eventType string, payload json.RawMessage) (*models.WebhookEvent, error)
}

// Envelope is the JSON body subscribers receive.
type Envelope struct {
	EventType  string          `json:"event_type"`
	OrgID      uuid.UUID       `json:"org_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Emitter records pending webhook events. Dispatch happens later in a tick.
type Emitter struct {
	store EventStore
	clock clockwork.Clock
}

func NewEmitter(store EventStore, clock clockwork.Clock) *Emitter {
	return &Emitter{store: store, clock: clock}
}

func (e *Emitter) Emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	payload, err := json.Marshal(Envelope{
		EventType:  eventType,
		OrgID:      orgID,
		OccurredAt: e.clock.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal %s envelope: %w", eventType, err)
	}
	if _, err := e.store.CreateEvent(ctx, orgID, eventType, payload); err != nil {
		return err
	}
	return nil
}
