package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActivityKind classifies an audit log entry.
type ActivityKind string

const (
	ActivityCampaignLaunched  ActivityKind = "campaign_launched"
	ActivityCampaignPaused    ActivityKind = "campaign_paused"
	ActivityCampaignResumed   ActivityKind = "campaign_resumed"
	ActivityCampaignCompleted ActivityKind = "campaign_completed"
	ActivityCampaignSend      ActivityKind = "campaign_send"
	ActivitySequenceEnrolled  ActivityKind = "sequence_enrolled"
	ActivitySequenceStep      ActivityKind = "sequence_step"
	ActivitySequenceCompleted ActivityKind = "sequence_completed"
	ActivitySequenceCancelled ActivityKind = "sequence_cancelled"
	ActivityDeliveryStatus    ActivityKind = "delivery_status"
	ActivityConsentRevoked    ActivityKind = "consent_revoked"
)

// Activity is one append-only audit entry.
type Activity struct {
	ID           uuid.UUID       `json:"id"`
	OrgID        uuid.UUID       `json:"org_id"`
	Kind         ActivityKind    `json:"kind"`
	ContactID    *uuid.UUID      `json:"contact_id,omitempty"`
	CampaignID   *uuid.UUID      `json:"campaign_id,omitempty"`
	SequenceID   *uuid.UUID      `json:"sequence_id,omitempty"`
	EnrollmentID *uuid.UUID      `json:"enrollment_id,omitempty"`
	DeliveryID   *uuid.UUID      `json:"delivery_id,omitempty"`
	Channel      Channel         `json:"channel,omitempty"`
	Outcome      string          `json:"outcome,omitempty"`
	Detail       string          `json:"detail,omitempty"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
