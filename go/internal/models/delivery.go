package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryStatus defines the state of a single outbound message.
type DeliveryStatus string

const (
	DeliveryStatusQueued       DeliveryStatus = "queued"
	DeliveryStatusSending      DeliveryStatus = "sending"
	DeliveryStatusSent         DeliveryStatus = "sent"
	DeliveryStatusFailed       DeliveryStatus = "failed"
	DeliveryStatusDelivered    DeliveryStatus = "delivered"
	DeliveryStatusBounced      DeliveryStatus = "bounced"
	DeliveryStatusOpened       DeliveryStatus = "opened"
	DeliveryStatusClicked      DeliveryStatus = "clicked"
	DeliveryStatusUnsubscribed DeliveryStatus = "unsubscribed"
)

// Delivery is one message to one contact. CampaignID is nil for ad-hoc
// sends such as sequence steps.
type Delivery struct {
	ID                uuid.UUID      `json:"id"`
	OrgID             uuid.UUID      `json:"org_id"`
	CampaignID        *uuid.UUID     `json:"campaign_id,omitempty"`
	EnrollmentID      *uuid.UUID     `json:"enrollment_id,omitempty"`
	ContactID         uuid.UUID      `json:"contact_id"`
	Channel           Channel        `json:"channel"`
	Status            DeliveryStatus `json:"status"`
	ProviderMessageID string         `json:"provider_message_id,omitempty"`
	Error             string         `json:"error,omitempty"`
	ClaimedAt         *time.Time     `json:"claimed_at,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	DeliveredAt       *time.Time     `json:"delivered_at,omitempty"`
	OpenedAt          *time.Time     `json:"opened_at,omitempty"`
	ClickedAt         *time.Time     `json:"clicked_at,omitempty"`
	BouncedAt         *time.Time     `json:"bounced_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
