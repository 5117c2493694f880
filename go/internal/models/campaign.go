package models

import (
	"time"

	"github.com/google/uuid"
)

// Channel is the transport a message goes out on.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether c is a known channel.
func (c Channel) Valid() bool {
	return c == ChannelEmail || c == ChannelSMS
}

// CampaignStatus defines the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusSending   CampaignStatus = "sending"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// FilterCriteria holds the JSONB audience filter for a campaign.
// Empty fields are ignored.
type FilterCriteria struct {
	Tags          []string   `json:"tags,omitempty"`
	PipelineStage string     `json:"pipeline_stage,omitempty"`
	AssignedTo    *uuid.UUID `json:"assigned_to,omitempty"`
}

// Campaign represents a one-shot broadcast to a filtered audience.
type Campaign struct {
	ID              uuid.UUID      `json:"id"`
	OrgID           uuid.UUID      `json:"org_id"`
	Name            string         `json:"name"`
	Channel         Channel        `json:"channel"`
	Subject         string         `json:"subject"`
	Body            string         `json:"body"`
	Status          CampaignStatus `json:"status"`
	FilterCriteria  FilterCriteria `json:"filter_criteria"`
	BatchSize       int            `json:"batch_size"`
	TotalRecipients int            `json:"total_recipients"`
	SentCount       int            `json:"sent_count"`
	FailedCount     int            `json:"failed_count"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
