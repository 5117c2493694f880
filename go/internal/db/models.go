package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

type Activity struct {
	ID           uuid.UUID
	OrgID        uuid.UUID
	Kind         string
	ContactID    uuid.NullUUID
	CampaignID   uuid.NullUUID
	SequenceID   uuid.NullUUID
	EnrollmentID uuid.NullUUID
	DeliveryID   uuid.NullUUID
	Channel      string
	Outcome      string
	Detail       string
	Metadata     pqtype.NullRawMessage
	CreatedAt    time.Time
}

type Campaign struct {
	ID              uuid.UUID
	OrgID           uuid.UUID
	Name            string
	Channel         string
	Subject         string
	Body            string
	Status          string
	FilterCriteria  pqtype.NullRawMessage
	BatchSize       int32
	TotalRecipients int32
	SentCount       int32
	FailedCount     int32
	StartedAt       sql.NullTime
	CompletedAt     sql.NullTime
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ContactRow is a contact joined with its organization and assignee names.
type ContactRow struct {
	ID               uuid.UUID
	OrgID            uuid.UUID
	FirstName        string
	LastName         string
	Email            sql.NullString
	Phone            sql.NullString
	Tags             []string
	PipelineStage    sql.NullString
	AssignedTo       uuid.NullUUID
	AssigneeName     sql.NullString
	OrganizationName string
	EmailConsent     bool
	SmsConsent       bool
	DoNotContact     bool
	MergedIntoID     uuid.NullUUID
}

type DailyStat struct {
	OrgID     uuid.UUID
	StatDate  time.Time
	Sent      int32
	Delivered int32
	Opened    int32
	Clicked   int32
	Bounced   int32
}

type Delivery struct {
	ID                uuid.UUID
	OrgID             uuid.UUID
	CampaignID        uuid.NullUUID
	EnrollmentID      uuid.NullUUID
	ContactID         uuid.UUID
	Channel           string
	Status            string
	ProviderMessageID sql.NullString
	Error             string
	ClaimedAt         sql.NullTime
	SentAt            sql.NullTime
	DeliveredAt       sql.NullTime
	OpenedAt          sql.NullTime
	ClickedAt         sql.NullTime
	BouncedAt         sql.NullTime
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type OrgSendConfig struct {
	OrgID                 uuid.UUID
	DailyLimit            int32
	WarmupEnabled         bool
	FromName              string
	FromEmail             string
	ReplyTo               string
	SmsMessagingServiceID string
	SmsFromNumber         string
	UpdatedAt             time.Time
}

type Sequence struct {
	ID        uuid.UUID
	OrgID     uuid.UUID
	Name      string
	Active    bool
	CreatedAt time.Time
}

type SequenceEnrollment struct {
	ID           uuid.UUID
	OrgID        uuid.UUID
	SequenceID   uuid.UUID
	ContactID    uuid.UUID
	CurrentStep  int32
	Status       string
	NextStepAt   sql.NullTime
	CancelReason string
	CompletedAt  sql.NullTime
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type SequenceStep struct {
	ID           uuid.UUID
	SequenceID   uuid.UUID
	Position     int32
	Channel      string
	DelayMinutes int32
	Subject      string
	Body         string
}

type WebhookEvent struct {
	ID          uuid.UUID
	OrgID       uuid.UUID
	EventType   string
	Payload     json.RawMessage
	Status      string
	Attempts    int32
	LastError   string
	LockedUntil sql.NullTime
	SentAt      sql.NullTime
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WebhookSubscription struct {
	ID         uuid.UUID
	OrgID      uuid.UUID
	Url        string
	Secret     string
	EventTypes []string
	Active     bool
	CreatedAt  time.Time
}
