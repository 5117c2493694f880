package models

import (
	"time"

	"github.com/google/uuid"
)

// Sequence is an ordered list of timed steps a contact can be enrolled in.
type Sequence struct {
	ID        uuid.UUID `json:"id"`
	OrgID     uuid.UUID `json:"org_id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// SequenceStep is a single message in a sequence. Position is 1-based and
// DelayMinutes is relative to the previous step firing (or to enrollment for
// the first step).
type SequenceStep struct {
	ID           uuid.UUID `json:"id"`
	SequenceID   uuid.UUID `json:"sequence_id"`
	Position     int       `json:"position"`
	Channel      Channel   `json:"channel"`
	DelayMinutes int       `json:"delay_minutes"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
}

// Delay returns the step delay as a duration.
func (s SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayMinutes) * time.Minute
}

// EnrollmentStatus defines the state of a sequence enrollment.
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// SequenceEnrollment tracks one contact's progress through one sequence.
type SequenceEnrollment struct {
	ID           uuid.UUID        `json:"id"`
	OrgID        uuid.UUID        `json:"org_id"`
	SequenceID   uuid.UUID        `json:"sequence_id"`
	ContactID    uuid.UUID        `json:"contact_id"`
	CurrentStep  int              `json:"current_step"`
	Status       EnrollmentStatus `json:"status"`
	NextStepAt   *time.Time       `json:"next_step_at,omitempty"`
	CancelReason string           `json:"cancel_reason,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}
