// Package sequence enrolls contacts in multi-step sequences and fires their
// steps as they come due.
package sequence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"github.com/rs/zerolog/log"
)

// SequenceRepository defines what the app layer needs from the repository
type SequenceRepository interface {
	GetSequence(ctx context.Context, id uuid.UUID) (*models.Sequence, error)
	GetStep(ctx context.Context, sequenceID uuid.UUID, position int) (*models.SequenceStep, error)
	CreateEnrollment(ctx context.Context, e models.SequenceEnrollment) (*models.SequenceEnrollment, error)
	GetEnrollment(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error)
	GetActiveEnrollment(ctx context.Context, sequenceID, contactID uuid.UUID) (*models.SequenceEnrollment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error)
}

// ContactReader loads contacts
type ContactReader interface {
	GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
}

// EventEmitter queues outbound webhook events
type EventEmitter interface {
	Emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) error
}

// ActivityRecorder appends to the audit log
type ActivityRecorder interface {
	Record(ctx context.Context, a models.Activity)
}

// EnrollRequest is the body of the enroll endpoint.
type EnrollRequest struct {
	ContactID uuid.UUID `json:"contact_id"`
}

type EnrollResponse struct {
	EnrollmentID uuid.UUID `json:"enrollment_id"`
}

type CancelRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

const defaultCancelReason = "cancelled by user"

// App handles enrollment business logic
type App struct {
	repo     SequenceRepository
	contacts ContactReader
	emitter  EventEmitter
	recorder ActivityRecorder
	clock    clockwork.Clock
}

func NewApp(repo SequenceRepository, contacts ContactReader, emitter EventEmitter, recorder ActivityRecorder, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		contacts: contacts,
		emitter:  emitter,
		recorder: recorder,
		clock:    clock,
	}
}

// Enroll starts a contact on step 1 of a sequence. The first step fires
// after its own delay.
func (a *App) Enroll(ctx context.Context, sequenceID uuid.UUID, req EnrollRequest) (*models.SequenceEnrollment, error) {
	if req.ContactID == uuid.Nil {
		return nil, apperrors.Validation("contact_id is required")
	}

	seq, err := a.repo.GetSequence(ctx, sequenceID)
	if err != nil {
		return nil, err
	}
	if !seq.Active {
		return nil, apperrors.Validation("sequence %s is not active", sequenceID)
	}

	contact, err := a.contacts.GetContact(ctx, req.ContactID)
	if err != nil {
		return nil, err
	}
	if contact.OrgID != seq.OrgID {
		return nil, apperrors.NotFound("contact", req.ContactID)
	}

	first, err := a.repo.GetStep(ctx, sequenceID, 1)
	if err != nil {
		return nil, err
	}
	if first == nil {
		return nil, apperrors.Validation("sequence %s has no steps", sequenceID)
	}

	existing, err := a.repo.GetActiveEnrollment(ctx, sequenceID, req.ContactID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("contact %s is already enrolled in sequence %s", req.ContactID, sequenceID)
	}

	next := a.clock.Now().Add(first.Delay())
	enrollment, err := a.repo.CreateEnrollment(ctx, models.SequenceEnrollment{
		OrgID:       seq.OrgID,
		SequenceID:  sequenceID,
		ContactID:   req.ContactID,
		CurrentStep: 1,
		Status:      models.EnrollmentStatusActive,
		NextStepAt:  &next,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("enrollment_id", enrollment.ID.String()).
		Str("sequence_id", sequenceID.String()).
		Str("contact_id", req.ContactID.String()).
		Time("next_step_at", next).
		Msg("contact enrolled")

	a.emit(ctx, seq.OrgID, webhook.EventSequenceEnrolled, enrollmentPayload(enrollment))
	a.record(ctx, enrollment, models.ActivitySequenceEnrolled, "", "")
	return enrollment, nil
}

// Cancel stops an active enrollment. Cancelling an enrollment that already
// finished is an InvalidState error.
func (a *App) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	enrollment, err := a.repo.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	if enrollment.Status != models.EnrollmentStatusActive {
		return apperrors.InvalidState("enrollment %s is %s", id, enrollment.Status)
	}
	if reason == "" {
		reason = defaultCancelReason
	}
	ok, err := a.repo.Cancel(ctx, id, reason)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.InvalidState("enrollment %s is no longer active", id)
	}
	enrollment.Status = models.EnrollmentStatusCancelled
	enrollment.CancelReason = reason

	a.emit(ctx, enrollment.OrgID, webhook.EventSequenceEnrollmentCancel, enrollmentPayload(enrollment))
	a.record(ctx, enrollment, models.ActivitySequenceCancelled, string(models.EnrollmentStatusCancelled), reason)
	return nil
}

func (a *App) emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) {
	if err := a.emitter.Emit(ctx, orgID, eventType, data); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to emit webhook event")
	}
}

func (a *App) record(ctx context.Context, e *models.SequenceEnrollment, kind models.ActivityKind, outcome, detail string) {
	if outcome == "" {
		outcome = string(e.Status)
	}
	a.recorder.Record(ctx, models.Activity{
		OrgID:        e.OrgID,
		Kind:         kind,
		ContactID:    &e.ContactID,
		SequenceID:   &e.SequenceID,
		EnrollmentID: &e.ID,
		Outcome:      outcome,
		Detail:       detail,
	})
}

type enrollmentEvent struct {
	EnrollmentID uuid.UUID  `json:"enrollment_id"`
	SequenceID   uuid.UUID  `json:"sequence_id"`
	ContactID    uuid.UUID  `json:"contact_id"`
	Status       string     `json:"status"`
	CurrentStep  int        `json:"current_step"`
	NextStepAt   *time.Time `json:"next_step_at,omitempty"`
	Reason       string     `json:"reason,omitempty"`
}

func enrollmentPayload(e *models.SequenceEnrollment) enrollmentEvent {
	return enrollmentEvent{
		EnrollmentID: e.ID,
		SequenceID:   e.SequenceID,
		ContactID:    e.ContactID,
		Status:       string(e.Status),
		CurrentStep:  e.CurrentStep,
		NextStepAt:   e.NextStepAt,
		Reason:       e.CancelReason,
	}
}
