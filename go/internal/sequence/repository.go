package sequence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sqlutil"
)

// activeEnrollmentIndex is the partial unique index that allows one active
// enrollment per sequence and contact.
const activeEnrollmentIndex = "sequence_enrollments_one_active"

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetSequence(ctx context.Context, id uuid.UUID) (db.Sequence, error)
	GetSequenceStep(ctx context.Context, arg db.GetSequenceStepParams) (db.SequenceStep, error)
	CreateEnrollment(ctx context.Context, arg db.CreateEnrollmentParams) (db.SequenceEnrollment, error)
	GetEnrollment(ctx context.Context, id uuid.UUID) (db.SequenceEnrollment, error)
	GetActiveEnrollment(ctx context.Context, arg db.GetActiveEnrollmentParams) (db.SequenceEnrollment, error)
	ClaimDueEnrollments(ctx context.Context, arg db.ClaimDueEnrollmentsParams) ([]db.SequenceEnrollment, error)
	AdvanceEnrollment(ctx context.Context, arg db.AdvanceEnrollmentParams) (int64, error)
	CompleteEnrollment(ctx context.Context, arg db.CompleteEnrollmentParams) (int64, error)
	CancelEnrollment(ctx context.Context, arg db.CancelEnrollmentParams) (int64, error)
}

// Repository implements sequence and enrollment data access
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

func (r *Repository) GetSequence(ctx context.Context, id uuid.UUID) (*models.Sequence, error) {
	row, err := r.queries.GetSequence(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("sequence", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}
	return &models.Sequence{
		ID:        row.ID,
		OrgID:     row.OrgID,
		Name:      row.Name,
		Active:    row.Active,
		CreatedAt: row.CreatedAt,
	}, nil
}

// GetStep returns the step at a 1-based position, or nil when the sequence
// has no such step.
func (r *Repository) GetStep(ctx context.Context, sequenceID uuid.UUID, position int) (*models.SequenceStep, error) {
	row, err := r.queries.GetSequenceStep(ctx, db.GetSequenceStepParams{
		SequenceID: sequenceID,
		Position:   int32(position),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence step: %w", err)
	}
	return &models.SequenceStep{
		ID:           row.ID,
		SequenceID:   row.SequenceID,
		Position:     int(row.Position),
		Channel:      models.Channel(row.Channel),
		DelayMinutes: int(row.DelayMinutes),
		Subject:      row.Subject,
		Body:         row.Body,
	}, nil
}

// CreateEnrollment inserts an active enrollment at step 1. A concurrent
// duplicate surfaces as a Conflict error and leaves no row behind.
func (r *Repository) CreateEnrollment(ctx context.Context, e models.SequenceEnrollment) (*models.SequenceEnrollment, error) {
	var next time.Time
	if e.NextStepAt != nil {
		next = *e.NextStepAt
	}
	row, err := r.queries.CreateEnrollment(ctx, db.CreateEnrollmentParams{
		OrgID:       e.OrgID,
		SequenceID:  e.SequenceID,
		ContactID:   e.ContactID,
		CurrentStep: int32(e.CurrentStep),
		NextStepAt:  next,
	})
	if sqlutil.IsUniqueViolation(err, activeEnrollmentIndex) {
		return nil, apperrors.Conflict("contact %s is already enrolled in sequence %s", e.ContactID, e.SequenceID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}
	out := enrollmentToModel(row)
	return &out, nil
}

func (r *Repository) GetEnrollment(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	row, err := r.queries.GetEnrollment(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("enrollment", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	out := enrollmentToModel(row)
	return &out, nil
}

// GetActiveEnrollment returns nil when the contact has no active enrollment
// in the sequence.
func (r *Repository) GetActiveEnrollment(ctx context.Context, sequenceID, contactID uuid.UUID) (*models.SequenceEnrollment, error) {
	row, err := r.queries.GetActiveEnrollment(ctx, db.GetActiveEnrollmentParams{
		SequenceID: sequenceID,
		ContactID:  contactID,
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active enrollment: %w", err)
	}
	out := enrollmentToModel(row)
	return &out, nil
}

// ClaimDue leases up to limit due enrollments until leaseUntil.
func (r *Repository) ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]models.SequenceEnrollment, error) {
	rows, err := r.queries.ClaimDueEnrollments(ctx, db.ClaimDueEnrollmentsParams{
		Now:        now,
		LeaseUntil: leaseUntil,
		Limit:      int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim due enrollments: %w", err)
	}
	out := make([]models.SequenceEnrollment, 0, len(rows))
	for _, row := range rows {
		out = append(out, enrollmentToModel(row))
	}
	return out, nil
}

// Advance moves an enrollment from one step to the next. It reports false if
// the enrollment was no longer active at fromStep.
func (r *Repository) Advance(ctx context.Context, id uuid.UUID, fromStep, toStep int, nextStepAt time.Time) (bool, error) {
	n, err := r.queries.AdvanceEnrollment(ctx, db.AdvanceEnrollmentParams{
		ID:          id,
		FromStep:    int32(fromStep),
		CurrentStep: int32(toStep),
		NextStepAt:  nextStepAt,
	})
	if err != nil {
		return false, fmt.Errorf("failed to advance enrollment: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	n, err := r.queries.CompleteEnrollment(ctx, db.CompleteEnrollmentParams{ID: id, CompletedAt: at})
	if err != nil {
		return false, fmt.Errorf("failed to complete enrollment: %w", err)
	}
	return n > 0, nil
}

func (r *Repository) Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	n, err := r.queries.CancelEnrollment(ctx, db.CancelEnrollmentParams{ID: id, Reason: reason})
	if err != nil {
		return false, fmt.Errorf("failed to cancel enrollment: %w", err)
	}
	return n > 0, nil
}

func enrollmentToModel(row db.SequenceEnrollment) models.SequenceEnrollment {
	return models.SequenceEnrollment{
		ID:           row.ID,
		OrgID:        row.OrgID,
		SequenceID:   row.SequenceID,
		ContactID:    row.ContactID,
		CurrentStep:  int(row.CurrentStep),
		Status:       models.EnrollmentStatus(row.Status),
		NextStepAt:   sqlutil.FromSqlTime(row.NextStepAt),
		CancelReason: row.CancelReason,
		CompletedAt:  sqlutil.FromSqlTime(row.CompletedAt),
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
