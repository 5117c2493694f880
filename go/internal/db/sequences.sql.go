package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const getSequence = `-- name: GetSequence :one
SELECT id, org_id, name, active, created_at FROM sequences WHERE id = $1
`

func (q *Queries) GetSequence(ctx context.Context, id uuid.UUID) (Sequence, error) {
	row := q.db.QueryRowContext(ctx, getSequence, id)
	var i Sequence
	err := row.Scan(&i.ID, &i.OrgID, &i.Name, &i.Active, &i.CreatedAt)
	return i, err
}

const getSequenceStep = `-- name: GetSequenceStep :one
SELECT id, sequence_id, position, channel, delay_minutes, subject, body
FROM sequence_steps
WHERE sequence_id = $1 AND position = $2
`

type GetSequenceStepParams struct {
	SequenceID uuid.UUID
	Position   int32
}

func (q *Queries) GetSequenceStep(ctx context.Context, arg GetSequenceStepParams) (SequenceStep, error) {
	row := q.db.QueryRowContext(ctx, getSequenceStep, arg.SequenceID, arg.Position)
	var i SequenceStep
	err := row.Scan(
		&i.ID,
		&i.SequenceID,
		&i.Position,
		&i.Channel,
		&i.DelayMinutes,
		&i.Subject,
		&i.Body,
	)
	return i, err
}

const enrollmentColumns = `id, org_id, sequence_id, contact_id, current_step, status, next_step_at,
    cancel_reason, completed_at, created_at, updated_at`

func scanEnrollment(row interface{ Scan(...interface{}) error }) (SequenceEnrollment, error) {
	var i SequenceEnrollment
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.SequenceID,
		&i.ContactID,
		&i.CurrentStep,
		&i.Status,
		&i.NextStepAt,
		&i.CancelReason,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createEnrollment = `-- name: CreateEnrollment :one
INSERT INTO sequence_enrollments (org_id, sequence_id, contact_id, current_step, status, next_step_at)
VALUES ($1, $2, $3, $4, 'active', $5)
RETURNING ` + enrollmentColumns + `
`

type CreateEnrollmentParams struct {
	OrgID       uuid.UUID
	SequenceID  uuid.UUID
	ContactID   uuid.UUID
	CurrentStep int32
	NextStepAt  time.Time
}

func (q *Queries) CreateEnrollment(ctx context.Context, arg CreateEnrollmentParams) (SequenceEnrollment, error) {
	return scanEnrollment(q.db.QueryRowContext(ctx, createEnrollment,
		arg.OrgID,
		arg.SequenceID,
		arg.ContactID,
		arg.CurrentStep,
		arg.NextStepAt,
	))
}

const getEnrollment = `-- name: GetEnrollment :one
SELECT ` + enrollmentColumns + ` FROM sequence_enrollments WHERE id = $1
`

func (q *Queries) GetEnrollment(ctx context.Context, id uuid.UUID) (SequenceEnrollment, error) {
	return scanEnrollment(q.db.QueryRowContext(ctx, getEnrollment, id))
}

const getActiveEnrollment = `-- name: GetActiveEnrollment :one
SELECT ` + enrollmentColumns + ` FROM sequence_enrollments
WHERE sequence_id = $1 AND contact_id = $2 AND status = 'active'
`

type GetActiveEnrollmentParams struct {
	SequenceID uuid.UUID
	ContactID  uuid.UUID
}

func (q *Queries) GetActiveEnrollment(ctx context.Context, arg GetActiveEnrollmentParams) (SequenceEnrollment, error) {
	return scanEnrollment(q.db.QueryRowContext(ctx, getActiveEnrollment, arg.SequenceID, arg.ContactID))
}

const claimDueEnrollments = `-- name: ClaimDueEnrollments :many
UPDATE sequence_enrollments
SET next_step_at = $2, updated_at = now()
WHERE id IN (
    SELECT id FROM sequence_enrollments
    WHERE status = 'active' AND next_step_at <= $1
    ORDER BY next_step_at, id
    LIMIT $3
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + enrollmentColumns + `
`

type ClaimDueEnrollmentsParams struct {
	Now        time.Time
	LeaseUntil time.Time
	Limit      int32
}

// ClaimDueEnrollments leases due enrollments by pushing next_step_at to
// LeaseUntil, so a concurrent tick will not select them again. The caller
// sets the real next_step_at when it advances the enrollment.
func (q *Queries) ClaimDueEnrollments(ctx context.Context, arg ClaimDueEnrollmentsParams) ([]SequenceEnrollment, error) {
	rows, err := q.db.QueryContext(ctx, claimDueEnrollments, arg.Now, arg.LeaseUntil, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []SequenceEnrollment
	for rows.Next() {
		i, err := scanEnrollment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const advanceEnrollment = `-- name: AdvanceEnrollment :execrows
UPDATE sequence_enrollments
SET current_step = $3, next_step_at = $4, updated_at = now()
WHERE id = $1 AND current_step = $2 AND status = 'active'
`

type AdvanceEnrollmentParams struct {
	ID          uuid.UUID
	FromStep    int32
	CurrentStep int32
	NextStepAt  time.Time
}

func (q *Queries) AdvanceEnrollment(ctx context.Context, arg AdvanceEnrollmentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, advanceEnrollment, arg.ID, arg.FromStep, arg.CurrentStep, arg.NextStepAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const completeEnrollment = `-- name: CompleteEnrollment :execrows
UPDATE sequence_enrollments
SET status = 'completed', completed_at = $2, next_step_at = NULL, updated_at = now()
WHERE id = $1 AND status = 'active'
`

type CompleteEnrollmentParams struct {
	ID          uuid.UUID
	CompletedAt time.Time
}

func (q *Queries) CompleteEnrollment(ctx context.Context, arg CompleteEnrollmentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeEnrollment, arg.ID, arg.CompletedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const cancelEnrollment = `-- name: CancelEnrollment :execrows
UPDATE sequence_enrollments
SET status = 'cancelled', cancel_reason = $2, next_step_at = NULL, updated_at = now()
WHERE id = $1 AND status = 'active'
`

type CancelEnrollmentParams struct {
	ID     uuid.UUID
	Reason string
}

func (q *Queries) CancelEnrollment(ctx context.Context, arg CancelEnrollmentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, cancelEnrollment, arg.ID, arg.Reason)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
