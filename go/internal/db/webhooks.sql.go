package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const webhookEventColumns = `id, org_id, event_type, payload, status, attempts, last_error, locked_until,
    sent_at, created_at, updated_at`

func scanWebhookEvent(row interface{ Scan(...interface{}) error }) (WebhookEvent, error) {
	var i WebhookEvent
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.EventType,
		&i.Payload,
		&i.Status,
		&i.Attempts,
		&i.LastError,
		&i.LockedUntil,
		&i.SentAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createWebhookEvent = `-- name: CreateWebhookEvent :one
INSERT INTO webhook_events (org_id, event_type, payload)
VALUES ($1, $2, $3)
RETURNING ` + webhookEventColumns + `
`

type CreateWebhookEventParams struct {
	OrgID     uuid.UUID
	EventType string
	Payload   json.RawMessage
}

func (q *Queries) CreateWebhookEvent(ctx context.Context, arg CreateWebhookEventParams) (WebhookEvent, error) {
	return scanWebhookEvent(q.db.QueryRowContext(ctx, createWebhookEvent, arg.OrgID, arg.EventType, arg.Payload))
}

const claimPendingWebhookEvents = `-- name: ClaimPendingWebhookEvents :many
UPDATE webhook_events
SET locked_until = $2, updated_at = now()
WHERE id IN (
    SELECT id FROM webhook_events
    WHERE status = 'pending'
      AND attempts < $3
      AND (locked_until IS NULL OR locked_until < $1)
    ORDER BY created_at, id
    LIMIT $4
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + webhookEventColumns + `
`

type ClaimPendingWebhookEventsParams struct {
	Now         time.Time
	LockedUntil time.Time
	MaxAttempts int32
	Limit       int32
}

func (q *Queries) ClaimPendingWebhookEvents(ctx context.Context, arg ClaimPendingWebhookEventsParams) ([]WebhookEvent, error) {
	rows, err := q.db.QueryContext(ctx, claimPendingWebhookEvents, arg.Now, arg.LockedUntil, arg.MaxAttempts, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WebhookEvent
	for rows.Next() {
		i, err := scanWebhookEvent(rows)
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

const listActiveSubscriptionsForEvent = `-- name: ListActiveSubscriptionsForEvent :many
SELECT id, org_id, url, secret, event_types, active, created_at
FROM webhook_subscriptions
WHERE org_id = $1
  AND active = TRUE
  AND ($2 = ANY(event_types) OR '*' = ANY(event_types))
ORDER BY created_at, id
`

type ListActiveSubscriptionsForEventParams struct {
	OrgID     uuid.UUID
	EventType string
}

func (q *Queries) ListActiveSubscriptionsForEvent(ctx context.Context, arg ListActiveSubscriptionsForEventParams) ([]WebhookSubscription, error) {
	rows, err := q.db.QueryContext(ctx, listActiveSubscriptionsForEvent, arg.OrgID, arg.EventType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []WebhookSubscription
	for rows.Next() {
		var i WebhookSubscription
		if err := rows.Scan(
			&i.ID,
			&i.OrgID,
			&i.Url,
			&i.Secret,
			pq.Array(&i.EventTypes),
			&i.Active,
			&i.CreatedAt,
		); err != nil {
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

const markWebhookEventSent = `-- name: MarkWebhookEventSent :exec
UPDATE webhook_events
SET status = 'sent', sent_at = $2, locked_until = NULL, last_error = '', updated_at = now()
WHERE id = $1 AND status = 'pending'
`

type MarkWebhookEventSentParams struct {
	ID     uuid.UUID
	SentAt time.Time
}

func (q *Queries) MarkWebhookEventSent(ctx context.Context, arg MarkWebhookEventSentParams) error {
	_, err := q.db.ExecContext(ctx, markWebhookEventSent, arg.ID, arg.SentAt)
	return err
}

const recordWebhookEventFailure = `-- name: RecordWebhookEventFailure :one
UPDATE webhook_events
SET attempts = attempts + 1,
    status = CASE WHEN attempts + 1 >= $3 THEN 'failed' ELSE 'pending' END,
    last_error = $2,
    locked_until = NULL,
    updated_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING ` + webhookEventColumns + `
`

type RecordWebhookEventFailureParams struct {
	ID          uuid.UUID
	LastError   string
	MaxAttempts int32
}

// RecordWebhookEventFailure increments attempts and moves the event to failed
// in the same statement once MaxAttempts is reached.
func (q *Queries) RecordWebhookEventFailure(ctx context.Context, arg RecordWebhookEventFailureParams) (WebhookEvent, error) {
	return scanWebhookEvent(q.db.QueryRowContext(ctx, recordWebhookEventFailure, arg.ID, arg.LastError, arg.MaxAttempts))
}

const insertWebhookAttempt = `-- name: InsertWebhookAttempt :exec
INSERT INTO webhook_attempts (event_id, subscription_id, attempt, status_code, success, error, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

type InsertWebhookAttemptParams struct {
	EventID        uuid.UUID
	SubscriptionID uuid.UUID
	Attempt        int32
	StatusCode     int32
	Success        bool
	Error          string
	DurationMs     int64
}

func (q *Queries) InsertWebhookAttempt(ctx context.Context, arg InsertWebhookAttemptParams) error {
	_, err := q.db.ExecContext(ctx, insertWebhookAttempt,
		arg.EventID,
		arg.SubscriptionID,
		arg.Attempt,
		arg.StatusCode,
		arg.Success,
		arg.Error,
		arg.DurationMs,
	)
	return err
}

const countPendingWebhookEvents = `-- name: CountPendingWebhookEvents :one
SELECT COUNT(*) FROM webhook_events WHERE status = 'pending'
`

func (q *Queries) CountPendingWebhookEvents(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countPendingWebhookEvents).Scan(&count)
	return count, err
}
