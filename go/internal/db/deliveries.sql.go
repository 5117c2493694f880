package db

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const deliveryColumns = `id, org_id, campaign_id, enrollment_id, contact_id, channel, status, provider_message_id,
    error, claimed_at, sent_at, delivered_at, opened_at, clicked_at, bounced_at, created_at, updated_at`

func scanDelivery(row interface{ Scan(...interface{}) error }) (Delivery, error) {
	var i Delivery
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.CampaignID,
		&i.EnrollmentID,
		&i.ContactID,
		&i.Channel,
		&i.Status,
		&i.ProviderMessageID,
		&i.Error,
		&i.ClaimedAt,
		&i.SentAt,
		&i.DeliveredAt,
		&i.OpenedAt,
		&i.ClickedAt,
		&i.BouncedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

func scanDeliveries(rows *sql.Rows) ([]Delivery, error) {
	defer rows.Close()
	var items []Delivery
	for rows.Next() {
		i, err := scanDelivery(rows)
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

const insertQueuedDeliveries = `-- name: InsertQueuedDeliveries :execrows
INSERT INTO deliveries (org_id, campaign_id, contact_id, channel, status)
SELECT $1, $2, contact_id::uuid, $4, 'queued'
FROM unnest($3::text[]) AS contact_id
ON CONFLICT (campaign_id, contact_id) DO NOTHING
`

type InsertQueuedDeliveriesParams struct {
	OrgID      uuid.UUID
	CampaignID uuid.UUID
	ContactIDs []string
	Channel    string
}

func (q *Queries) InsertQueuedDeliveries(ctx context.Context, arg InsertQueuedDeliveriesParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, insertQueuedDeliveries,
		arg.OrgID,
		arg.CampaignID,
		pq.Array(arg.ContactIDs),
		arg.Channel,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const claimQueuedDeliveries = `-- name: ClaimQueuedDeliveries :many
UPDATE deliveries
SET status = 'sending', claimed_at = $3, updated_at = now()
WHERE id IN (
    SELECT id FROM deliveries
    WHERE campaign_id = $1
      AND (status = 'queued' OR (status = 'sending' AND claimed_at < $4))
    ORDER BY created_at, id
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING ` + deliveryColumns + `
`

type ClaimQueuedDeliveriesParams struct {
	CampaignID  uuid.UUID
	Limit       int32
	ClaimedAt   time.Time
	StaleBefore time.Time
}

// ClaimQueuedDeliveries moves up to Limit queued rows to sending and returns
// only the rows this call claimed. Rows stuck in sending since before
// StaleBefore are reclaimed.
func (q *Queries) ClaimQueuedDeliveries(ctx context.Context, arg ClaimQueuedDeliveriesParams) ([]Delivery, error) {
	rows, err := q.db.QueryContext(ctx, claimQueuedDeliveries,
		arg.CampaignID,
		arg.Limit,
		arg.ClaimedAt,
		arg.StaleBefore,
	)
	if err != nil {
		return nil, err
	}
	items, err := scanDeliveries(rows)
	if err != nil {
		return nil, err
	}
	// RETURNING does not preserve the subquery order.
	sortDeliveriesByAge(items)
	return items, nil
}

func sortDeliveriesByAge(items []Delivery) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID.String() < items[j].ID.String()
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

const markDeliverySent = `-- name: MarkDeliverySent :execrows
UPDATE deliveries
SET status = 'sent', provider_message_id = $2, sent_at = $3, error = '', updated_at = now()
WHERE id = $1 AND status = 'sending'
`

type MarkDeliverySentParams struct {
	ID                uuid.UUID
	ProviderMessageID sql.NullString
	SentAt            time.Time
}

func (q *Queries) MarkDeliverySent(ctx context.Context, arg MarkDeliverySentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markDeliverySent, arg.ID, arg.ProviderMessageID, arg.SentAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const markDeliveryFailed = `-- name: MarkDeliveryFailed :execrows
UPDATE deliveries
SET status = 'failed', error = $2, updated_at = now()
WHERE id = $1 AND status = 'sending'
`

type MarkDeliveryFailedParams struct {
	ID    uuid.UUID
	Error string
}

func (q *Queries) MarkDeliveryFailed(ctx context.Context, arg MarkDeliveryFailedParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, markDeliveryFailed, arg.ID, arg.Error)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countOutstandingDeliveries = `-- name: CountOutstandingDeliveries :one
SELECT COUNT(*) FROM deliveries
WHERE campaign_id = $1 AND status IN ('queued', 'sending')
`

func (q *Queries) CountOutstandingDeliveries(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countOutstandingDeliveries, campaignID).Scan(&count)
	return count, err
}

const createDelivery = `-- name: CreateDelivery :one
INSERT INTO deliveries (org_id, enrollment_id, contact_id, channel, status, provider_message_id, error, sent_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + deliveryColumns + `
`

type CreateDeliveryParams struct {
	OrgID             uuid.UUID
	EnrollmentID      uuid.NullUUID
	ContactID         uuid.UUID
	Channel           string
	Status            string
	ProviderMessageID sql.NullString
	Error             string
	SentAt            sql.NullTime
}

func (q *Queries) CreateDelivery(ctx context.Context, arg CreateDeliveryParams) (Delivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, createDelivery,
		arg.OrgID,
		arg.EnrollmentID,
		arg.ContactID,
		arg.Channel,
		arg.Status,
		arg.ProviderMessageID,
		arg.Error,
		arg.SentAt,
	))
}

const getDelivery = `-- name: GetDelivery :one
SELECT ` + deliveryColumns + ` FROM deliveries WHERE id = $1
`

func (q *Queries) GetDelivery(ctx context.Context, id uuid.UUID) (Delivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, getDelivery, id))
}

const getDeliveryByProviderMessageID = `-- name: GetDeliveryByProviderMessageID :one
SELECT ` + deliveryColumns + ` FROM deliveries
WHERE provider_message_id = $1
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetDeliveryByProviderMessageID(ctx context.Context, providerMessageID string) (Delivery, error) {
	return scanDelivery(q.db.QueryRowContext(ctx, getDeliveryByProviderMessageID, providerMessageID))
}

const updateDeliveryStatus = `-- name: UpdateDeliveryStatus :execrows
UPDATE deliveries
SET status = $2,
    delivered_at = CASE WHEN $2 = 'delivered' THEN COALESCE(delivered_at, $4) ELSE delivered_at END,
    opened_at = CASE WHEN $2 = 'opened' THEN COALESCE(opened_at, $4) ELSE opened_at END,
    clicked_at = CASE WHEN $2 = 'clicked' THEN COALESCE(clicked_at, $4) ELSE clicked_at END,
    bounced_at = CASE WHEN $2 IN ('bounced', 'unsubscribed') THEN COALESCE(bounced_at, $4) ELSE bounced_at END,
    updated_at = now()
WHERE id = $1 AND status = $3
`

type UpdateDeliveryStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
	EventAt    time.Time
}

// UpdateDeliveryStatus is a compare-and-set on the current status.
func (q *Queries) UpdateDeliveryStatus(ctx context.Context, arg UpdateDeliveryStatusParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, updateDeliveryStatus, arg.ID, arg.Status, arg.FromStatus, arg.EventAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
