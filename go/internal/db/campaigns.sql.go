package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const campaignColumns = `id, org_id, name, channel, subject, body, status, filter_criteria, batch_size,
    total_recipients, sent_count, failed_count, started_at, completed_at, created_at, updated_at`

func scanCampaign(row interface{ Scan(...interface{}) error }) (Campaign, error) {
	var i Campaign
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.Name,
		&i.Channel,
		&i.Subject,
		&i.Body,
		&i.Status,
		&i.FilterCriteria,
		&i.BatchSize,
		&i.TotalRecipients,
		&i.SentCount,
		&i.FailedCount,
		&i.StartedAt,
		&i.CompletedAt,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const getCampaign = `-- name: GetCampaign :one
SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1
`

func (q *Queries) GetCampaign(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, getCampaign, id))
}

const getCampaignForUpdate = `-- name: GetCampaignForUpdate :one
SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 FOR UPDATE
`

func (q *Queries) GetCampaignForUpdate(ctx context.Context, id uuid.UUID) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, getCampaignForUpdate, id))
}

const listCampaignsByStatus = `-- name: ListCampaignsByStatus :many
SELECT ` + campaignColumns + ` FROM campaigns
WHERE status = $1
ORDER BY started_at NULLS LAST, created_at
`

func (q *Queries) ListCampaignsByStatus(ctx context.Context, status string) ([]Campaign, error) {
	rows, err := q.db.QueryContext(ctx, listCampaignsByStatus, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Campaign
	for rows.Next() {
		i, err := scanCampaign(rows)
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

const updateCampaignStatus = `-- name: UpdateCampaignStatus :one
UPDATE campaigns
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + campaignColumns + `
`

type UpdateCampaignStatusParams struct {
	ID         uuid.UUID
	Status     string
	FromStatus string
}

// UpdateCampaignStatus only applies when the campaign is still in FromStatus;
// otherwise it returns sql.ErrNoRows.
func (q *Queries) UpdateCampaignStatus(ctx context.Context, arg UpdateCampaignStatusParams) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, updateCampaignStatus, arg.ID, arg.Status, arg.FromStatus))
}

const markCampaignLaunched = `-- name: MarkCampaignLaunched :one
UPDATE campaigns
SET status = 'sending',
    total_recipients = $2,
    started_at = COALESCE(started_at, $3),
    updated_at = now()
WHERE id = $1
RETURNING ` + campaignColumns + `
`

type MarkCampaignLaunchedParams struct {
	ID              uuid.UUID
	TotalRecipients int32
	StartedAt       time.Time
}

func (q *Queries) MarkCampaignLaunched(ctx context.Context, arg MarkCampaignLaunchedParams) (Campaign, error) {
	return scanCampaign(q.db.QueryRowContext(ctx, markCampaignLaunched, arg.ID, arg.TotalRecipients, arg.StartedAt))
}

const incrementCampaignCounters = `-- name: IncrementCampaignCounters :exec
UPDATE campaigns
SET sent_count = sent_count + $2,
    failed_count = failed_count + $3,
    updated_at = now()
WHERE id = $1
`

type IncrementCampaignCountersParams struct {
	ID     uuid.UUID
	Sent   int32
	Failed int32
}

func (q *Queries) IncrementCampaignCounters(ctx context.Context, arg IncrementCampaignCountersParams) error {
	_, err := q.db.ExecContext(ctx, incrementCampaignCounters, arg.ID, arg.Sent, arg.Failed)
	return err
}

const completeCampaign = `-- name: CompleteCampaign :execrows
UPDATE campaigns
SET status = 'completed', completed_at = $2, updated_at = now()
WHERE id = $1 AND status = 'sending'
`

type CompleteCampaignParams struct {
	ID          uuid.UUID
	CompletedAt time.Time
}

// CompleteCampaign returns the number of rows changed so only one caller
// observes the transition.
func (q *Queries) CompleteCampaign(ctx context.Context, arg CompleteCampaignParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, completeCampaign, arg.ID, arg.CompletedAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

const countCampaignsWithoutSendConfig = `-- name: CountCampaignsWithoutSendConfig :one
SELECT COUNT(*) FROM campaigns c
LEFT JOIN org_send_configs o ON o.org_id = c.org_id
WHERE c.status = 'sending' AND o.org_id IS NULL
`

func (q *Queries) CountCampaignsWithoutSendConfig(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countCampaignsWithoutSendConfig).Scan(&count)
	return count, err
}
