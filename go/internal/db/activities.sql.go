package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"
)

const insertActivity = `-- name: InsertActivity :one
INSERT INTO activities (org_id, kind, contact_id, campaign_id, sequence_id, enrollment_id, delivery_id,
                        channel, outcome, detail, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING id, org_id, kind, contact_id, campaign_id, sequence_id, enrollment_id, delivery_id,
          channel, outcome, detail, metadata, created_at
`

type InsertActivityParams struct {
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
}

func (q *Queries) InsertActivity(ctx context.Context, arg InsertActivityParams) (Activity, error) {
	row := q.db.QueryRowContext(ctx, insertActivity,
		arg.OrgID,
		arg.Kind,
		arg.ContactID,
		arg.CampaignID,
		arg.SequenceID,
		arg.EnrollmentID,
		arg.DeliveryID,
		arg.Channel,
		arg.Outcome,
		arg.Detail,
		arg.Metadata,
	)
	var i Activity
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.Kind,
		&i.ContactID,
		&i.CampaignID,
		&i.SequenceID,
		&i.EnrollmentID,
		&i.DeliveryID,
		&i.Channel,
		&i.Outcome,
		&i.Detail,
		&i.Metadata,
		&i.CreatedAt,
	)
	return i, err
}
