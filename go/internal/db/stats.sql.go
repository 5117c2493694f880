package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const getDailyStat = `-- name: GetDailyStat :one
SELECT org_id, stat_date, sent, delivered, opened, clicked, bounced
FROM daily_stats
WHERE org_id = $1 AND stat_date = $2
`

type GetDailyStatParams struct {
	OrgID    uuid.UUID
	StatDate time.Time
}

func (q *Queries) GetDailyStat(ctx context.Context, arg GetDailyStatParams) (DailyStat, error) {
	row := q.db.QueryRowContext(ctx, getDailyStat, arg.OrgID, arg.StatDate)
	var i DailyStat
	err := row.Scan(
		&i.OrgID,
		&i.StatDate,
		&i.Sent,
		&i.Delivered,
		&i.Opened,
		&i.Clicked,
		&i.Bounced,
	)
	return i, err
}

const getFirstStatDate = `-- name: GetFirstStatDate :one
SELECT MIN(stat_date) FROM daily_stats WHERE org_id = $1
`

// GetFirstStatDate returns an invalid NullTime when the org has no stats yet.
// The date is scanned as-is so the session time zone cannot shift it.
func (q *Queries) GetFirstStatDate(ctx context.Context, orgID uuid.UUID) (sql.NullTime, error) {
	var first sql.NullTime
	err := q.db.QueryRowContext(ctx, getFirstStatDate, orgID).Scan(&first)
	return first, err
}

const incrementDailyStat = `-- name: IncrementDailyStat :exec
INSERT INTO daily_stats (org_id, stat_date, sent, delivered, opened, clicked, bounced)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (org_id, stat_date) DO UPDATE
SET sent = daily_stats.sent + EXCLUDED.sent,
    delivered = daily_stats.delivered + EXCLUDED.delivered,
    opened = daily_stats.opened + EXCLUDED.opened,
    clicked = daily_stats.clicked + EXCLUDED.clicked,
    bounced = daily_stats.bounced + EXCLUDED.bounced
`

type IncrementDailyStatParams struct {
	OrgID     uuid.UUID
	StatDate  time.Time
	Sent      int32
	Delivered int32
	Opened    int32
	Clicked   int32
	Bounced   int32
}

// IncrementDailyStat adds to the counters in a single statement; it never
// reads the current values.
func (q *Queries) IncrementDailyStat(ctx context.Context, arg IncrementDailyStatParams) error {
	_, err := q.db.ExecContext(ctx, incrementDailyStat,
		arg.OrgID,
		arg.StatDate,
		arg.Sent,
		arg.Delivered,
		arg.Opened,
		arg.Clicked,
		arg.Bounced,
	)
	return err
}
