package db

import (
	"context"

	"github.com/google/uuid"
)

const getOrgSendConfig = `-- name: GetOrgSendConfig :one
SELECT org_id, daily_limit, warmup_enabled, from_name, from_email, reply_to,
       sms_messaging_service_id, sms_from_number, updated_at
FROM org_send_configs
WHERE org_id = $1
`

func (q *Queries) GetOrgSendConfig(ctx context.Context, orgID uuid.UUID) (OrgSendConfig, error) {
	row := q.db.QueryRowContext(ctx, getOrgSendConfig, orgID)
	var i OrgSendConfig
	err := row.Scan(
		&i.OrgID,
		&i.DailyLimit,
		&i.WarmupEnabled,
		&i.FromName,
		&i.FromEmail,
		&i.ReplyTo,
		&i.SmsMessagingServiceID,
		&i.SmsFromNumber,
		&i.UpdatedAt,
	)
	return i, err
}
