package db

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const contactColumns = `c.id, c.org_id, c.first_name, c.last_name, c.email, c.phone, c.tags, c.pipeline_stage,
    c.assigned_to, m.full_name, o.name, c.email_consent, c.sms_consent, c.do_not_contact, c.merged_into_id`

const contactFrom = `FROM contacts c
JOIN organizations o ON o.id = c.org_id
LEFT JOIN org_members m ON m.id = c.assigned_to`

func scanContactRow(row interface{ Scan(...interface{}) error }) (ContactRow, error) {
	var i ContactRow
	err := row.Scan(
		&i.ID,
		&i.OrgID,
		&i.FirstName,
		&i.LastName,
		&i.Email,
		&i.Phone,
		pq.Array(&i.Tags),
		&i.PipelineStage,
		&i.AssignedTo,
		&i.AssigneeName,
		&i.OrganizationName,
		&i.EmailConsent,
		&i.SmsConsent,
		&i.DoNotContact,
		&i.MergedIntoID,
	)
	return i, err
}

const getContact = `-- name: GetContact :one
SELECT ` + contactColumns + `
` + contactFrom + `
WHERE c.id = $1
`

func (q *Queries) GetContact(ctx context.Context, id uuid.UUID) (ContactRow, error) {
	return scanContactRow(q.db.QueryRowContext(ctx, getContact, id))
}

const listEligibleContacts = `-- name: ListEligibleContacts :many
SELECT ` + contactColumns + `
` + contactFrom + `
WHERE c.org_id = $1
  AND c.do_not_contact = FALSE
  AND c.merged_into_id IS NULL
  AND CASE WHEN $2 = 'email'
           THEN c.email_consent AND COALESCE(c.email, '') <> ''
           ELSE c.sms_consent AND COALESCE(c.phone, '') <> ''
      END
  AND (cardinality($3::text[]) = 0 OR c.tags && $3::text[])
  AND ($4::text IS NULL OR c.pipeline_stage = $4::text)
  AND ($5::uuid IS NULL OR c.assigned_to = $5::uuid)
ORDER BY c.created_at, c.id
`

type ListEligibleContactsParams struct {
	OrgID         uuid.UUID
	Channel       string
	Tags          []string
	PipelineStage sql.NullString
	AssignedTo    uuid.NullUUID
}

func (q *Queries) ListEligibleContacts(ctx context.Context, arg ListEligibleContactsParams) ([]ContactRow, error) {
	tags := arg.Tags
	if tags == nil {
		tags = []string{}
	}
	rows, err := q.db.QueryContext(ctx, listEligibleContacts,
		arg.OrgID,
		arg.Channel,
		pq.Array(tags),
		arg.PipelineStage,
		arg.AssignedTo,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ContactRow
	for rows.Next() {
		i, err := scanContactRow(rows)
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

const revokeContactConsent = `-- name: RevokeContactConsent :execrows
UPDATE contacts
SET email_consent = CASE WHEN $2 = 'email' THEN FALSE ELSE email_consent END,
    sms_consent = CASE WHEN $2 = 'sms' THEN FALSE ELSE sms_consent END
WHERE id = $1
`

type RevokeContactConsentParams struct {
	ID      uuid.UUID
	Channel string
}

func (q *Queries) RevokeContactConsent(ctx context.Context, arg RevokeContactConsentParams) (int64, error) {
	result, err := q.db.ExecContext(ctx, revokeContactConsent, arg.ID, arg.Channel)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
