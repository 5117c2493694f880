package db

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const isIdentifierBlocked = `-- name: IsIdentifierBlocked :one
SELECT EXISTS (
    SELECT 1 FROM dnc_entries
    WHERE org_id = $1 AND identifier = ANY($2::text[])
)
`

type IsIdentifierBlockedParams struct {
	OrgID       uuid.UUID
	Identifiers []string
}

func (q *Queries) IsIdentifierBlocked(ctx context.Context, arg IsIdentifierBlockedParams) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, isIdentifierBlocked, arg.OrgID, pq.Array(arg.Identifiers)).Scan(&exists)
	return exists, err
}

const listDNCIdentifiers = `-- name: ListDNCIdentifiers :many
SELECT identifier FROM dnc_entries WHERE org_id = $1
`

func (q *Queries) ListDNCIdentifiers(ctx context.Context, orgID uuid.UUID) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listDNCIdentifiers, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var identifier string
		if err := rows.Scan(&identifier); err != nil {
			return nil, err
		}
		items = append(items, identifier)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
