package activity

import (
	"context"
	"fmt"

	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sqlutil"
	"github.com/sqlc-dev/pqtype"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	InsertActivity(ctx context.Context, arg db.InsertActivityParams) (db.Activity, error)
}

// Repository appends to the audit log. There is no update or delete.
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

func (r *Repository) Append(ctx context.Context, a models.Activity) (*models.Activity, error) {
	row, err := r.queries.InsertActivity(ctx, db.InsertActivityParams{
		OrgID:        a.OrgID,
		Kind:         string(a.Kind),
		ContactID:    sqlutil.ToNullUUID(a.ContactID),
		CampaignID:   sqlutil.ToNullUUID(a.CampaignID),
		SequenceID:   sqlutil.ToNullUUID(a.SequenceID),
		EnrollmentID: sqlutil.ToNullUUID(a.EnrollmentID),
		DeliveryID:   sqlutil.ToNullUUID(a.DeliveryID),
		Channel:      string(a.Channel),
		Outcome:      a.Outcome,
		Detail:       a.Detail,
		Metadata:     pqtype.NullRawMessage{RawMessage: a.Metadata, Valid: len(a.Metadata) > 0},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	return dbActivityToModel(row), nil
}

func dbActivityToModel(row db.Activity) *models.Activity {
	a := &models.Activity{
		ID:           row.ID,
		OrgID:        row.OrgID,
		Kind:         models.ActivityKind(row.Kind),
		ContactID:    sqlutil.FromNullUUID(row.ContactID),
		CampaignID:   sqlutil.FromNullUUID(row.CampaignID),
		SequenceID:   sqlutil.FromNullUUID(row.SequenceID),
		EnrollmentID: sqlutil.FromNullUUID(row.EnrollmentID),
		DeliveryID:   sqlutil.FromNullUUID(row.DeliveryID),
		Channel:      models.Channel(row.Channel),
		Outcome:      row.Outcome,
		Detail:       row.Detail,
		CreatedAt:    row.CreatedAt,
	}
	if row.Metadata.Valid {
		a.Metadata = row.Metadata.RawMessage
	}
	return a
}
