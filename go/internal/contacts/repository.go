// Package contacts is the delivery engine's narrow read/write view of the
// CRM contact store.
package contacts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetContact(ctx context.Context, id uuid.UUID) (db.ContactRow, error)
	ListEligibleContacts(ctx context.Context, arg db.ListEligibleContactsParams) ([]db.ContactRow, error)
	RevokeContactConsent(ctx context.Context, arg db.RevokeContactConsentParams) (int64, error)
}

type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// GetContact returns apperrors.ErrNotFound for unknown ids.
func (r *Repository) GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	row, err := r.queries.GetContact(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("contact", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	c := ToModel(row)
	return &c, nil
}

// ListEligible returns contacts in the org that pass the channel, consent,
// flag, merge and filter criteria. The DNC registry is not consulted here.
func (r *Repository) ListEligible(ctx context.Context, orgID uuid.UUID, ch models.Channel, filter models.FilterCriteria) ([]models.Contact, error) {
	var stage *string
	if filter.PipelineStage != "" {
		stage = &filter.PipelineStage
	}
	rows, err := r.queries.ListEligibleContacts(ctx, db.ListEligibleContactsParams{
		OrgID:         orgID,
		Channel:       string(ch),
		Tags:          filter.Tags,
		PipelineStage: sqlutil.ToSqlString(stage),
		AssignedTo:    sqlutil.ToNullUUID(filter.AssignedTo),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible contacts: %w", err)
	}
	out := make([]models.Contact, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToModel(row))
	}
	return out, nil
}

// RevokeConsent turns off the contact's consent flag for one channel.
func (r *Repository) RevokeConsent(ctx context.Context, id uuid.UUID, ch models.Channel) error {
	if _, err := r.queries.RevokeContactConsent(ctx, db.RevokeContactConsentParams{ID: id, Channel: string(ch)}); err != nil {
		return fmt.Errorf("failed to revoke %s consent: %w", ch, err)
	}
	return nil
}

// ToModel converts a database contact row to the domain model
func ToModel(row db.ContactRow) models.Contact {
	return models.Contact{
		ID:               row.ID,
		OrgID:            row.OrgID,
		FirstName:        row.FirstName,
		LastName:         row.LastName,
		Email:            sqlutil.FromSqlString(row.Email, ""),
		Phone:            sqlutil.FromSqlString(row.Phone, ""),
		Tags:             row.Tags,
		PipelineStage:    sqlutil.FromSqlString(row.PipelineStage, ""),
		AssignedTo:       sqlutil.FromNullUUID(row.AssignedTo),
		AssigneeName:     sqlutil.FromSqlString(row.AssigneeName, ""),
		OrganizationName: row.OrganizationName,
		EmailConsent:     row.EmailConsent,
		SMSConsent:       row.SmsConsent,
		DoNotContact:     row.DoNotContact,
		MergedIntoID:     sqlutil.FromNullUUID(row.MergedIntoID),
	}
}
