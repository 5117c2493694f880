package orgconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetOrgSendConfig(ctx context.Context, orgID uuid.UUID) (db.OrgSendConfig, error)
}

// Repository is the org-specific level of the fallback chain.
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

func (r *Repository) Resolve(ctx context.Context, orgID uuid.UUID) (models.SendConfig, error) {
	row, err := r.queries.GetOrgSendConfig(ctx, orgID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SendConfig{}, ErrNoConfig
	}
	if err != nil {
		return models.SendConfig{}, fmt.Errorf("failed to get send config: %w", err)
	}
	return models.SendConfig{
		OrgID:                 row.OrgID,
		DailyLimit:            int(row.DailyLimit),
		WarmupEnabled:         row.WarmupEnabled,
		FromName:              row.FromName,
		FromEmail:             row.FromEmail,
		ReplyTo:               row.ReplyTo,
		SMSMessagingServiceID: row.SmsMessagingServiceID,
		SMSFromNumber:         row.SmsFromNumber,
	}, nil
}
