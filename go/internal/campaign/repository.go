// Package campaign owns the campaign lifecycle: launch, pause and resume.
package campaign

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/audience"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (db.Campaign, error)
	GetCampaignForUpdate(ctx context.Context, id uuid.UUID) (db.Campaign, error)
	UpdateCampaignStatus(ctx context.Context, arg db.UpdateCampaignStatusParams) (db.Campaign, error)
	InsertQueuedDeliveries(ctx context.Context, arg db.InsertQueuedDeliveriesParams) (int64, error)
	MarkCampaignLaunched(ctx context.Context, arg db.MarkCampaignLaunchedParams) (db.Campaign, error)
}

// Repository implements campaign data access
type Repository struct {
	queries Querier
	db      *sql.DB
}

func NewRepository(queries Querier, database *sql.DB) *Repository {
	return &Repository{queries: queries, db: database}
}

func (r *Repository) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	row, err := r.queries.GetCampaign(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("campaign", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return ToModel(row)
}

// Launch materializes one queued delivery per contact and moves the campaign
// to sending in a single transaction. The status is re-checked under a row
// lock so concurrent launches cannot both succeed.
func (r *Repository) Launch(ctx context.Context, id uuid.UUID, contactIDs []uuid.UUID, startedAt time.Time) (*models.Campaign, error) {
	ids := make([]string, len(contactIDs))
	for i, c := range contactIDs {
		ids[i] = c.String()
	}

	var launched db.Campaign
	err := sqlutil.Run(ctx, r.db, txQueries, func(q *db.Queries) error {
		row, err := q.GetCampaignForUpdate(ctx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperrors.NotFound("campaign", id)
		}
		if err != nil {
			return fmt.Errorf("failed to lock campaign: %w", err)
		}
		if !audience.Launchable(models.CampaignStatus(row.Status)) {
			return apperrors.InvalidState("campaign %s is %s", id, row.Status)
		}

		inserted, err := q.InsertQueuedDeliveries(ctx, db.InsertQueuedDeliveriesParams{
			OrgID:      row.OrgID,
			CampaignID: row.ID,
			ContactIDs: ids,
			Channel:    row.Channel,
		})
		if err != nil {
			return fmt.Errorf("failed to queue deliveries: %w", err)
		}

		launched, err = q.MarkCampaignLaunched(ctx, db.MarkCampaignLaunchedParams{
			ID:              row.ID,
			TotalRecipients: row.TotalRecipients + int32(inserted),
			StartedAt:       startedAt,
		})
		if err != nil {
			return fmt.Errorf("failed to mark campaign launched: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ToModel(launched)
}

// UpdateStatus moves the campaign from one status to another. A campaign
// that is no longer in from yields an invalid state error.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CampaignStatus) (*models.Campaign, error) {
	row, err := r.queries.UpdateCampaignStatus(ctx, db.UpdateCampaignStatusParams{
		ID:         id,
		Status:     string(to),
		FromStatus: string(from),
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.InvalidState("campaign %s is no longer %s", id, from)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update campaign status: %w", err)
	}
	return ToModel(row)
}

func txQueries(tx *sql.Tx) *db.Queries { return db.New(tx) }

// ToModel converts a database campaign to the domain model
func ToModel(row db.Campaign) (*models.Campaign, error) {
	c := &models.Campaign{
		ID:              row.ID,
		OrgID:           row.OrgID,
		Name:            row.Name,
		Channel:         models.Channel(row.Channel),
		Subject:         row.Subject,
		Body:            row.Body,
		Status:          models.CampaignStatus(row.Status),
		BatchSize:       int(row.BatchSize),
		TotalRecipients: int(row.TotalRecipients),
		SentCount:       int(row.SentCount),
		FailedCount:     int(row.FailedCount),
		StartedAt:       sqlutil.FromSqlTime(row.StartedAt),
		CompletedAt:     sqlutil.FromSqlTime(row.CompletedAt),
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if row.FilterCriteria.Valid && len(row.FilterCriteria.RawMessage) > 0 {
		if err := json.Unmarshal(row.FilterCriteria.RawMessage, &c.FilterCriteria); err != nil {
			return nil, fmt.Errorf("failed to unmarshal filter criteria for campaign %s: %w", row.ID, err)
		}
	}
	return c, nil
}
