package delivery

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	ClaimQueuedDeliveries(ctx context.Context, arg db.ClaimQueuedDeliveriesParams) ([]db.Delivery, error)
	MarkDeliverySent(ctx context.Context, arg db.MarkDeliverySentParams) (int64, error)
	MarkDeliveryFailed(ctx context.Context, arg db.MarkDeliveryFailedParams) (int64, error)
	CountOutstandingDeliveries(ctx context.Context, campaignID uuid.UUID) (int64, error)
	CreateDelivery(ctx context.Context, arg db.CreateDeliveryParams) (db.Delivery, error)
	GetDelivery(ctx context.Context, id uuid.UUID) (db.Delivery, error)
	GetDeliveryByProviderMessageID(ctx context.Context, providerMessageID string) (db.Delivery, error)
	UpdateDeliveryStatus(ctx context.Context, arg db.UpdateDeliveryStatusParams) (int64, error)
}

// Repository implements delivery data access
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// Claim moves up to limit queued deliveries of a campaign to sending,
// oldest first. Rows left in sending since before staleBefore are reclaimed.
func (r *Repository) Claim(ctx context.Context, campaignID uuid.UUID, limit int, now, staleBefore time.Time) ([]models.Delivery, error) {
	rows, err := r.queries.ClaimQueuedDeliveries(ctx, db.ClaimQueuedDeliveriesParams{
		CampaignID:  campaignID,
		Limit:       int32(limit),
		ClaimedAt:   now,
		StaleBefore: staleBefore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim deliveries: %w", err)
	}
	out := make([]models.Delivery, 0, len(rows))
	for _, row := range rows {
		out = append(out, ToModel(row))
	}
	return out, nil
}

// MarkSent reports false if the delivery was no longer in sending.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, at time.Time) (bool, error) {
	n, err := r.queries.MarkDeliverySent(ctx, db.MarkDeliverySentParams{
		ID:                id,
		ProviderMessageID: sql.NullString{String: providerMessageID, Valid: providerMessageID != ""},
		SentAt:            at,
	})
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery sent: %w", err)
	}
	return n > 0, nil
}

// MarkFailed reports false if the delivery was no longer in sending.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	n, err := r.queries.MarkDeliveryFailed(ctx, db.MarkDeliveryFailedParams{ID: id, Error: reason})
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery failed: %w", err)
	}
	return n > 0, nil
}

// Outstanding counts queued and sending deliveries of a campaign.
func (r *Repository) Outstanding(ctx context.Context, campaignID uuid.UUID) (int, error) {
	n, err := r.queries.CountOutstandingDeliveries(ctx, campaignID)
	if err != nil {
		return 0, fmt.Errorf("failed to count outstanding deliveries: %w", err)
	}
	return int(n), nil
}

// RecordAdHoc stores a delivery that was sent outside a campaign, such as a
// sequence step.
func (r *Repository) RecordAdHoc(ctx context.Context, d models.Delivery) (*models.Delivery, error) {
	row, err := r.queries.CreateDelivery(ctx, db.CreateDeliveryParams{
		OrgID:             d.OrgID,
		EnrollmentID:      sqlutil.ToNullUUID(d.EnrollmentID),
		ContactID:         d.ContactID,
		Channel:           string(d.Channel),
		Status:            string(d.Status),
		ProviderMessageID: sql.NullString{String: d.ProviderMessageID, Valid: d.ProviderMessageID != ""},
		Error:             d.Error,
		SentAt:            sqlutil.ToSqlTime(d.SentAt),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record delivery: %w", err)
	}
	out := ToModel(row)
	return &out, nil
}

func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	row, err := r.queries.GetDelivery(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("delivery", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery: %w", err)
	}
	out := ToModel(row)
	return &out, nil
}

func (r *Repository) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.Delivery, error) {
	row, err := r.queries.GetDeliveryByProviderMessageID(ctx, providerMessageID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("delivery", providerMessageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery by provider id: %w", err)
	}
	out := ToModel(row)
	return &out, nil
}

// CompareAndSetStatus moves the delivery from one status to another and
// stamps the matching event timestamp. It reports false when the delivery
// had already moved on.
func (r *Repository) CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus, at time.Time) (bool, error) {
	n, err := r.queries.UpdateDeliveryStatus(ctx, db.UpdateDeliveryStatusParams{
		ID:         id,
		Status:     string(to),
		FromStatus: string(from),
		EventAt:    at,
	})
	if err != nil {
		return false, fmt.Errorf("failed to update delivery status: %w", err)
	}
	return n > 0, nil
}

// ToModel converts a database delivery to the domain model
func ToModel(row db.Delivery) models.Delivery {
	return models.Delivery{
		ID:                row.ID,
		OrgID:             row.OrgID,
		CampaignID:        sqlutil.FromNullUUID(row.CampaignID),
		EnrollmentID:      sqlutil.FromNullUUID(row.EnrollmentID),
		ContactID:         row.ContactID,
		Channel:           models.Channel(row.Channel),
		Status:            models.DeliveryStatus(row.Status),
		ProviderMessageID: sqlutil.FromSqlString(row.ProviderMessageID, ""),
		Error:             row.Error,
		ClaimedAt:         sqlutil.FromSqlTime(row.ClaimedAt),
		SentAt:            sqlutil.FromSqlTime(row.SentAt),
		DeliveredAt:       sqlutil.FromSqlTime(row.DeliveredAt),
		OpenedAt:          sqlutil.FromSqlTime(row.OpenedAt),
		ClickedAt:         sqlutil.FromSqlTime(row.ClickedAt),
		BouncedAt:         sqlutil.FromSqlTime(row.BouncedAt),
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}
