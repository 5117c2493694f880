package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/sqlutil"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	CreateWebhookEvent(ctx context.Context, arg db.CreateWebhookEventParams) (db.WebhookEvent, error)
	ClaimPendingWebhookEvents(ctx context.Context, arg db.ClaimPendingWebhookEventsParams) ([]db.WebhookEvent, error)
	ListActiveSubscriptionsForEvent(ctx context.Context, arg db.ListActiveSubscriptionsForEventParams) ([]db.WebhookSubscription, error)
	MarkWebhookEventSent(ctx context.Context, arg db.MarkWebhookEventSentParams) error
	RecordWebhookEventFailure(ctx context.Context, arg db.RecordWebhookEventFailureParams) (db.WebhookEvent, error)
	InsertWebhookAttempt(ctx context.Context, arg db.InsertWebhookAttemptParams) error
}

// Repository implements webhook event and subscription data access
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

func (r *Repository) CreateEvent(ctx context.Context, orgID uuid.UUID, eventType string, payload json.RawMessage) (*models.WebhookEvent, error) {
	row, err := r.queries.CreateWebhookEvent(ctx, db.CreateWebhookEventParams{
		OrgID:     orgID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create webhook event: %w", err)
	}
	return dbEventToModel(row), nil
}

// ClaimPending leases up to limit pending events until lockedUntil.
func (r *Repository) ClaimPending(ctx context.Context, now, lockedUntil time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error) {
	rows, err := r.queries.ClaimPendingWebhookEvents(ctx, db.ClaimPendingWebhookEventsParams{
		Now:         now,
		LockedUntil: lockedUntil,
		MaxAttempts: int32(maxAttempts),
		Limit:       int32(limit),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to claim webhook events: %w", err)
	}
	events := make([]models.WebhookEvent, 0, len(rows))
	for _, row := range rows {
		events = append(events, *dbEventToModel(row))
	}
	return events, nil
}

func (r *Repository) Subscriptions(ctx context.Context, orgID uuid.UUID, eventType string) ([]models.WebhookSubscription, error) {
	rows, err := r.queries.ListActiveSubscriptionsForEvent(ctx, db.ListActiveSubscriptionsForEventParams{
		OrgID:     orgID,
		EventType: eventType,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}
	subs := make([]models.WebhookSubscription, 0, len(rows))
	for _, row := range rows {
		subs = append(subs, models.WebhookSubscription{
			ID:         row.ID,
			OrgID:      row.OrgID,
			URL:        row.Url,
			Secret:     row.Secret,
			EventTypes: row.EventTypes,
			Active:     row.Active,
			CreatedAt:  row.CreatedAt,
		})
	}
	return subs, nil
}

func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error {
	if err := r.queries.MarkWebhookEventSent(ctx, db.MarkWebhookEventSentParams{ID: id, SentAt: at}); err != nil {
		return fmt.Errorf("failed to mark webhook event sent: %w", err)
	}
	return nil
}

// RecordFailure bumps the attempt counter; the returned event is failed
// once attempts reach maxAttempts.
func (r *Repository) RecordFailure(ctx context.Context, id uuid.UUID, lastError string, maxAttempts int) (*models.WebhookEvent, error) {
	row, err := r.queries.RecordWebhookEventFailure(ctx, db.RecordWebhookEventFailureParams{
		ID:          id,
		LastError:   lastError,
		MaxAttempts: int32(maxAttempts),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook failure: %w", err)
	}
	return dbEventToModel(row), nil
}

func (r *Repository) RecordAttempt(ctx context.Context, a models.WebhookAttempt) error {
	err := r.queries.InsertWebhookAttempt(ctx, db.InsertWebhookAttemptParams{
		EventID:        a.EventID,
		SubscriptionID: a.SubscriptionID,
		Attempt:        int32(a.Attempt),
		StatusCode:     int32(a.StatusCode),
		Success:        a.Success,
		Error:          a.Error,
		DurationMs:     a.Duration.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("failed to record webhook attempt: %w", err)
	}
	return nil
}

func dbEventToModel(row db.WebhookEvent) *models.WebhookEvent {
	return &models.WebhookEvent{
		ID:        row.ID,
		OrgID:     row.OrgID,
		EventType: row.EventType,
		Payload:   row.Payload,
		Status:    models.WebhookEventStatus(row.Status),
		Attempts:  int(row.Attempts),
		LastError: row.LastError,
		SentAt:    sqlutil.FromSqlTime(row.SentAt),
		CreatedAt: row.CreatedAt,
	}
}
