package sendqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/campaign"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	ListCampaignsByStatus(ctx context.Context, status string) ([]db.Campaign, error)
	IncrementCampaignCounters(ctx context.Context, arg db.IncrementCampaignCountersParams) error
	CompleteCampaign(ctx context.Context, arg db.CompleteCampaignParams) (int64, error)
}

// Repository is the batch processor's view of campaigns
type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// SendingCampaigns lists campaigns currently in sending. Rows that cannot be
// decoded are logged and left out.
func (r *Repository) SendingCampaigns(ctx context.Context) ([]models.Campaign, error) {
	rows, err := r.queries.ListCampaignsByStatus(ctx, string(models.CampaignStatusSending))
	if err != nil {
		return nil, fmt.Errorf("failed to list sending campaigns: %w", err)
	}
	out := make([]models.Campaign, 0, len(rows))
	for _, row := range rows {
		c, err := campaign.ToModel(row)
		if err != nil {
			log.Error().Err(err).Str("campaign_id", row.ID.String()).Msg("skipping undecodable campaign")
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r *Repository) AddCounters(ctx context.Context, id uuid.UUID, sent, failed int) error {
	if sent == 0 && failed == 0 {
		return nil
	}
	err := r.queries.IncrementCampaignCounters(ctx, db.IncrementCampaignCountersParams{
		ID:     id,
		Sent:   int32(sent),
		Failed: int32(failed),
	})
	if err != nil {
		return fmt.Errorf("failed to increment campaign counters: %w", err)
	}
	return nil
}

// Complete reports whether this call performed the sending -> completed
// transition.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	n, err := r.queries.CompleteCampaign(ctx, db.CompleteCampaignParams{ID: id, CompletedAt: at})
	if err != nil {
		return false, fmt.Errorf("failed to complete campaign: %w", err)
	}
	return n > 0, nil
}
