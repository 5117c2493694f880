package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/activity"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/audience"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"github.com/rs/zerolog/log"
)

// CampaignRepository defines what the app layer needs from the repository
type CampaignRepository interface {
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Launch(ctx context.Context, id uuid.UUID, contactIDs []uuid.UUID, startedAt time.Time) (*models.Campaign, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.CampaignStatus) (*models.Campaign, error)
}

// AudienceResolver computes the recipients of a campaign
type AudienceResolver interface {
	Resolve(ctx context.Context, campaignID uuid.UUID) (*audience.Audience, error)
}

// EventEmitter queues outbound webhook events
type EventEmitter interface {
	Emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) error
}

// ActivityRecorder appends to the audit log
type ActivityRecorder interface {
	Record(ctx context.Context, a models.Activity)
}

// App handles campaign lifecycle business logic
type App struct {
	repo     CampaignRepository
	resolver AudienceResolver
	emitter  EventEmitter
	recorder ActivityRecorder
	clock    clockwork.Clock
}

func NewApp(repo CampaignRepository, resolver AudienceResolver, emitter EventEmitter, recorder ActivityRecorder, clock clockwork.Clock) *App {
	return &App{
		repo:     repo,
		resolver: resolver,
		emitter:  emitter,
		recorder: recorder,
		clock:    clock,
	}
}

// Launch resolves the audience, queues one delivery per recipient and moves
// the campaign to sending. Relaunching a paused campaign queues only
// recipients that have no delivery yet.
func (a *App) Launch(ctx context.Context, id uuid.UUID) (*LaunchResult, error) {
	aud, err := a.resolver.Resolve(ctx, id)
	if err != nil {
		return nil, err
	}

	launched, err := a.repo.Launch(ctx, id, aud.ContactIDs, a.clock.Now())
	if err != nil {
		return nil, err
	}

	result := &LaunchResult{
		CampaignID:      launched.ID.String(),
		TotalRecipients: launched.TotalRecipients,
		TotalBatches:    TotalBatches(launched.TotalRecipients, launched.BatchSize),
	}

	log.Info().
		Str("campaign_id", launched.ID.String()).
		Str("org_id", launched.OrgID.String()).
		Int("total_recipients", result.TotalRecipients).
		Int("total_batches", result.TotalBatches).
		Msg("campaign launched")

	a.emit(ctx, launched.OrgID, webhook.EventCampaignLaunched, result)
	a.record(ctx, launched, models.ActivityCampaignLaunched, activity.Metadata(result))
	return result, nil
}

// Pause stops a campaign at the next tick boundary.
func (a *App) Pause(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	updated, err := a.transition(ctx, id, models.CampaignStatusPaused)
	if err != nil {
		return nil, err
	}
	a.emit(ctx, updated.OrgID, webhook.EventCampaignPaused, map[string]string{"campaign_id": updated.ID.String()})
	a.record(ctx, updated, models.ActivityCampaignPaused, nil)
	return updated, nil
}

// Resume puts a paused campaign back into sending.
func (a *App) Resume(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	current, err := a.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != models.CampaignStatusPaused {
		return nil, apperrors.InvalidState("only paused campaigns can be resumed; campaign %s is %s", id, current.Status)
	}
	if current.StartedAt == nil {
		return nil, apperrors.InvalidState("campaign %s was never launched", id)
	}

	updated, err := a.repo.UpdateStatus(ctx, id, current.Status, models.CampaignStatusSending)
	if err != nil {
		return nil, err
	}
	a.emit(ctx, updated.OrgID, webhook.EventCampaignResumed, map[string]string{"campaign_id": updated.ID.String()})
	a.record(ctx, updated, models.ActivityCampaignResumed, nil)
	return updated, nil
}

func (a *App) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return a.repo.GetCampaign(ctx, id)
}

func (a *App) transition(ctx context.Context, id uuid.UUID, to models.CampaignStatus) (*models.Campaign, error) {
	current, err := a.repo.GetCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(current.Status, to) {
		return nil, apperrors.InvalidState("campaign %s cannot move from %s to %s", id, current.Status, to)
	}
	updated, err := a.repo.UpdateStatus(ctx, id, current.Status, to)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("campaign_id", id.String()).
		Str("from", string(current.Status)).
		Str("to", string(to)).
		Msg("campaign status changed")
	return updated, nil
}

func (a *App) emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) {
	if err := a.emitter.Emit(ctx, orgID, eventType, data); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to emit webhook event")
	}
}

func (a *App) record(ctx context.Context, c *models.Campaign, kind models.ActivityKind, meta []byte) {
	a.recorder.Record(ctx, models.Activity{
		OrgID:      c.OrgID,
		Kind:       kind,
		CampaignID: &c.ID,
		Channel:    c.Channel,
		Outcome:    string(c.Status),
		Detail:     fmt.Sprintf("campaign %q", c.Name),
		Metadata:   meta,
	})
}
