package deliverystatus

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"github.com/rs/zerolog/log"
)

// maxApplyAttempts bounds the compare-and-set retries when concurrent events
// race on the same delivery.
const maxApplyAttempts = 3

// DeliveryStore defines what the app layer needs from the delivery repository
type DeliveryStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	GetByProviderMessageID(ctx context.Context, providerMessageID string) (*models.Delivery, error)
	CompareAndSetStatus(ctx context.Context, id uuid.UUID, from, to models.DeliveryStatus, at time.Time) (bool, error)
}

// ConsentStore turns off channel consent
type ConsentStore interface {
	RevokeConsent(ctx context.Context, id uuid.UUID, ch models.Channel) error
}

// StatsStore increments daily counters
type StatsStore interface {
	Increment(ctx context.Context, orgID uuid.UUID, day time.Time, column models.StatColumn, n int) error
}

// EventEmitter queues outbound webhook events
type EventEmitter interface {
	Emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) error
}

// ActivityRecorder appends to the audit log
type ActivityRecorder interface {
	Record(ctx context.Context, a models.Activity)
}

// Callback is one inbound provider event. Either SendID or
// ProviderMessageID identifies the delivery.
type Callback struct {
	Event             Event      `json:"event" validate:"required"`
	SendID            *uuid.UUID `json:"send_id,omitempty"`
	ProviderMessageID string     `json:"provider_message_id,omitempty"`
	Timestamp         *time.Time `json:"timestamp,omitempty"`
}

// Result says what an event did. Applied is false for duplicate or
// out-of-order events.
type Result struct {
	DeliveryID uuid.UUID             `json:"delivery_id"`
	Applied    bool                  `json:"applied"`
	From       models.DeliveryStatus `json:"from"`
	Status     models.DeliveryStatus `json:"status"`
}

// App applies provider callbacks
type App struct {
	deliveries DeliveryStore
	contacts   ConsentStore
	stats      StatsStore
	emitter    EventEmitter
	recorder   ActivityRecorder
	clock      clockwork.Clock
}

func NewApp(deliveries DeliveryStore, contacts ConsentStore, stats StatsStore, emitter EventEmitter, recorder ActivityRecorder, clock clockwork.Clock) *App {
	return &App{
		deliveries: deliveries,
		contacts:   contacts,
		stats:      stats,
		emitter:    emitter,
		recorder:   recorder,
		clock:      clock,
	}
}

// Apply moves the delivery forward for the event. Regressions and duplicates
// are acknowledged without side effects.
func (a *App) Apply(ctx context.Context, cb Callback) (*Result, error) {
	if !cb.Event.Valid() {
		return nil, apperrors.Validation("unknown event %q", cb.Event)
	}
	if cb.SendID == nil && cb.ProviderMessageID == "" {
		return nil, apperrors.Validation("send_id or provider_message_id is required")
	}
	at := a.clock.Now()
	if cb.Timestamp != nil && !cb.Timestamp.IsZero() {
		at = *cb.Timestamp
	}
	to := cb.Event.Status()

	for attempt := 0; attempt < maxApplyAttempts; attempt++ {
		d, err := a.lookup(ctx, cb)
		if err != nil {
			return nil, err
		}
		result := &Result{DeliveryID: d.ID, From: d.Status, Status: d.Status}
		if !CanAdvance(d.Status, to) {
			log.Debug().
				Str("delivery_id", d.ID.String()).
				Str("current", string(d.Status)).
				Str("event", string(cb.Event)).
				Msg("ignoring stale delivery event")
			return result, nil
		}

		ok, err := a.deliveries.CompareAndSetStatus(ctx, d.ID, d.Status, to, at)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		result.Applied = true
		result.Status = to
		a.afterApply(ctx, *d, cb.Event, result, at)
		return result, nil
	}
	return nil, apperrors.Conflict("delivery status changed concurrently; retry the event")
}

func (a *App) lookup(ctx context.Context, cb Callback) (*models.Delivery, error) {
	if cb.SendID != nil {
		return a.deliveries.Get(ctx, *cb.SendID)
	}
	return a.deliveries.GetByProviderMessageID(ctx, cb.ProviderMessageID)
}

// afterApply runs the side effects of an applied event. They are logged on
// failure since the status change is already committed.
func (a *App) afterApply(ctx context.Context, d models.Delivery, ev Event, res *Result, at time.Time) {
	logger := log.With().
		Str("delivery_id", d.ID.String()).
		Str("event", string(ev)).
		Logger()

	if col, ok := ev.StatColumn(); ok {
		if err := a.stats.Increment(ctx, d.OrgID, at, col, 1); err != nil {
			logger.Error().Err(err).Msg("failed to increment daily stat")
		}
	}

	if ev.RevokesConsent() {
		if err := a.contacts.RevokeConsent(ctx, d.ContactID, d.Channel); err != nil {
			logger.Error().Err(err).Msg("failed to revoke consent")
		} else {
			logger.Info().Str("contact_id", d.ContactID.String()).Msg("consent revoked")
			a.recorder.Record(ctx, models.Activity{
				OrgID:      d.OrgID,
				Kind:       models.ActivityConsentRevoked,
				ContactID:  &d.ContactID,
				DeliveryID: &d.ID,
				Channel:    d.Channel,
				Outcome:    string(ev),
			})
		}
	}

	if err := a.emitter.Emit(ctx, d.OrgID, webhook.DeliveryEvent(string(ev)), statusPayload{
		DeliveryID:   d.ID,
		CampaignID:   d.CampaignID,
		EnrollmentID: d.EnrollmentID,
		ContactID:    d.ContactID,
		Channel:      d.Channel,
		Event:        ev,
		Status:       res.Status,
		OccurredAt:   at,
	}); err != nil {
		logger.Error().Err(err).Msg("failed to emit webhook event")
	}

	a.recorder.Record(ctx, models.Activity{
		OrgID:        d.OrgID,
		Kind:         models.ActivityDeliveryStatus,
		ContactID:    &d.ContactID,
		CampaignID:   d.CampaignID,
		EnrollmentID: d.EnrollmentID,
		DeliveryID:   &d.ID,
		Channel:      d.Channel,
		Outcome:      string(res.Status),
		Detail:       string(res.From) + " -> " + string(res.Status),
	})
}

type statusPayload struct {
	DeliveryID   uuid.UUID             `json:"delivery_id"`
	CampaignID   *uuid.UUID            `json:"campaign_id,omitempty"`
	EnrollmentID *uuid.UUID            `json:"enrollment_id,omitempty"`
	ContactID    uuid.UUID             `json:"contact_id"`
	Channel      models.Channel        `json:"channel"`
	Event        Event                 `json:"event"`
	Status       models.DeliveryStatus `json:"status"`
	OccurredAt   time.Time             `json:"occurred_at"`
}
