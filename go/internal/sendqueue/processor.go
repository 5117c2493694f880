// Package sendqueue drains queued campaign deliveries under each org's daily
// send limit.
package sendqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/compliance"
	"github.com/mcdev12/outreach/go/internal/delivery"
	"github.com/mcdev12/outreach/go/internal/mergetag"
	"github.com/mcdev12/outreach/go/internal/metrics"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/orgconfig"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// leaseMargin is kept free at the end of a claim lease for the bookkeeping
// that follows the last send.
const leaseMargin = 30 * time.Second

// Config tunes the batch processor.
type Config struct {
	// ClaimLease is how long a delivery may sit in sending before another
	// tick may reclaim it.
	ClaimLease time.Duration `yaml:"claim_lease"`
	// SendTimeout bounds one provider call. It is derived from the provider
	// timeouts, not read from the file.
	SendTimeout time.Duration `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{ClaimLease: 10 * time.Minute, SendTimeout: 15 * time.Second}
}

// Validate checks that a send started inside the lease finishes inside it.
func (c Config) Validate() error {
	if floor := c.SendTimeout + leaseMargin; c.ClaimLease <= floor {
		return fmt.Errorf("send_queue.claim_lease %s must be longer than %s (send timeout plus %s margin)", c.ClaimLease, floor, leaseMargin)
	}
	return nil
}

// sendWindow is how long after a claim the processor may still start a send.
func (c Config) sendWindow() time.Duration {
	return c.ClaimLease - c.SendTimeout - leaseMargin
}

// CampaignStore defines what the processor needs from the campaign repository
type CampaignStore interface {
	SendingCampaigns(ctx context.Context) ([]models.Campaign, error)
	AddCounters(ctx context.Context, id uuid.UUID, sent, failed int) error
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// DeliveryStore defines what the processor needs from the delivery repository
type DeliveryStore interface {
	Claim(ctx context.Context, campaignID uuid.UUID, limit int, now, staleBefore time.Time) ([]models.Delivery, error)
	MarkSent(ctx context.Context, id uuid.UUID, providerMessageID string, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	Outstanding(ctx context.Context, campaignID uuid.UUID) (int, error)
}

// StatsStore reads and increments daily counters
type StatsStore interface {
	Get(ctx context.Context, orgID uuid.UUID, day time.Time) (models.DailyStat, error)
	FirstDate(ctx context.Context, orgID uuid.UUID) (*time.Time, error)
	Increment(ctx context.Context, orgID uuid.UUID, day time.Time, column models.StatColumn, n int) error
}

// ContactReader loads contacts
type ContactReader interface {
	GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
}

// ComplianceChecker runs the dispatch-time compliance rules
type ComplianceChecker interface {
	Check(ctx context.Context, contact models.Contact, ch models.Channel) (compliance.Reason, error)
}

// EventEmitter queues outbound webhook events
type EventEmitter interface {
	Emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) error
}

// ActivityRecorder appends to the audit log
type ActivityRecorder interface {
	Record(ctx context.Context, a models.Activity)
}

// CampaignResult is what one campaign did during a tick.
type CampaignResult struct {
	CampaignID uuid.UUID
	// Outcome is set when the whole campaign was skipped.
	Outcome *delivery.Outcome
	Claimed int
	// Attempted is how many claimed deliveries were handled before the tick
	// ran out of time. The rest stay leased until ClaimLease passes.
	Attempted int
	Sent      int
	Failed    int
	Skipped   int
	Completed bool
}

// TickResult summarizes one batch processor run. Processed counts claimed
// deliveries that were attempted.
type TickResult struct {
	Processed int
	Sent      int
	Failed    int
	Skipped   int
	Outcomes  map[delivery.OutcomeKind]int
	Campaigns []CampaignResult
}

func (r *TickResult) add(cr CampaignResult) {
	r.Processed += cr.Attempted
	r.Sent += cr.Sent
	r.Failed += cr.Failed
	r.Skipped += cr.Skipped
	if cr.Outcome != nil {
		r.Outcomes[cr.Outcome.Kind]++
	}
	r.Campaigns = append(r.Campaigns, cr)
}

// Processor is the campaign batch processor.
type Processor struct {
	campaigns  CampaignStore
	deliveries DeliveryStore
	stats      StatsStore
	contacts   ContactReader
	guard      ComplianceChecker
	configs    orgconfig.Provider
	sender     delivery.Sender
	emitter    EventEmitter
	recorder   ActivityRecorder
	clock      clockwork.Clock
	metrics    metrics.Collector
	tracer     trace.Tracer
	config     Config
}

// Deps groups the processor's collaborators.
type Deps struct {
	Campaigns  CampaignStore
	Deliveries DeliveryStore
	Stats      StatsStore
	Contacts   ContactReader
	Guard      ComplianceChecker
	Configs    orgconfig.Provider
	Sender     delivery.Sender
	Emitter    EventEmitter
	Recorder   ActivityRecorder
	Clock      clockwork.Clock
	Metrics    metrics.Collector
}

func NewProcessor(deps Deps, cfg Config) *Processor {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	return &Processor{
		campaigns:  deps.Campaigns,
		deliveries: deps.Deliveries,
		stats:      deps.Stats,
		contacts:   deps.Contacts,
		guard:      deps.Guard,
		configs:    deps.Configs,
		sender:     deps.Sender,
		emitter:    deps.Emitter,
		recorder:   deps.Recorder,
		clock:      deps.Clock,
		metrics:    deps.Metrics,
		tracer:     otel.Tracer("outreach/sendqueue"),
		config:     cfg,
	}
}

// Tick processes every sending campaign once. A failing campaign does not
// stop the others; the returned result always reflects the work done.
//
// Cancelling ctx stops the tick before the next claim or send. A delivery
// whose provider call has started is always settled, so its bookkeeping runs
// on a context that ignores the cancellation.
func (p *Processor) Tick(ctx context.Context) (TickResult, error) {
	ctx, span := p.tracer.Start(ctx, "sendqueue.tick")
	defer span.End()

	result := TickResult{Outcomes: map[delivery.OutcomeKind]int{}}
	campaigns, err := p.campaigns.SendingCampaigns(ctx)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	configs := orgconfig.NewTickCache(p.configs)
	var errs []error
	for _, c := range campaigns {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		cr, err := p.processCampaign(ctx, c, configs)
		for kind, n := range cr.outcomes {
			result.Outcomes[kind] += n
		}
		result.add(cr.CampaignResult)
		if err != nil {
			log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("campaign batch failed")
			errs = append(errs, fmt.Errorf("campaign %s: %w", c.ID, err))
		}
	}

	span.SetAttributes(
		attribute.Int("campaigns", len(campaigns)),
		attribute.Int("processed", result.Processed),
		attribute.Int("sent", result.Sent),
	)
	err = errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

type campaignRun struct {
	CampaignResult
	outcomes map[delivery.OutcomeKind]int
}

func (p *Processor) processCampaign(ctx context.Context, c models.Campaign, configs orgconfig.Provider) (campaignRun, error) {
	ctx, span := p.tracer.Start(ctx, "sendqueue.campaign", trace.WithAttributes(
		attribute.String("campaign.id", c.ID.String()),
		attribute.String("org.id", c.OrgID.String()),
	))
	defer span.End()

	run := campaignRun{
		CampaignResult: CampaignResult{CampaignID: c.ID},
		outcomes:       map[delivery.OutcomeKind]int{},
	}
	now := p.clock.Now()

	cfg, err := configs.Resolve(ctx, c.OrgID)
	if errors.Is(err, orgconfig.ErrNoConfig) {
		log.Warn().
			Bool("alert", true).
			Str("campaign_id", c.ID.String()).
			Str("org_id", c.OrgID.String()).
			Msg("campaign stalled: organization has no send configuration")
		p.metrics.RecordMissingConfig(ctx, c.OrgID.String())
		o := delivery.SkippedNoConfig()
		run.Outcome = &o
		return run, nil
	}
	if err != nil {
		return run, fmt.Errorf("failed to resolve send config: %w", err)
	}

	batch, err := p.batchSize(ctx, c, cfg, now)
	if err != nil {
		return run, err
	}
	if batch <= 0 {
		log.Debug().Str("campaign_id", c.ID.String()).Msg("daily limit reached, skipping campaign")
		o := delivery.SkippedRateLimited()
		run.Outcome = &o
		return run, nil
	}

	if err := ctx.Err(); err != nil {
		return run, err
	}
	claimed, err := p.deliveries.Claim(ctx, c.ID, batch, now, now.Add(-p.config.ClaimLease))
	if err != nil {
		return run, err
	}
	run.Claimed = len(claimed)
	span.SetAttributes(attribute.Int("batch", batch), attribute.Int("claimed", len(claimed)))

	// From here on every write settles work that already happened.
	book := context.WithoutCancel(ctx)
	sendBy := now.Add(p.config.sendWindow())

	// Per-row problems become outcomes; only store failures escape the loop.
	var loopErr error
	for _, d := range claimed {
		if err := ctx.Err(); err != nil {
			loopErr = errors.Join(loopErr, err)
			break
		}
		if p.clock.Now().After(sendBy) {
			log.Warn().
				Str("campaign_id", c.ID.String()).
				Int("left", len(claimed)-run.Attempted).
				Msg("claim lease nearly expired, leaving the rest of the batch for a later tick")
			break
		}
		run.Attempted++
		outcome, err := p.send(book, c, d, cfg)
		if err != nil {
			loopErr = errors.Join(loopErr, err)
		}
		run.outcomes[outcome.Kind]++
		p.metrics.RecordSendOutcome(book, string(c.Channel), string(outcome.Kind))
		switch {
		case outcome.Kind == delivery.OutcomeSent:
			run.Sent++
		case outcome.Skipped():
			run.Skipped++
			run.Failed++
		default:
			run.Failed++
		}
	}

	if err := p.campaigns.AddCounters(book, c.ID, run.Sent, run.Failed); err != nil {
		return run, errors.Join(loopErr, err)
	}
	if err := p.stats.Increment(book, c.OrgID, now, models.StatSent, run.Sent); err != nil {
		return run, errors.Join(loopErr, err)
	}

	completed, err := p.maybeComplete(book, c)
	if err != nil {
		return run, errors.Join(loopErr, err)
	}
	run.Completed = completed

	log.Info().
		Str("campaign_id", c.ID.String()).
		Int("claimed", run.Claimed).
		Int("attempted", run.Attempted).
		Int("sent", run.Sent).
		Int("failed", run.Failed).
		Bool("completed", completed).
		Msg("campaign batch processed")
	return run, loopErr
}

func (p *Processor) batchSize(ctx context.Context, c models.Campaign, cfg models.SendConfig, now time.Time) (int, error) {
	first, err := p.stats.FirstDate(ctx, c.OrgID)
	if err != nil {
		return 0, err
	}
	today, err := p.stats.Get(ctx, c.OrgID, now)
	if err != nil {
		return 0, err
	}
	limit := EffectiveDailyLimit(cfg, first, now)
	return BatchSize(c.BatchSize, limit, today.Sent), nil
}

// send attempts one claimed delivery. The returned error is reserved for
// store failures; provider and compliance problems are outcomes.
func (p *Processor) send(ctx context.Context, c models.Campaign, d models.Delivery, cfg models.SendConfig) (delivery.Outcome, error) {
	contact, err := p.contacts.GetContact(ctx, d.ContactID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			log.Warn().Err(err).Str("delivery_id", d.ID.String()).Msg("failed to load contact")
		}
		return p.fail(ctx, c, d, nil, delivery.Failed("contact unavailable"))
	}

	reason, err := p.guard.Check(ctx, *contact, d.Channel)
	if err != nil {
		log.Warn().Err(err).Str("delivery_id", d.ID.String()).Msg("compliance check failed")
		return p.fail(ctx, c, d, contact, delivery.Failed("compliance check unavailable"))
	}
	switch reason {
	case compliance.ReasonNone:
	case compliance.ReasonNoConsent:
		return p.fail(ctx, c, d, contact, delivery.SkippedNoConsent())
	default:
		return p.fail(ctx, c, d, contact, delivery.SkippedBlocked(string(reason)))
	}

	msg := mergetag.ResolveFor(c.Subject, c.Body, *contact)
	res := p.sender.Send(ctx, delivery.Message{
		DeliveryID: d.ID,
		OrgID:      c.OrgID,
		Channel:    d.Channel,
		To:         contact.Address(d.Channel),
		Subject:    msg.Subject,
		Body:       msg.Body,
		Config:     cfg,
		Metadata:   map[string]string{"campaign_id": c.ID.String()},
	})
	if !res.Success {
		return p.fail(ctx, c, d, contact, delivery.Failed(res.Error))
	}

	if ok, err := p.deliveries.MarkSent(ctx, d.ID, res.ProviderMessageID, p.clock.Now()); err != nil {
		return delivery.Sent(), err
	} else if !ok {
		log.Warn().Str("delivery_id", d.ID.String()).Msg("delivery left sending before it was marked sent")
	}
	p.record(ctx, c, d, delivery.Sent(), res.ProviderMessageID)
	return delivery.Sent(), nil
}

func (p *Processor) fail(ctx context.Context, c models.Campaign, d models.Delivery, contact *models.Contact, o delivery.Outcome) (delivery.Outcome, error) {
	log.Debug().
		Str("delivery_id", d.ID.String()).
		Str("outcome", o.String()).
		Msg("delivery not sent")
	if _, err := p.deliveries.MarkFailed(ctx, d.ID, o.String()); err != nil {
		return o, err
	}
	p.record(ctx, c, d, o, "")
	return o, nil
}

func (p *Processor) record(ctx context.Context, c models.Campaign, d models.Delivery, o delivery.Outcome, providerID string) {
	detail := o.Reason
	if providerID != "" {
		detail = "provider_message_id=" + providerID
	}
	p.recorder.Record(ctx, models.Activity{
		OrgID:      c.OrgID,
		Kind:       models.ActivityCampaignSend,
		ContactID:  &d.ContactID,
		CampaignID: &c.ID,
		DeliveryID: &d.ID,
		Channel:    d.Channel,
		Outcome:    string(o.Kind),
		Detail:     detail,
	})
}

func (p *Processor) maybeComplete(ctx context.Context, c models.Campaign) (bool, error) {
	outstanding, err := p.deliveries.Outstanding(ctx, c.ID)
	if err != nil {
		return false, err
	}
	if outstanding > 0 {
		return false, nil
	}
	done, err := p.campaigns.Complete(ctx, c.ID, p.clock.Now())
	if err != nil || !done {
		return false, err
	}

	log.Info().Str("campaign_id", c.ID.String()).Msg("campaign completed")
	if err := p.emitter.Emit(ctx, c.OrgID, webhook.EventCampaignCompleted, map[string]any{
		"campaign_id": c.ID,
	}); err != nil {
		log.Error().Err(err).Str("campaign_id", c.ID.String()).Msg("failed to emit campaign completed")
	}
	p.recorder.Record(ctx, models.Activity{
		OrgID:      c.OrgID,
		Kind:       models.ActivityCampaignCompleted,
		CampaignID: &c.ID,
		Channel:    c.Channel,
		Outcome:    string(models.CampaignStatusCompleted),
	})
	return true, nil
}
