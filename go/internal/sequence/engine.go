package sequence

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

const leaseMargin = 30 * time.Second

// EngineConfig tunes the sequence engine.
type EngineConfig struct {
	BatchSize int `yaml:"batch_size" validate:"min=1"`
	// Lease is how far next_step_at is pushed while a step is in flight.
	Lease time.Duration `yaml:"lease"`
	// SendTimeout bounds one provider call. It is derived from the provider
	// timeouts, not read from the file.
	SendTimeout time.Duration `yaml:"-"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{BatchSize: 100, Lease: 5 * time.Minute, SendTimeout: 15 * time.Second}
}

// Validate checks that a step started inside the lease finishes inside it.
func (c EngineConfig) Validate() error {
	if floor := c.SendTimeout + leaseMargin; c.Lease <= floor {
		return fmt.Errorf("sequences.lease %s must be longer than %s (send timeout plus %s margin)", c.Lease, floor, leaseMargin)
	}
	return nil
}

func (c EngineConfig) sendWindow() time.Duration {
	return c.Lease - c.SendTimeout - leaseMargin
}

// EnrollmentStore defines what the engine needs from the repository
type EnrollmentStore interface {
	ClaimDue(ctx context.Context, now, leaseUntil time.Time, limit int) ([]models.SequenceEnrollment, error)
	GetStep(ctx context.Context, sequenceID uuid.UUID, position int) (*models.SequenceStep, error)
	Advance(ctx context.Context, id uuid.UUID, fromStep, toStep int, nextStepAt time.Time) (bool, error)
	Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (bool, error)
}

// DeliveryRecorder stores sequence sends as ad-hoc deliveries
type DeliveryRecorder interface {
	RecordAdHoc(ctx context.Context, d models.Delivery) (*models.Delivery, error)
}

// StatsStore increments daily counters
type StatsStore interface {
	Increment(ctx context.Context, orgID uuid.UUID, day time.Time, column models.StatColumn, n int) error
}

// ComplianceChecker runs the compliance rules that apply to every channel
type ComplianceChecker interface {
	BlockReason(ctx context.Context, contact models.Contact) (compliance.Reason, error)
}

// EngineDeps groups the engine's collaborators.
type EngineDeps struct {
	Enrollments EnrollmentStore
	Deliveries  DeliveryRecorder
	Stats       StatsStore
	Contacts    ContactReader
	Guard       ComplianceChecker
	Configs     orgconfig.Provider
	Sender      delivery.Sender
	Emitter     EventEmitter
	Recorder    ActivityRecorder
	Clock       clockwork.Clock
	Metrics     metrics.Collector
}

// TickResult summarizes one engine run. Processed counts claimed
// enrollments that were handled.
type TickResult struct {
	Processed int
	Sent      int
	Failed    int
	Skipped   int
	Completed int
	Cancelled int
	Outcomes  map[delivery.OutcomeKind]int
}

// Engine fires due sequence steps.
type Engine struct {
	deps   EngineDeps
	config EngineConfig
	tracer trace.Tracer
}

func NewEngine(deps EngineDeps, cfg EngineConfig) *Engine {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NoOp{}
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultEngineConfig().BatchSize
	}
	if cfg.Lease <= 0 {
		cfg.Lease = DefaultEngineConfig().Lease
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultEngineConfig().SendTimeout
	}
	return &Engine{deps: deps, config: cfg, tracer: otel.Tracer("outreach/sequence")}
}

// stepResult is what happened to one enrollment.
type stepResult int

const (
	stepAdvanced stepResult = iota
	stepCompleted
	stepCancelled
	stepRetry
)

// Tick fires every due step once. Errors on one enrollment do not stop the
// others; the result always reflects the work done.
//
// Cancelling ctx, or running past the lease's send window, stops the tick
// before the next step. Unstarted enrollments stay leased and are retried once
// the lease passes. A started step always runs to the end.
func (e *Engine) Tick(ctx context.Context) (TickResult, error) {
	ctx, span := e.tracer.Start(ctx, "sequence.tick")
	defer span.End()

	result := TickResult{Outcomes: map[delivery.OutcomeKind]int{}}
	now := e.deps.Clock.Now()
	due, err := e.deps.Enrollments.ClaimDue(ctx, now, now.Add(e.config.Lease), e.config.BatchSize)
	if err != nil {
		span.RecordError(err)
		return result, err
	}

	configs := orgconfig.NewTickCache(e.deps.Configs)
	work := context.WithoutCancel(ctx)
	sendBy := now.Add(e.config.sendWindow())
	var errs []error
	for i, enrollment := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if e.deps.Clock.Now().After(sendBy) {
			log.Warn().Int("left", len(due)-i).Msg("sequence lease nearly expired, leaving the rest for a later tick")
			break
		}
		outcome, res, err := e.process(work, enrollment, configs)
		if err != nil {
			log.Error().Err(err).Str("enrollment_id", enrollment.ID.String()).Msg("sequence step failed")
			errs = append(errs, fmt.Errorf("enrollment %s: %w", enrollment.ID, err))
		}
		if res == stepRetry {
			continue
		}
		result.Processed++
		switch res {
		case stepCompleted:
			result.Completed++
		case stepCancelled:
			result.Cancelled++
		}
		if outcome == nil {
			continue
		}
		result.Outcomes[outcome.Kind]++
		switch {
		case outcome.Kind == delivery.OutcomeSent:
			result.Sent++
		case outcome.Skipped():
			result.Skipped++
		default:
			result.Failed++
		}
	}

	span.SetAttributes(
		attribute.Int("claimed", len(due)),
		attribute.Int("processed", result.Processed),
		attribute.Int("sent", result.Sent),
	)
	err = errors.Join(errs...)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

// process handles one claimed enrollment. The outcome is nil when no step was
// attempted. stepRetry leaves the enrollment leased so a later tick retries it.
func (e *Engine) process(ctx context.Context, en models.SequenceEnrollment, configs orgconfig.Provider) (*delivery.Outcome, stepResult, error) {
	ctx, span := e.tracer.Start(ctx, "sequence.step", trace.WithAttributes(
		attribute.String("enrollment.id", en.ID.String()),
		attribute.Int("step", en.CurrentStep),
	))
	defer span.End()

	contact, err := e.deps.Contacts.GetContact(ctx, en.ContactID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil, stepCancelled, e.cancel(ctx, en, "contact not found")
	}
	if err != nil {
		return nil, stepRetry, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact.Merged() {
		return nil, stepCancelled, e.cancel(ctx, en, "contact merged")
	}

	// A blocked contact is cancelled even when no step is left.
	blocked, err := e.deps.Guard.BlockReason(ctx, *contact)
	if err != nil {
		return nil, stepRetry, err
	}
	if blocked != compliance.ReasonNone {
		return nil, stepCancelled, e.cancel(ctx, en, "blocked: "+string(blocked))
	}

	step, err := e.deps.Enrollments.GetStep(ctx, en.SequenceID, en.CurrentStep)
	if err != nil {
		return nil, stepRetry, err
	}
	if step == nil {
		return nil, stepCompleted, e.complete(ctx, en)
	}

	var outcome delivery.Outcome
	switch reason := compliance.ChannelReason(*contact, step.Channel); reason {
	case compliance.ReasonNone:
		outcome, err = e.send(ctx, en, *contact, *step, configs)
		if err != nil {
			return nil, stepRetry, err
		}
	case compliance.ReasonNoConsent:
		outcome = delivery.SkippedNoConsent()
	default:
		outcome = delivery.SkippedBlocked(string(reason))
	}

	e.deps.Metrics.RecordSendOutcome(ctx, string(step.Channel), string(outcome.Kind))
	e.recordStep(ctx, en, *step, outcome)

	res, err := e.advance(ctx, en)
	return &outcome, res, err
}

func (e *Engine) send(ctx context.Context, en models.SequenceEnrollment, contact models.Contact, step models.SequenceStep, configs orgconfig.Provider) (delivery.Outcome, error) {
	cfg, err := configs.Resolve(ctx, en.OrgID)
	if errors.Is(err, orgconfig.ErrNoConfig) {
		log.Warn().
			Bool("alert", true).
			Str("enrollment_id", en.ID.String()).
			Str("org_id", en.OrgID.String()).
			Msg("sequence step skipped: organization has no send configuration")
		e.deps.Metrics.RecordMissingConfig(ctx, en.OrgID.String())
		return delivery.SkippedNoConfig(), nil
	}
	if err != nil {
		return delivery.Outcome{}, fmt.Errorf("failed to resolve send config: %w", err)
	}

	msg := mergetag.ResolveFor(step.Subject, step.Body, contact)
	res := e.deps.Sender.Send(ctx, delivery.Message{
		OrgID:   en.OrgID,
		Channel: step.Channel,
		To:      contact.Address(step.Channel),
		Subject: msg.Subject,
		Body:    msg.Body,
		Config:  cfg,
		Metadata: map[string]string{
			"enrollment_id": en.ID.String(),
			"sequence_id":   en.SequenceID.String(),
		},
	})

	now := e.deps.Clock.Now()
	record := models.Delivery{
		OrgID:        en.OrgID,
		EnrollmentID: &en.ID,
		ContactID:    en.ContactID,
		Channel:      step.Channel,
	}
	outcome := delivery.Sent()
	if res.Success {
		record.Status = models.DeliveryStatusSent
		record.ProviderMessageID = res.ProviderMessageID
		record.SentAt = &now
	} else {
		outcome = delivery.Failed(res.Error)
		record.Status = models.DeliveryStatusFailed
		record.Error = outcome.String()
	}

	// The provider call already happened; bookkeeping failures are logged so
	// the step is not sent twice.
	if _, err := e.deps.Deliveries.RecordAdHoc(ctx, record); err != nil {
		log.Error().Err(err).Str("enrollment_id", en.ID.String()).Msg("failed to record sequence delivery")
	}
	if res.Success {
		if err := e.deps.Stats.Increment(ctx, en.OrgID, now, models.StatSent, 1); err != nil {
			log.Error().Err(err).Str("org_id", en.OrgID.String()).Msg("failed to increment daily sent")
		}
	}
	return outcome, nil
}

func (e *Engine) advance(ctx context.Context, en models.SequenceEnrollment) (stepResult, error) {
	next, err := e.deps.Enrollments.GetStep(ctx, en.SequenceID, en.CurrentStep+1)
	if err != nil {
		return stepRetry, err
	}
	if next == nil {
		return stepCompleted, e.complete(ctx, en)
	}
	at := e.deps.Clock.Now().Add(next.Delay())
	ok, err := e.deps.Enrollments.Advance(ctx, en.ID, en.CurrentStep, next.Position, at)
	if err != nil {
		return stepRetry, err
	}
	if !ok {
		log.Warn().Str("enrollment_id", en.ID.String()).Msg("enrollment changed before it could advance")
	}
	return stepAdvanced, nil
}

func (e *Engine) complete(ctx context.Context, en models.SequenceEnrollment) error {
	now := e.deps.Clock.Now()
	ok, err := e.deps.Enrollments.Complete(ctx, en.ID, now)
	if err != nil || !ok {
		return err
	}
	en.Status = models.EnrollmentStatusCompleted
	en.NextStepAt = nil
	en.CompletedAt = &now

	log.Info().Str("enrollment_id", en.ID.String()).Msg("enrollment completed")
	e.emit(ctx, en.OrgID, webhook.EventSequenceEnrollmentComplete, enrollmentPayload(&en))
	e.deps.Recorder.Record(ctx, models.Activity{
		OrgID:        en.OrgID,
		Kind:         models.ActivitySequenceCompleted,
		ContactID:    &en.ContactID,
		SequenceID:   &en.SequenceID,
		EnrollmentID: &en.ID,
		Outcome:      string(models.EnrollmentStatusCompleted),
	})
	return nil
}

func (e *Engine) cancel(ctx context.Context, en models.SequenceEnrollment, reason string) error {
	ok, err := e.deps.Enrollments.Cancel(ctx, en.ID, reason)
	if err != nil || !ok {
		return err
	}
	en.Status = models.EnrollmentStatusCancelled
	en.NextStepAt = nil
	en.CancelReason = reason

	log.Info().Str("enrollment_id", en.ID.String()).Str("reason", reason).Msg("enrollment cancelled")
	e.emit(ctx, en.OrgID, webhook.EventSequenceEnrollmentCancel, enrollmentPayload(&en))
	e.deps.Recorder.Record(ctx, models.Activity{
		OrgID:        en.OrgID,
		Kind:         models.ActivitySequenceCancelled,
		ContactID:    &en.ContactID,
		SequenceID:   &en.SequenceID,
		EnrollmentID: &en.ID,
		Outcome:      string(models.EnrollmentStatusCancelled),
		Detail:       reason,
	})
	return nil
}

func (e *Engine) recordStep(ctx context.Context, en models.SequenceEnrollment, step models.SequenceStep, o delivery.Outcome) {
	e.deps.Recorder.Record(ctx, models.Activity{
		OrgID:        en.OrgID,
		Kind:         models.ActivitySequenceStep,
		ContactID:    &en.ContactID,
		SequenceID:   &en.SequenceID,
		EnrollmentID: &en.ID,
		Channel:      step.Channel,
		Outcome:      string(o.Kind),
		Detail:       fmt.Sprintf("step %d: %s", step.Position, o.String()),
	})
}

func (e *Engine) emit(ctx context.Context, orgID uuid.UUID, eventType string, data any) {
	if err := e.deps.Emitter.Emit(ctx, orgID, eventType, data); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("failed to emit webhook event")
	}
}
