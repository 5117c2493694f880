package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/metrics"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Config tunes the dispatcher.
type Config struct {
	MaxAttempts int           `yaml:"max_attempts" validate:"min=1"`
	BatchSize   int           `yaml:"batch_size" validate:"min=1"`
	Lease       time.Duration `yaml:"lease"`
	Timeout     time.Duration `yaml:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 3,
		BatchSize:   50,
		Lease:       5 * time.Minute,
		Timeout:     10 * time.Second,
	}
}

const leaseMargin = 30 * time.Second

// errLeaseExpired stops an event whose claim would lapse before the next
// subscriber call could finish.
var errLeaseExpired = errors.New("webhook claim lease nearly expired")

// Validate checks that a subscriber call started inside the lease finishes
// inside it.
func (c Config) Validate() error {
	if floor := c.Timeout + leaseMargin; c.Lease <= floor {
		return fmt.Errorf("webhooks.lease %s must be longer than %s (timeout plus %s margin)", c.Lease, floor, leaseMargin)
	}
	return nil
}

func (c Config) sendWindow() time.Duration {
	return c.Lease - c.Timeout - leaseMargin
}

// DispatcherRepository defines what the dispatcher needs from the repository
type DispatcherRepository interface {
	ClaimPending(ctx context.Context, now, lockedUntil time.Time, maxAttempts, limit int) ([]models.WebhookEvent, error)
	Subscriptions(ctx context.Context, orgID uuid.UUID, eventType string) ([]models.WebhookSubscription, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	RecordFailure(ctx context.Context, id uuid.UUID, lastError string, maxAttempts int) (*models.WebhookEvent, error)
	RecordAttempt(ctx context.Context, a models.WebhookAttempt) error
}

// HTTPDoer sends webhook requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TickResult summarizes one dispatcher run.
type TickResult struct {
	Processed int
	Sent      int
	Retrying  int
	Failed    int
}

// Dispatcher delivers pending events to subscribers.
type Dispatcher struct {
	repo    DispatcherRepository
	client  HTTPDoer
	clock   clockwork.Clock
	metrics metrics.Collector
	tracer  trace.Tracer
	config  Config
}

func NewDispatcher(repo DispatcherRepository, client HTTPDoer, clock clockwork.Clock, collector metrics.Collector, cfg Config) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if collector == nil {
		collector = metrics.NoOp{}
	}
	return &Dispatcher{
		repo:    repo,
		client:  client,
		clock:   clock,
		metrics: collector,
		tracer:  otel.Tracer("outreach/webhook"),
		config:  cfg,
	}
}

// Tick claims a batch of pending events and delivers each to every matching
// subscriber. Processed counts settled events. An event that cannot be settled
// stays claimed until its lease lapses and does not stop the rest.
//
// Cancelling ctx stops the tick before the next event; an event already in
// flight is settled regardless.
func (d *Dispatcher) Tick(ctx context.Context) (TickResult, error) {
	var result TickResult
	now := d.clock.Now()

	events, err := d.repo.ClaimPending(ctx, now, now.Add(d.config.Lease), d.config.MaxAttempts, d.config.BatchSize)
	if err != nil {
		return result, err
	}

	work := context.WithoutCancel(ctx)
	sendBy := now.Add(d.config.sendWindow())
	var errs []error
	for i, event := range events {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		status, err := d.dispatch(work, event, sendBy)
		if errors.Is(err, errLeaseExpired) {
			log.Warn().Int("left", len(events)-i).Msg("webhook lease nearly expired, leaving the rest for a later tick")
			break
		}
		if err != nil {
			log.Error().Err(err).Str("event_id", event.ID.String()).Msg("failed to settle webhook event")
			errs = append(errs, fmt.Errorf("failed to settle webhook event %s: %w", event.ID, err))
			continue
		}
		result.Processed++
		switch status {
		case models.WebhookEventStatusSent:
			result.Sent++
		case models.WebhookEventStatusFailed:
			result.Failed++
		default:
			result.Retrying++
		}
	}
	return result, errors.Join(errs...)
}

func (d *Dispatcher) dispatch(ctx context.Context, event models.WebhookEvent, sendBy time.Time) (models.WebhookEventStatus, error) {
	ctx, span := d.tracer.Start(ctx, "webhook.dispatch", trace.WithAttributes(
		attribute.String("event.id", event.ID.String()),
		attribute.String("event.type", event.EventType),
		attribute.Int("event.attempts", event.Attempts),
	))
	defer span.End()

	subs, err := d.repo.Subscriptions(ctx, event.OrgID, event.EventType)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	attempt := event.Attempts + 1
	var failures []string
	for _, sub := range subs {
		if !sub.Matches(event.EventType) {
			continue
		}
		if d.clock.Now().After(sendBy) {
			return "", errLeaseExpired
		}
		rec := d.deliver(ctx, sub, event, attempt)
		if err := d.repo.RecordAttempt(ctx, rec); err != nil {
			log.Warn().Err(err).Str("event_id", event.ID.String()).Msg("failed to record webhook attempt")
		}
		if !rec.Success {
			failures = append(failures, fmt.Sprintf("%s: %s", sub.URL, rec.Error))
		}
	}

	if len(failures) == 0 {
		if err := d.repo.MarkSent(ctx, event.ID, d.clock.Now()); err != nil {
			span.RecordError(err)
			return "", err
		}
		return models.WebhookEventStatusSent, nil
	}

	lastError := strings.Join(failures, "; ")
	span.SetStatus(codes.Error, lastError)
	updated, err := d.repo.RecordFailure(ctx, event.ID, lastError, d.config.MaxAttempts)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	logger := log.Warn()
	if updated.Status == models.WebhookEventStatusFailed {
		logger = log.Error()
	}
	logger.
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Int("attempts", updated.Attempts).
		Str("status", string(updated.Status)).
		Msg("webhook delivery failed")
	return updated.Status, nil
}

func (d *Dispatcher) deliver(ctx context.Context, sub models.WebhookSubscription, event models.WebhookEvent, attempt int) models.WebhookAttempt {
	rec := models.WebhookAttempt{EventID: event.ID, SubscriptionID: sub.ID, Attempt: attempt}
	start := d.clock.Now()
	defer func() {
		rec.Duration = d.clock.Since(start)
		d.metrics.RecordWebhookAttempt(ctx, event.EventType, rec.Success, rec.Duration)
	}()

	ctx, cancel := context.WithTimeout(ctx, d.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(event.Payload))
	if err != nil {
		rec.Error = fmt.Sprintf("failed to create request: %v", err)
		return rec
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, Sign(sub.Secret, event.Payload))
	req.Header.Set(HeaderEventType, event.EventType)
	req.Header.Set(HeaderEventID, event.ID.String())
	req.Header.Set(HeaderAttempt, strconv.Itoa(attempt))
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			rec.Error = "timeout"
		} else {
			rec.Error = err.Error()
		}
		return rec
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	rec.StatusCode = resp.StatusCode
	rec.Success = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !rec.Success {
		rec.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return rec
}
