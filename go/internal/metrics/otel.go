package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTel implements Collector on an OpenTelemetry meter.
type OTel struct {
	tickRuns        metric.Int64Counter
	tickProcessed   metric.Int64Counter
	tickDuration    metric.Float64Histogram
	sendOutcomes    metric.Int64Counter
	missingConfig   metric.Int64Counter
	webhookAttempts metric.Int64Counter
	webhookDuration metric.Float64Histogram
}

func NewOTel(meter metric.Meter) (*OTel, error) {
	m := &OTel{}
	var err error

	if m.tickRuns, err = meter.Int64Counter("outreach.tick.runs",
		metric.WithDescription("Tick invocations by job and result")); err != nil {
		return nil, fmt.Errorf("failed to create tick runs counter: %w", err)
	}
	if m.tickProcessed, err = meter.Int64Counter("outreach.tick.processed",
		metric.WithDescription("Items processed by tick jobs")); err != nil {
		return nil, fmt.Errorf("failed to create tick processed counter: %w", err)
	}
	if m.tickDuration, err = meter.Float64Histogram("outreach.tick.duration",
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create tick duration histogram: %w", err)
	}
	if m.sendOutcomes, err = meter.Int64Counter("outreach.send.outcomes",
		metric.WithDescription("Delivery attempts by channel and outcome")); err != nil {
		return nil, fmt.Errorf("failed to create send outcome counter: %w", err)
	}
	if m.missingConfig, err = meter.Int64Counter("outreach.send.missing_config",
		metric.WithDescription("Campaign ticks skipped because the org has no send configuration")); err != nil {
		return nil, fmt.Errorf("failed to create missing config counter: %w", err)
	}
	if m.webhookAttempts, err = meter.Int64Counter("outreach.webhook.attempts"); err != nil {
		return nil, fmt.Errorf("failed to create webhook attempts counter: %w", err)
	}
	if m.webhookDuration, err = meter.Float64Histogram("outreach.webhook.duration",
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("failed to create webhook duration histogram: %w", err)
	}
	return m, nil
}

func (m *OTel) RecordTick(ctx context.Context, job string, processed int, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("job", job), attribute.Bool("error", err != nil))
	m.tickRuns.Add(ctx, 1, attrs)
	m.tickProcessed.Add(ctx, int64(processed), metric.WithAttributes(attribute.String("job", job)))
	m.tickDuration.Record(ctx, duration.Seconds(), attrs)
}

func (m *OTel) RecordSendOutcome(ctx context.Context, channel, outcome string) {
	m.sendOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.String("outcome", outcome),
	))
}

func (m *OTel) RecordMissingConfig(ctx context.Context, orgID string) {
	m.missingConfig.Add(ctx, 1, metric.WithAttributes(attribute.String("org_id", orgID)))
}

func (m *OTel) RecordWebhookAttempt(ctx context.Context, eventType string, success bool, duration time.Duration) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType), attribute.Bool("success", success))
	m.webhookAttempts.Add(ctx, 1, attrs)
	m.webhookDuration.Record(ctx, duration.Seconds(), attrs)
}
