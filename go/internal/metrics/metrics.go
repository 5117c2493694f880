// Package metrics records delivery engine counters and timings.
package metrics

import (
	"context"
	"time"
)

// Collector defines the metrics the tick jobs report
type Collector interface {
	RecordTick(ctx context.Context, job string, processed int, duration time.Duration, err error)
	RecordSendOutcome(ctx context.Context, channel, outcome string)
	RecordMissingConfig(ctx context.Context, orgID string)
	RecordWebhookAttempt(ctx context.Context, eventType string, success bool, duration time.Duration)
}

// NoOp is a Collector for when metrics aren't needed
type NoOp struct{}

func (NoOp) RecordTick(context.Context, string, int, time.Duration, error)     {}
func (NoOp) RecordSendOutcome(context.Context, string, string)                 {}
func (NoOp) RecordMissingConfig(context.Context, string)                       {}
func (NoOp) RecordWebhookAttempt(context.Context, string, bool, time.Duration) {}
