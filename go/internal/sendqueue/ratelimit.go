package sendqueue

import (
	"time"

	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/stats"
)

const (
	warmupStart = 50
	// 50 << 24 already exceeds any sane daily cap.
	maxWarmupDoublings = 24
)

// EffectiveDailyLimit returns the org's send cap for today. With warmup the
// cap starts at 50 on the org's first stat day and doubles daily until it
// reaches the configured limit. firstDay is nil for an org that never sent.
func EffectiveDailyLimit(cfg models.SendConfig, firstDay *time.Time, today time.Time) int {
	if cfg.DailyLimit <= 0 {
		return 0
	}
	if !cfg.WarmupEnabled {
		return cfg.DailyLimit
	}
	return min(cfg.DailyLimit, warmupStart<<WarmupDay(firstDay, today))
}

// WarmupDay returns the number of whole days between firstDay and today,
// clamped to [0, maxWarmupDoublings].
func WarmupDay(firstDay *time.Time, today time.Time) int {
	if firstDay == nil {
		return 0
	}
	d := int(stats.Day(today).Sub(stats.Day(*firstDay)).Hours() / 24)
	return max(0, min(d, maxWarmupDoublings))
}

// BatchSize returns how many deliveries a campaign may claim this tick.
func BatchSize(campaignBatch, effectiveLimit, sentToday int) int {
	return max(0, min(campaignBatch, effectiveLimit-sentToday))
}
