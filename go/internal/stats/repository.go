// Package stats reads and atomically increments per-org daily counters.
package stats

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
)

// Querier defines what the repository needs from the database layer
type Querier interface {
	GetDailyStat(ctx context.Context, arg db.GetDailyStatParams) (db.DailyStat, error)
	GetFirstStatDate(ctx context.Context, orgID uuid.UUID) (sql.NullTime, error)
	IncrementDailyStat(ctx context.Context, arg db.IncrementDailyStatParams) error
}

type Repository struct {
	queries Querier
}

func NewRepository(querier Querier) *Repository {
	return &Repository{queries: querier}
}

// Day truncates t to its UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Get returns the org's counters for day, zero valued when no row exists.
func (r *Repository) Get(ctx context.Context, orgID uuid.UUID, day time.Time) (models.DailyStat, error) {
	day = Day(day)
	row, err := r.queries.GetDailyStat(ctx, db.GetDailyStatParams{OrgID: orgID, StatDate: day})
	if errors.Is(err, sql.ErrNoRows) {
		return models.DailyStat{OrgID: orgID, StatDate: day}, nil
	}
	if err != nil {
		return models.DailyStat{}, fmt.Errorf("failed to get daily stat: %w", err)
	}
	return models.DailyStat{
		OrgID:     row.OrgID,
		StatDate:  row.StatDate,
		Sent:      int(row.Sent),
		Delivered: int(row.Delivered),
		Opened:    int(row.Opened),
		Clicked:   int(row.Clicked),
		Bounced:   int(row.Bounced),
	}, nil
}

// FirstDate returns the org's earliest stat date, or nil if it has none.
func (r *Repository) FirstDate(ctx context.Context, orgID uuid.UUID) (*time.Time, error) {
	first, err := r.queries.GetFirstStatDate(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to get first stat date: %w", err)
	}
	if !first.Valid {
		return nil, nil
	}
	// Keep the calendar date the driver returned, whatever its location.
	y, m, dd := first.Time.Date()
	d := time.Date(y, m, dd, 0, 0, 0, 0, time.UTC)
	return &d, nil
}

// Increment adds n to one counter for the org's day in a single upsert.
func (r *Repository) Increment(ctx context.Context, orgID uuid.UUID, day time.Time, column models.StatColumn, n int) error {
	if n == 0 {
		return nil
	}
	arg := db.IncrementDailyStatParams{OrgID: orgID, StatDate: Day(day)}
	switch column {
	case models.StatSent:
		arg.Sent = int32(n)
	case models.StatDelivered:
		arg.Delivered = int32(n)
	case models.StatOpened:
		arg.Opened = int32(n)
	case models.StatClicked:
		arg.Clicked = int32(n)
	case models.StatBounced:
		arg.Bounced = int32(n)
	default:
		return fmt.Errorf("unknown stat column %q", column)
	}
	if err := r.queries.IncrementDailyStat(ctx, arg); err != nil {
		return fmt.Errorf("failed to increment daily %s: %w", column, err)
	}
	return nil
}
