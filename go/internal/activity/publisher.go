package activity

import (
	"context"

	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Publisher forwards recorded activities to an event stream for analytics.
type Publisher interface {
	Publish(ctx context.Context, a *models.Activity) error
	Close() error
}

// NoopPublisher discards activities.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, *models.Activity) error { return nil }
func (NoopPublisher) Close() error                                    { return nil }

// LogPublisher writes activities to the structured log.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, a *models.Activity) error {
	log.Info().
		Str("activity_id", a.ID.String()).
		Str("org_id", a.OrgID.String()).
		Str("kind", string(a.Kind)).
		Str("outcome", a.Outcome).
		Msg("activity")
	return nil
}

func (LogPublisher) Close() error { return nil }

func subjectSuffix(a *models.Activity) string {
	return a.OrgID.String() + "." + string(a.Kind)
}
