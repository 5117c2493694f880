// Package activity is the append-only audit log of send attempts and
// lifecycle transitions, plus its live fan-out.
package activity

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ActivityRepository defines what the recorder needs from the repository
type ActivityRepository interface {
	Append(ctx context.Context, a models.Activity) (*models.Activity, error)
}

// Broadcaster pushes a recorded activity to live subscribers.
type Broadcaster interface {
	BroadcastToOrg(orgID uuid.UUID, a *models.Activity)
}

// Recorder persists activities and fans them out. Recording never fails the
// caller: audit problems are logged and the send path carries on.
type Recorder struct {
	repo      ActivityRepository
	publisher Publisher
	feed      Broadcaster
}

func NewRecorder(repo ActivityRepository, publisher Publisher, feed Broadcaster) *Recorder {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &Recorder{repo: repo, publisher: publisher, feed: feed}
}

func (r *Recorder) Record(ctx context.Context, a models.Activity) {
	saved, err := r.repo.Append(ctx, a)
	if err != nil {
		log.Error().
			Err(err).
			Str("org_id", a.OrgID.String()).
			Str("kind", string(a.Kind)).
			Msg("failed to record activity")
		return
	}

	if err := r.publisher.Publish(ctx, saved); err != nil {
		log.Warn().
			Err(err).
			Str("activity_id", saved.ID.String()).
			Msg("failed to publish activity")
	}
	if r.feed != nil {
		r.feed.BroadcastToOrg(saved.OrgID, saved)
	}
}

// Metadata marshals v for Activity.Metadata, dropping it on error.
func Metadata(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		log.Warn().Err(err).Msg("failed to marshal activity metadata")
		return nil
	}
	return data
}
