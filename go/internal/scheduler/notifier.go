package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// Notifier turns Postgres NOTIFY messages on a channel into wakes for a job.
type Notifier struct {
	listener     *pq.Listener
	channel      string
	job          string
	pingInterval time.Duration
}

func NewNotifier(dsn, channel, job string) (*Notifier, error) {
	l := pq.NewListener(
		dsn,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(channel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().Str("channel", channel).Str("job", job).Msg("listening for notifications")
	return &Notifier{listener: l, channel: channel, job: job, pingInterval: 90 * time.Second}, nil
}

// Start forwards notifications to wake until ctx is done. Bursts collapse
// into a single pending wake.
func (n *Notifier) Start(ctx context.Context, wake chan<- string) error {
	pingTicker := time.NewTicker(n.pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return n.listener.Close()
		case note := <-n.listener.Notify:
			if note == nil {
				// connection was re-established; events may have been missed
				log.Warn().Str("channel", n.channel).Msg("listener reconnected")
			}
			select {
			case wake <- n.job:
			default:
			}
		case <-pingTicker.C:
			if err := n.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}
