// Package ticks exposes the scheduler-triggered work loops over HTTP.
package ticks

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/outreach/go/internal/httpapi"
	"github.com/mcdev12/outreach/go/internal/metrics"
	"github.com/mcdev12/outreach/go/internal/sendqueue"
	"github.com/mcdev12/outreach/go/internal/sequence"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"github.com/rs/zerolog/log"
)

// HeaderSchedulerSecret carries the shared scheduler secret.
const HeaderSchedulerSecret = "X-Scheduler-Secret"

const (
	JobSendQueue = "send-queue"
	JobSequences = "sequences"
	JobWebhooks  = "webhooks"
)

// DefaultTimeout bounds one tick when the service is built without one.
const DefaultTimeout = 15 * time.Minute

// Job runs one tick and reports how many items it processed, even on error.
type Job func(ctx context.Context) (int, error)

// Response is the body of every tick endpoint.
type Response struct {
	Processed int `json:"processed"`
}

type SendQueue interface {
	Tick(ctx context.Context) (sendqueue.TickResult, error)
}

type Sequences interface {
	Tick(ctx context.Context) (sequence.TickResult, error)
}

type Webhooks interface {
	Tick(ctx context.Context) (webhook.TickResult, error)
}

// Service maps tick endpoints to jobs
type Service struct {
	secret  string
	timeout time.Duration
	jobs    map[string]Job
	metrics metrics.Collector
}

// NewService builds the tick endpoints. timeout bounds each tick
// independently of the triggering request.
func NewService(secret string, timeout time.Duration, sq SendQueue, seq Sequences, wh Webhooks, collector metrics.Collector) *Service {
	if collector == nil {
		collector = metrics.NoOp{}
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Service{
		secret:  secret,
		timeout: timeout,
		metrics: collector,
		jobs: map[string]Job{
			JobSendQueue: func(ctx context.Context) (int, error) {
				res, err := sq.Tick(ctx)
				return res.Processed, err
			},
			JobSequences: func(ctx context.Context) (int, error) {
				res, err := seq.Tick(ctx)
				return res.Processed, err
			},
			JobWebhooks: func(ctx context.Context) (int, error) {
				res, err := wh.Tick(ctx)
				return res.Processed, err
			},
		},
	}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Route("/internal/ticks", func(r chi.Router) {
		r.Use(httpapi.RequireSecret(HeaderSchedulerSecret, s.secret))
		for name, job := range s.jobs {
			r.Post("/"+name, s.handler(name, job))
		}
	})
}

// handler always answers 200 with the processed count. Errors midway are
// logged and the partial count is still returned. The job outlives the
// request: a caller that gives up does not cut a tick short.
func (s *Service) handler(name string, job Job) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.timeout)
		defer cancel()

		start := time.Now()
		processed, err := job(ctx)
		elapsed := time.Since(start)
		s.metrics.RecordTick(ctx, name, processed, elapsed, err)

		evt := log.Info()
		if err != nil {
			evt = log.Error().Err(err)
		}
		evt.Str("job", name).
			Int("processed", processed).
			Dur("elapsed", elapsed).
			Msg("tick finished")

		httpapi.WriteJSON(w, http.StatusOK, Response{Processed: processed})
	}
}
