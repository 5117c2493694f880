// Package scheduler drives the tick endpoints on fixed intervals.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/outreach/go/internal/ticks"
)

type Job struct {
	Name     string
	Interval time.Duration
}

type Config struct {
	BaseURL        string
	Secret         string
	RequestTimeout time.Duration
	Jobs           []Job
}

// HTTPDoer sends tick requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Scheduler posts to /internal/ticks/{job} on each job's interval. A job
// never runs twice at once; a trigger that lands while it is in flight is
// dropped.
type Scheduler struct {
	client   HTTPDoer
	clock    clockwork.Clock
	cfg      Config
	inFlight map[string]*atomic.Bool
}

func New(client HTTPDoer, clock clockwork.Clock, cfg Config) *Scheduler {
	inFlight := make(map[string]*atomic.Bool, len(cfg.Jobs))
	for _, j := range cfg.Jobs {
		inFlight[j.Name] = &atomic.Bool{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Scheduler{client: client, clock: clock, cfg: cfg, inFlight: inFlight}
}

// Run ticks every job until ctx is done. Names received on wake run that job
// immediately.
func (s *Scheduler) Run(ctx context.Context, wake <-chan string) {
	var wg sync.WaitGroup
	for _, job := range s.cfg.Jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.loop(ctx, job)
		}(job)
	}

	log.Info().Int("jobs", len(s.cfg.Jobs)).Msg("scheduler started")
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			log.Info().Msg("scheduler shutting down")
			return
		case name := <-wake:
			if _, ok := s.inFlight[name]; !ok {
				log.Warn().Str("job", name).Msg("wake for unknown job")
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.run(ctx, name)
			}()
		}
	}
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	ticker := s.clock.NewTicker(job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.run(ctx, job.Name)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, name string) {
	busy := s.inFlight[name]
	if !busy.CompareAndSwap(false, true) {
		log.Debug().Str("job", name).Msg("tick already in flight, skipping")
		return
	}
	defer busy.Store(false)

	start := s.clock.Now()
	processed, err := s.Trigger(ctx, name)
	evt := log.Info()
	if err != nil {
		evt = log.Error().Err(err)
	}
	evt.Str("job", name).
		Int("processed", processed).
		Dur("duration", s.clock.Since(start)).
		Msg("tick")
}

// Trigger posts one tick and returns the processed count the server reports.
func (s *Scheduler) Trigger(ctx context.Context, name string) (int, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/internal/ticks/"+name, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build tick request: %w", err)
	}
	req.Header.Set(ticks.HeaderSchedulerSecret, s.cfg.Secret)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("tick %s failed: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("tick %s returned %d: %s", name, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ticks.Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("failed to decode tick response: %w", err)
	}
	return out.Processed, nil
}
