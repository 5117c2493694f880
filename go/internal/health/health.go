// Package health reports whether the delivery engine can do its work.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const pendingWebhookAlert = 1000

type Status struct {
	Healthy           bool     `json:"healthy"`
	DatabaseConnected bool     `json:"database_connected"`
	BrokerConnected   *bool    `json:"broker_connected,omitempty"`
	PendingWebhooks   int64    `json:"pending_webhooks"`
	StalledCampaigns  int64    `json:"stalled_campaigns"`
	Errors            []string `json:"errors"`
}

// Pinger is satisfied by *sql.DB
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Querier defines the counts the checker reads
type Querier interface {
	CountPendingWebhookEvents(ctx context.Context) (int64, error)
	CountCampaignsWithoutSendConfig(ctx context.Context) (int64, error)
}

// Broker is an activity publisher that holds a live connection.
type Broker interface {
	Connected() bool
}

type Checker struct {
	db      Pinger
	queries Querier
	broker  Broker
}

// NewChecker builds a Checker. broker may be nil when the activity
// publisher has no connection to watch.
func NewChecker(db Pinger, queries Querier, broker Broker) *Checker {
	return &Checker{db: db, queries: queries, broker: broker}
}

func (h *Checker) Check(ctx context.Context) Status {
	status := Status{Healthy: true, Errors: []string{}}

	if err := h.db.PingContext(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("database ping failed: %v", err))
	} else {
		status.DatabaseConnected = true
	}

	if h.broker != nil {
		connected := h.broker.Connected()
		status.BrokerConnected = &connected
		if !connected {
			status.Healthy = false
			status.Errors = append(status.Errors, "activity broker disconnected")
		}
	}

	if !status.DatabaseConnected {
		return status
	}

	pending, err := h.queries.CountPendingWebhookEvents(ctx)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("failed to count pending webhooks: %v", err))
	} else {
		status.PendingWebhooks = pending
		if pending > pendingWebhookAlert {
			status.Errors = append(status.Errors, fmt.Sprintf("high pending webhook count: %d", pending))
		}
	}

	// Campaigns stuck in sending because their org has no send config.
	// Reported, not fatal: the rest of the engine keeps working.
	stalled, err := h.queries.CountCampaignsWithoutSendConfig(ctx)
	if err != nil {
		status.Errors = append(status.Errors, fmt.Sprintf("failed to count stalled campaigns: %v", err))
	} else {
		status.StalledCampaigns = stalled
		if stalled > 0 {
			status.Errors = append(status.Errors, fmt.Sprintf("%d sending campaigns have no send config", stalled))
			log.Warn().Int64("campaigns", stalled).Bool("alert", true).Msg("Campaigns stalled without send config")
		}
	}

	return status
}

func (h *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("Failed to encode health status")
	}
}
