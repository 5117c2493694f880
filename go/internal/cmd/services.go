package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"

	"github.com/mcdev12/outreach/go/clients/emailrelay"
	"github.com/mcdev12/outreach/go/clients/telephony"
	"github.com/mcdev12/outreach/go/internal/activity"
	"github.com/mcdev12/outreach/go/internal/audience"
	"github.com/mcdev12/outreach/go/internal/campaign"
	"github.com/mcdev12/outreach/go/internal/compliance"
	"github.com/mcdev12/outreach/go/internal/config"
	"github.com/mcdev12/outreach/go/internal/contacts"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/delivery"
	"github.com/mcdev12/outreach/go/internal/deliverystatus"
	"github.com/mcdev12/outreach/go/internal/health"
	"github.com/mcdev12/outreach/go/internal/metrics"
	"github.com/mcdev12/outreach/go/internal/orgconfig"
	"github.com/mcdev12/outreach/go/internal/sendqueue"
	"github.com/mcdev12/outreach/go/internal/sequence"
	"github.com/mcdev12/outreach/go/internal/stats"
	"github.com/mcdev12/outreach/go/internal/ticks"
	"github.com/mcdev12/outreach/go/internal/webhook"
)

type Services struct {
	Campaigns      *campaign.Service
	Sequences      *sequence.Service
	DeliveryStatus *deliverystatus.Service
	Ticks          *ticks.Service
	Feed           *activity.Feed
	Health         *health.Checker

	publisher activity.Publisher
}

func (s *Services) Close() {
	if err := s.publisher.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close activity publisher")
	}
}

func setupServices(ctx context.Context, cfg *config.Config, database *sql.DB) (*Services, error) {
	// Wire up dependency injection chain
	// Database layer → Repository layer → App layer → Service layer
	queries := db.New(database)
	clock := clockwork.NewRealClock()

	var collector metrics.Collector = metrics.NoOp{}
	if m, err := metrics.NewOTel(otel.Meter("outreach")); err != nil {
		log.Warn().Err(err).Msg("Falling back to no-op metrics")
	} else {
		collector = m
	}

	// Activity log, stream and live feed
	publisher, err := setupPublisher(ctx, cfg.Activity)
	if err != nil {
		return nil, err
	}
	feedConfig := activity.DefaultFeedConfig()
	feedConfig.Secret = cfg.Secrets.Feed
	feed := activity.NewFeed(feedConfig)
	go feed.Start(ctx)
	recorder := activity.NewRecorder(activity.NewRepository(queries), publisher, feed)

	// Shared repositories
	contactRepo := contacts.NewRepository(queries)
	deliveryRepo := delivery.NewRepository(queries)
	statsRepo := stats.NewRepository(queries)
	guard := compliance.NewGuard(compliance.NewRepository(queries))
	webhookRepo := webhook.NewRepository(queries)
	emitter := webhook.NewEmitter(webhookRepo, clock)

	providers := []orgconfig.Provider{orgconfig.NewRepository(queries)}
	if cfg.Defaults.Enabled {
		providers = append(providers, orgconfig.NewStatic(cfg.Defaults.Send))
	}
	configs := orgconfig.NewChain(providers...)

	sender := setupSender(cfg)

	// Campaigns
	campaignRepo := campaign.NewRepository(queries, database)
	resolver := audience.NewResolver(campaignRepo, contactRepo, guard)
	campaignApp := campaign.NewApp(campaignRepo, resolver, emitter, recorder, clock)
	campaignService := campaign.NewService(campaignApp)

	// Send queue
	processor := sendqueue.NewProcessor(sendqueue.Deps{
		Campaigns:  sendqueue.NewRepository(queries),
		Deliveries: deliveryRepo,
		Stats:      statsRepo,
		Contacts:   contactRepo,
		Guard:      guard,
		Configs:    configs,
		Sender:     sender,
		Emitter:    emitter,
		Recorder:   recorder,
		Clock:      clock,
		Metrics:    collector,
	}, cfg.SendQueue)

	// Sequences
	sequenceRepo := sequence.NewRepository(queries)
	sequenceApp := sequence.NewApp(sequenceRepo, contactRepo, emitter, recorder, clock)
	sequenceService := sequence.NewService(sequenceApp)
	engine := sequence.NewEngine(sequence.EngineDeps{
		Enrollments: sequenceRepo,
		Deliveries:  deliveryRepo,
		Stats:       statsRepo,
		Contacts:    contactRepo,
		Guard:       guard,
		Configs:     configs,
		Sender:      sender,
		Emitter:     emitter,
		Recorder:    recorder,
		Clock:       clock,
		Metrics:     collector,
	}, cfg.Sequences)

	// Webhooks
	dispatcher := webhook.NewDispatcher(webhookRepo, &http.Client{Timeout: cfg.Webhooks.Timeout}, clock, collector, cfg.Webhooks)

	// Delivery status callbacks
	statusApp := deliverystatus.NewApp(deliveryRepo, contactRepo, statsRepo, emitter, recorder, clock)
	statusService := deliverystatus.NewService(statusApp, cfg.Secrets.Callback)

	tickService := ticks.NewService(cfg.Secrets.Scheduler, cfg.Server.TickTimeout, processor, engine, dispatcher, collector)

	var broker health.Broker
	if b, ok := publisher.(health.Broker); ok {
		broker = b
	}

	return &Services{
		Campaigns:      campaignService,
		Sequences:      sequenceService,
		DeliveryStatus: statusService,
		Ticks:          tickService,
		Feed:           feed,
		Health:         health.NewChecker(database, queries, broker),
		publisher:      publisher,
	}, nil
}

func setupPublisher(ctx context.Context, cfg config.ActivityConfig) (activity.Publisher, error) {
	switch cfg.Publisher {
	case "nats":
		jsCfg := activity.DefaultJetStreamConfig()
		jsCfg.URL = cfg.NATSURL
		p, err := activity.NewJetStreamPublisher(ctx, jsCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect activity publisher to NATS: %w", err)
		}
		log.Info().Str("url", cfg.NATSURL).Msg("Publishing activities to NATS JetStream")
		return p, nil
	case "rabbitmq":
		p, err := activity.NewAMQPPublisher(activity.AMQPConfig{URL: cfg.AMQPURL, Exchange: cfg.Exchange})
		if err != nil {
			return nil, fmt.Errorf("failed to connect activity publisher to RabbitMQ: %w", err)
		}
		log.Info().Str("exchange", cfg.Exchange).Msg("Publishing activities to RabbitMQ")
		return p, nil
	case "none":
		return activity.NoopPublisher{}, nil
	default:
		return activity.LogPublisher{}, nil
	}
}

func setupSender(cfg *config.Config) *delivery.Router {
	var email, sms delivery.Sender
	if cfg.Email.RelayURL != "" {
		email = delivery.NewEmailAdapter(emailrelay.NewClient(emailrelay.Config{
			URL:     cfg.Email.RelayURL,
			APIKey:  cfg.Email.APIKey,
			Timeout: cfg.Email.Timeout,
		}))
	} else {
		log.Warn().Msg("No email relay configured, email sends will fail")
	}
	if cfg.SMS.BaseURL != "" {
		sms = delivery.NewSMSAdapter(telephony.NewClient(telephony.Config{
			BaseURL:    cfg.SMS.BaseURL,
			AccountSID: cfg.SMS.AccountSID,
			AuthToken:  cfg.SMS.AuthToken,
			Timeout:    cfg.SMS.Timeout,
		}), cfg.SMS.StatusCallbackURL)
	} else {
		log.Warn().Msg("No SMS provider configured, SMS sends will fail")
	}
	return delivery.NewRouter(email, sms)
}
