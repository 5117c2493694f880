package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/outreach/go/internal/config"
	"github.com/mcdev12/outreach/go/internal/dbconfig"
	"github.com/mcdev12/outreach/go/internal/scheduler"
	"github.com/mcdev12/outreach/go/internal/ticks"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("Could not load .env file")
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if level, err := zerolog.ParseLevel(cfg.Log.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Log.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sc := cfg.Scheduler
	s := scheduler.New(&http.Client{}, clockwork.NewRealClock(), scheduler.Config{
		BaseURL:        sc.BaseURL,
		Secret:         cfg.Secrets.Scheduler,
		RequestTimeout: sc.RequestTimeout,
		Jobs: []scheduler.Job{
			{Name: ticks.JobSendQueue, Interval: sc.SendQueueInterval},
			{Name: ticks.JobSequences, Interval: sc.SequenceInterval},
			{Name: ticks.JobWebhooks, Interval: sc.WebhookInterval},
		},
	})

	wake := make(chan string, 1)
	if sc.NotifyChannel != "" {
		notifier, err := scheduler.NewNotifier(dbconfig.NewConfigFromEnv().DSN(), sc.NotifyChannel, ticks.JobWebhooks)
		if err != nil {
			// interval ticks still cover webhooks without the listener
			log.Error().Err(err).Msg("Failed to start webhook notifier")
		} else {
			go func() {
				if err := notifier.Start(ctx, wake); err != nil {
					log.Error().Err(err).Msg("Notifier stopped with error")
				}
			}()
		}
	}

	log.Info().Str("base_url", sc.BaseURL).Msg("Scheduler starting")
	s.Run(ctx, wake)
	log.Info().Msg("Scheduler stopped")
}
