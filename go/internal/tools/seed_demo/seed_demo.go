package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/outreach/go/internal/dbconfig"
)

// Fixed ids keep reruns idempotent.
var (
	orgID      = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	memberID   = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	campaignID = uuid.MustParse("00000000-0000-4000-8000-000000000010")
	sequenceID = uuid.MustParse("00000000-0000-4000-8000-000000000020")
)

type contact struct {
	first, last  string
	email, phone string
	tags         []string
	emailConsent bool
	smsConsent   bool
	doNotContact bool
}

var contacts = []contact{
	{"Ada", "Lovelace", "ada@example.com", "+15550000001", []string{"vip"}, true, true, false},
	{"Grace", "Hopper", "grace@example.com", "+15550000002", []string{"vip", "navy"}, true, false, false},
	{"Alan", "Turing", "alan@example.com", "", nil, true, false, false},
	{"Edsger", "Dijkstra", "edsger@example.com", "+15550000004", nil, false, true, false},
	{"Barbara", "Liskov", "barbara@example.com", "+15550000005", []string{"vip"}, true, true, true},
	{"Ken", "Thompson", "blocked@example.com", "", nil, true, false, false},
}

func main() {
	ctx := context.Background()

	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error { return seed(ctx, tx) }); err != nil {
		fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Seeded demo org %s (%d contacts, campaign %s, sequence %s)\n", orgID, len(contacts), campaignID, sequenceID)
}

func seed(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `INSERT INTO organizations (id, name) VALUES ($1, 'Acme') ON CONFLICT DO NOTHING`, orgID); err != nil {
		return fmt.Errorf("organization: %w", err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO org_members (id, org_id, full_name) VALUES ($1, $2, 'Sam Rep') ON CONFLICT DO NOTHING`, memberID, orgID); err != nil {
		return fmt.Errorf("member: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO org_send_configs (org_id, daily_limit, warmup_enabled, from_name, from_email, reply_to)
		VALUES ($1, 500, TRUE, 'Acme', 'hello@acme.test', 'sam@acme.test')
		ON CONFLICT (org_id) DO NOTHING`, orgID); err != nil {
		return fmt.Errorf("send config: %w", err)
	}

	batch := &pgx.Batch{}
	for i, c := range contacts {
		id := uuid.NewSHA1(orgID, []byte(c.email))
		tags := c.tags
		if tags == nil {
			tags = []string{}
		}
		batch.Queue(`
			INSERT INTO contacts (id, org_id, first_name, last_name, email, phone, tags, assigned_to,
			                      email_consent, sms_consent, do_not_contact)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`,
			id, orgID, c.first, c.last, c.email, c.phone, tags, assignee(i),
			c.emailConsent, c.smsConsent, c.doNotContact)
	}
	batch.Queue(`INSERT INTO dnc_entries (org_id, identifier, reason) VALUES ($1, 'blocked@example.com', 'demo') ON CONFLICT DO NOTHING`, orgID)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("contacts: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO campaigns (id, org_id, name, channel, subject, body, filter_criteria, batch_size)
		VALUES ($1, $2, 'VIP launch', 'email', 'Hello {{first_name}}',
		        '<p>Hi {{first_name}}, {{assignee_name}} from {{organization_name}} here.</p>',
		        '{"tags":["vip"]}', 50)
		ON CONFLICT (id) DO NOTHING`, campaignID, orgID); err != nil {
		return fmt.Errorf("campaign: %w", err)
	}

	if _, err := tx.Exec(ctx, `INSERT INTO sequences (id, org_id, name) VALUES ($1, $2, 'Onboarding') ON CONFLICT DO NOTHING`, sequenceID, orgID); err != nil {
		return fmt.Errorf("sequence: %w", err)
	}
	steps := []struct {
		position, delay int
		channel         string
		subject, body   string
	}{
		{1, 0, "email", "Welcome {{first_name}}", "<p>Glad you're here, {{first_name}}.</p>"},
		{2, 60 * 24, "sms", "", "Hi {{first_name}}, any questions? - {{organization_name}}"},
	}
	for _, s := range steps {
		if _, err := tx.Exec(ctx, `
			INSERT INTO sequence_steps (sequence_id, position, channel, delay_minutes, subject, body)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (sequence_id, position) DO NOTHING`,
			sequenceID, s.position, s.channel, s.delay, s.subject, s.body); err != nil {
			return fmt.Errorf("sequence step %d: %w", s.position, err)
		}
	}
	return nil
}

func assignee(i int) *uuid.UUID {
	if i%2 == 0 {
		return &memberID
	}
	return nil
}
