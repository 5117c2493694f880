package sendqueue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/compliance"
	"github.com/mcdev12/outreach/go/internal/delivery"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/orgconfig"
	"github.com/mcdev12/outreach/go/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// world is an in-memory stand-in for the campaign, delivery and stats tables.
type world struct {
	mu         sync.Mutex
	campaigns  map[uuid.UUID]*models.Campaign
	deliveries []*models.Delivery
	contacts   map[uuid.UUID]*models.Contact
	daily      map[string]int
	firstDay   map[uuid.UUID]time.Time
	events     []string
	activities []models.Activity
}

func newWorld() *world {
	return &world{
		campaigns: map[uuid.UUID]*models.Campaign{},
		contacts:  map[uuid.UUID]*models.Contact{},
		daily:     map[string]int{},
		firstDay:  map[uuid.UUID]time.Time{},
	}
}

func statKey(orgID uuid.UUID, t time.Time) string {
	return orgID.String() + stats.Day(t).Format("2006-01-02")
}

func (w *world) SendingCampaigns(context.Context) ([]models.Campaign, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.Campaign
	for _, c := range w.campaigns {
		if c.Status == models.CampaignStatusSending {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (w *world) AddCounters(_ context.Context, id uuid.UUID, sent, failed int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.campaigns[id].SentCount += sent
	w.campaigns[id].FailedCount += failed
	return nil
}

func (w *world) Complete(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.campaigns[id]
	if c.Status != models.CampaignStatusSending {
		return false, nil
	}
	c.Status = models.CampaignStatusCompleted
	c.CompletedAt = &at
	return true, nil
}

func (w *world) Claim(_ context.Context, campaignID uuid.UUID, limit int, now, staleBefore time.Time) ([]models.Delivery, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.Delivery
	for _, d := range w.deliveries {
		if len(out) == limit {
			break
		}
		if d.CampaignID == nil || *d.CampaignID != campaignID {
			continue
		}
		stale := d.Status == models.DeliveryStatusSending && d.ClaimedAt != nil && d.ClaimedAt.Before(staleBefore)
		if d.Status == models.DeliveryStatusQueued || stale {
			d.Status = models.DeliveryStatusSending
			claimed := now
			d.ClaimedAt = &claimed
			out = append(out, *d)
		}
	}
	return out, nil
}

func (w *world) find(id uuid.UUID) *models.Delivery {
	for _, d := range w.deliveries {
		if d.ID == id {
			return d
		}
	}
	return nil
}

func (w *world) MarkSent(_ context.Context, id uuid.UUID, providerID string, at time.Time) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.find(id)
	if d.Status != models.DeliveryStatusSending {
		return false, nil
	}
	d.Status = models.DeliveryStatusSent
	d.ProviderMessageID = providerID
	d.SentAt = &at
	return true, nil
}

func (w *world) MarkFailed(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	d := w.find(id)
	if d.Status != models.DeliveryStatusSending {
		return false, nil
	}
	d.Status = models.DeliveryStatusFailed
	d.Error = reason
	return true, nil
}

func (w *world) Outstanding(_ context.Context, campaignID uuid.UUID) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, d := range w.deliveries {
		if *d.CampaignID == campaignID && (d.Status == models.DeliveryStatusQueued || d.Status == models.DeliveryStatusSending) {
			n++
		}
	}
	return n, nil
}

func (w *world) Get(_ context.Context, orgID uuid.UUID, day time.Time) (models.DailyStat, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return models.DailyStat{OrgID: orgID, StatDate: stats.Day(day), Sent: w.daily[statKey(orgID, day)]}, nil
}

func (w *world) FirstDate(_ context.Context, orgID uuid.UUID) (*time.Time, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if d, ok := w.firstDay[orgID]; ok {
		return &d, nil
	}
	return nil, nil
}

func (w *world) Increment(_ context.Context, orgID uuid.UUID, day time.Time, column models.StatColumn, n int) error {
	if n == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.daily[statKey(orgID, day)] += n
	if _, ok := w.firstDay[orgID]; !ok {
		w.firstDay[orgID] = stats.Day(day)
	}
	return nil
}

func (w *world) GetContact(_ context.Context, id uuid.UUID) (*models.Contact, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	c, ok := w.contacts[id]
	if !ok {
		return nil, apperrors.NotFound("contact", id)
	}
	cp := *c
	return &cp, nil
}

func (w *world) Emit(_ context.Context, _ uuid.UUID, eventType string, _ any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, eventType)
	return nil
}

func (w *world) Record(_ context.Context, a models.Activity) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.activities = append(w.activities, a)
}

// addCampaign creates a sending campaign with n queued deliveries.
func (w *world) addCampaign(orgID uuid.UUID, batchSize, n int, clock clockwork.Clock) *models.Campaign {
	c := &models.Campaign{
		ID:        uuid.New(),
		OrgID:     orgID,
		Channel:   models.ChannelEmail,
		Subject:   "Hello {{first_name}}",
		Body:      "<p>Hi {{ First_Name }} from {{company}}{{unknown}}</p>",
		Status:    models.CampaignStatusSending,
		BatchSize: batchSize,
	}
	w.campaigns[c.ID] = c
	for i := 0; i < n; i++ {
		contact := &models.Contact{
			ID:               uuid.New(),
			OrgID:            orgID,
			FirstName:        "Ada",
			Email:            uuid.NewString() + "@example.com",
			OrganizationName: "Acme",
			EmailConsent:     true,
		}
		w.contacts[contact.ID] = contact
		w.deliveries = append(w.deliveries, &models.Delivery{
			ID:         uuid.New(),
			OrgID:      orgID,
			CampaignID: &c.ID,
			ContactID:  contact.ID,
			Channel:    models.ChannelEmail,
			Status:     models.DeliveryStatusQueued,
			CreatedAt:  clock.Now().Add(time.Duration(i) * time.Millisecond),
		})
	}
	c.TotalRecipients = n
	return c
}

type fakeGuard struct {
	blocked map[uuid.UUID]compliance.Reason
}

func (g fakeGuard) Check(_ context.Context, c models.Contact, ch models.Channel) (compliance.Reason, error) {
	if r, ok := g.blocked[c.ID]; ok {
		return r, nil
	}
	if !compliance.HasConsent(c, ch) {
		return compliance.ReasonNoConsent, nil
	}
	return compliance.ReasonNone, nil
}

type recordingSender struct {
	mu   sync.Mutex
	msgs []delivery.Message
	fail map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg delivery.Message) delivery.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if s.fail[msg.To] {
		return delivery.Result{Error: "mailbox unavailable"}
	}
	return delivery.Result{Success: true, ProviderMessageID: "msg-" + msg.DeliveryID.String()}
}

type harness struct {
	w      *world
	clock  *clockwork.FakeClock
	sender *recordingSender
	guard  fakeGuard
	proc   *Processor
}

func newHarness(configs orgconfig.Provider) *harness {
	h := &harness{
		w:      newWorld(),
		clock:  clockwork.NewFakeClockAt(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)),
		sender: &recordingSender{fail: map[string]bool{}},
		guard:  fakeGuard{blocked: map[uuid.UUID]compliance.Reason{}},
	}
	h.proc = NewProcessor(Deps{
		Campaigns:  h.w,
		Deliveries: h.w,
		Stats:      h.w,
		Contacts:   h.w,
		Guard:      h.guard,
		Configs:    configs,
		Sender:     h.sender,
		Emitter:    h.w,
		Recorder:   h.w,
		Clock:      h.clock,
	}, DefaultConfig())
	return h
}

func staticConfig(limit int, warmup bool) orgconfig.Provider {
	return orgconfig.NewStatic(models.SendConfig{DailyLimit: limit, WarmupEnabled: warmup, FromName: "Acme", FromEmail: "hi@acme.test"})
}

func TestBatchesDrainCampaignAndComplete(t *testing.T) {
	h := newHarness(staticConfig(200, false))
	orgID := uuid.New()
	c := h.w.addCampaign(orgID, 50, 120, h.clock)
	ctx := context.Background()

	for i, want := range []int{50, 50, 20} {
		res, err := h.proc.Tick(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, res.Sent, "tick %d", i+1)
		assert.Equal(t, want, res.Processed, "tick %d", i+1)
		h.clock.Advance(time.Minute)
	}

	got := h.w.campaigns[c.ID]
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 120, got.SentCount)
	assert.Zero(t, got.FailedCount)
	assert.Equal(t, 120, h.w.daily[statKey(orgID, h.clock.Now())])
	assert.Contains(t, h.w.events, "campaign.completed")

	first := h.sender.msgs[0]
	assert.Equal(t, "Hello Ada", first.Subject)
	assert.Equal(t, "<p>Hi Ada from Acme</p>", first.Body)
	assert.Equal(t, "Acme", first.Config.FromName)
}

func TestRetickWithNothingQueuedIsNoop(t *testing.T) {
	h := newHarness(staticConfig(200, false))
	h.w.addCampaign(uuid.New(), 50, 10, h.clock)
	ctx := context.Background()

	_, err := h.proc.Tick(ctx)
	require.NoError(t, err)
	before := len(h.sender.msgs)
	activities := len(h.w.activities)

	res, err := h.proc.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Zero(t, res.Sent)
	assert.Equal(t, before, len(h.sender.msgs))
	assert.Equal(t, activities, len(h.w.activities))
}

func TestSentTodayNeverExceedsLimit(t *testing.T) {
	h := newHarness(staticConfig(70, false))
	orgID := uuid.New()
	h.w.addCampaign(orgID, 50, 100, h.clock)
	h.w.addCampaign(orgID, 50, 100, h.clock)

	for i := 0; i < 5; i++ {
		_, err := h.proc.Tick(context.Background())
		require.NoError(t, err)
		assert.LessOrEqual(t, h.w.daily[statKey(orgID, h.clock.Now())], 70)
	}
	assert.Equal(t, 70, h.w.daily[statKey(orgID, h.clock.Now())])

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Outcomes[delivery.OutcomeSkippedRateLimited])
}

func TestWarmupGatesFirstDay(t *testing.T) {
	h := newHarness(staticConfig(1000, true))
	orgID := uuid.New()
	h.w.addCampaign(orgID, 500, 400, h.clock)

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 50, res.Sent)

	h.clock.Advance(24 * time.Hour)
	res, err = h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 100, res.Sent)

	h.clock.Advance(24 * time.Hour)
	res, err = h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 200, res.Sent)
}

func TestMissingConfigStallsWithoutError(t *testing.T) {
	h := newHarness(orgconfig.NewChain())
	c := h.w.addCampaign(uuid.New(), 50, 5, h.clock)

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Equal(t, 1, res.Outcomes[delivery.OutcomeSkippedNoConfig])
	require.Len(t, res.Campaigns, 1)
	require.NotNil(t, res.Campaigns[0].Outcome)
	assert.Equal(t, delivery.OutcomeSkippedNoConfig, res.Campaigns[0].Outcome.Kind)
	assert.Equal(t, models.CampaignStatusSending, h.w.campaigns[c.ID].Status)
	assert.Empty(t, h.sender.msgs)
}

func TestPerRecipientProblemsDoNotAbortBatch(t *testing.T) {
	h := newHarness(staticConfig(200, false))
	c := h.w.addCampaign(uuid.New(), 50, 5, h.clock)

	ds := h.w.deliveries
	h.guard.blocked[ds[0].ContactID] = compliance.ReasonDNCRegistry
	h.w.contacts[ds[1].ContactID].EmailConsent = false
	h.sender.fail[h.w.contacts[ds[2].ContactID].Email] = true
	delete(h.w.contacts, ds[3].ContactID)

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, res.Processed)
	assert.Equal(t, 1, res.Sent)
	assert.Equal(t, 4, res.Failed)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Outcomes[delivery.OutcomeSkippedBlocked])
	assert.Equal(t, 1, res.Outcomes[delivery.OutcomeSkippedNoConsent])
	assert.Equal(t, 2, res.Outcomes[delivery.OutcomeFailed])

	assert.Len(t, h.sender.msgs, 2)
	assert.Equal(t, models.DeliveryStatusFailed, ds[0].Status)
	assert.Contains(t, ds[0].Error, "dnc_registry")
	assert.Equal(t, "failed: mailbox unavailable", ds[2].Error)
	assert.Equal(t, models.DeliveryStatusSent, ds[4].Status)

	got := h.w.campaigns[c.ID]
	assert.Equal(t, 1, got.SentCount)
	assert.Equal(t, 4, got.FailedCount)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Len(t, h.w.activities, 6)
}

func TestPausedCampaignIsNotProcessed(t *testing.T) {
	h := newHarness(staticConfig(200, false))
	c := h.w.addCampaign(uuid.New(), 50, 5, h.clock)
	h.w.campaigns[c.ID].Status = models.CampaignStatusPaused

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
	assert.Empty(t, h.sender.msgs)
}

func TestStaleClaimsAreReclaimed(t *testing.T) {
	h := newHarness(staticConfig(200, false))
	h.w.addCampaign(uuid.New(), 50, 2, h.clock)
	abandoned := h.clock.Now().Add(-time.Hour)
	h.w.deliveries[0].Status = models.DeliveryStatusSending
	h.w.deliveries[0].ClaimedAt = &abandoned

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
}

type failingConfigs struct{}

func (failingConfigs) Resolve(context.Context, uuid.UUID) (models.SendConfig, error) {
	return models.SendConfig{}, errors.New("db unavailable")
}

func TestConfigLookupErrorsAreReportedWithPartialResult(t *testing.T) {
	h := newHarness(failingConfigs{})
	h.w.addCampaign(uuid.New(), 50, 3, h.clock)

	res, err := h.proc.Tick(context.Background())
	require.Error(t, err)
	assert.Zero(t, res.Processed)
	assert.Len(t, res.Campaigns, 1)
}

// liveStores fails every store call once its context is done, the way a
// database driver does.
type liveStores struct{ *world }

func (s liveStores) SendingCampaigns(ctx context.Context) ([]models.Campaign, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.world.SendingCampaigns(ctx)
}

func (s liveStores) AddCounters(ctx context.Context, id uuid.UUID, sent, failed int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.world.AddCounters(ctx, id, sent, failed)
}

func (s liveStores) Complete(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.world.Complete(ctx, id, at)
}

func (s liveStores) Claim(ctx context.Context, campaignID uuid.UUID, limit int, now, staleBefore time.Time) ([]models.Delivery, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.world.Claim(ctx, campaignID, limit, now, staleBefore)
}

func (s liveStores) MarkSent(ctx context.Context, id uuid.UUID, providerID string, at time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.world.MarkSent(ctx, id, providerID, at)
}

func (s liveStores) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.world.MarkFailed(ctx, id, reason)
}

func (s liveStores) Outstanding(ctx context.Context, campaignID uuid.UUID) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.world.Outstanding(ctx, campaignID)
}

func (s liveStores) Get(ctx context.Context, orgID uuid.UUID, day time.Time) (models.DailyStat, error) {
	if err := ctx.Err(); err != nil {
		return models.DailyStat{}, err
	}
	return s.world.Get(ctx, orgID, day)
}

func (s liveStores) FirstDate(ctx context.Context, orgID uuid.UUID) (*time.Time, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.world.FirstDate(ctx, orgID)
}

func (s liveStores) Increment(ctx context.Context, orgID uuid.UUID, day time.Time, column models.StatColumn, n int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.world.Increment(ctx, orgID, day, column, n)
}

func (s liveStores) GetContact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.world.GetContact(ctx, id)
}

// cancelAfterSend cancels the tick's context once the provider accepted a
// message, like a scheduler request timing out mid-batch.
type cancelAfterSend struct {
	*recordingSender
	cancel context.CancelFunc
}

func (s cancelAfterSend) Send(ctx context.Context, msg delivery.Message) delivery.Result {
	res := s.recordingSender.Send(ctx, msg)
	s.cancel()
	return res
}

func newLiveHarness(configs orgconfig.Provider, sender delivery.Sender) *harness {
	h := newHarness(configs)
	live := liveStores{h.w}
	h.proc = NewProcessor(Deps{
		Campaigns:  live,
		Deliveries: live,
		Stats:      live,
		Contacts:   live,
		Guard:      h.guard,
		Configs:    configs,
		Sender:     sender,
		Emitter:    h.w,
		Recorder:   h.w,
		Clock:      h.clock,
	}, DefaultConfig())
	return h
}

func sendsPerDelivery(msgs []delivery.Message) map[uuid.UUID]int {
	out := map[uuid.UUID]int{}
	for _, m := range msgs {
		out[m.DeliveryID]++
	}
	return out
}

func TestCancelledTickStillSettlesSentDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &recordingSender{fail: map[string]bool{}}
	h := newLiveHarness(staticConfig(1, false), cancelAfterSend{recordingSender: sender, cancel: cancel})
	orgID := uuid.New()
	c := h.w.addCampaign(orgID, 50, 2, h.clock)

	res, err := h.proc.Tick(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Sent)

	ds := h.w.deliveries
	assert.Equal(t, models.DeliveryStatusSent, ds[0].Status)
	assert.Equal(t, 1, h.w.campaigns[c.ID].SentCount)
	assert.Equal(t, 1, h.w.daily[statKey(orgID, h.clock.Now())])

	h.clock.Advance(DefaultConfig().ClaimLease + time.Minute)
	res, err = h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Sent)
	assert.Equal(t, 1, res.Outcomes[delivery.OutcomeSkippedRateLimited])
	assert.Len(t, sender.msgs, 1)
	assert.Equal(t, models.DeliveryStatusQueued, ds[1].Status)
}

func TestCancelledTickLeavesUnsentClaimsForLater(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sender := &recordingSender{fail: map[string]bool{}}
	h := newLiveHarness(staticConfig(200, false), cancelAfterSend{recordingSender: sender, cancel: cancel})
	c := h.w.addCampaign(uuid.New(), 50, 3, h.clock)

	res, err := h.proc.Tick(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Processed)
	require.Len(t, res.Campaigns, 1)
	assert.Equal(t, 3, res.Campaigns[0].Claimed)

	res, err = h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Processed)

	h.clock.Advance(DefaultConfig().ClaimLease + time.Second)
	res, err = h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	for id, n := range sendsPerDelivery(sender.msgs) {
		assert.Equal(t, 1, n, "delivery %s", id)
	}
	assert.Len(t, sender.msgs, 3)
	assert.Equal(t, 3, h.w.campaigns[c.ID].SentCount)
	assert.Equal(t, models.CampaignStatusCompleted, h.w.campaigns[c.ID].Status)
}

// slowSender takes the given time per provider call.
type slowSender struct {
	*recordingSender
	clock *clockwork.FakeClock
	took  time.Duration
}

func (s slowSender) Send(ctx context.Context, msg delivery.Message) delivery.Result {
	s.clock.Advance(s.took)
	return s.recordingSender.Send(ctx, msg)
}

func TestBatchStopsSendingBeforeClaimLeaseExpires(t *testing.T) {
	h := newHarness(staticConfig(200, false))
	slow := slowSender{recordingSender: h.sender, clock: h.clock, took: 4 * time.Minute}
	h.proc.sender = slow
	c := h.w.addCampaign(uuid.New(), 50, 5, h.clock)

	res, err := h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Sent)
	assert.Equal(t, 3, res.Processed)
	for _, d := range h.w.deliveries[3:] {
		assert.Equal(t, models.DeliveryStatusSending, d.Status)
	}

	// The next tick runs once the stopped batch's lease has lapsed.
	res, err = h.proc.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	for id, n := range sendsPerDelivery(h.sender.msgs) {
		assert.Equal(t, 1, n, "delivery %s", id)
	}
	assert.Equal(t, 5, h.w.campaigns[c.ID].SentCount)
	assert.Equal(t, models.CampaignStatusCompleted, h.w.campaigns[c.ID].Status)
}

func TestClaimLeaseMustCoverOneSend(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	short := DefaultConfig()
	short.ClaimLease = short.SendTimeout + 10*time.Second
	assert.Error(t, short.Validate())
}
