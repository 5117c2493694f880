package db

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*Queries, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return New(conn), mock
}

var deliveryRowColumns = []string{
	"id", "org_id", "campaign_id", "enrollment_id", "contact_id", "channel", "status", "provider_message_id",
	"error", "claimed_at", "sent_at", "delivered_at", "opened_at", "clicked_at", "bounced_at", "created_at", "updated_at",
}

func TestClaimQueuedDeliveriesReturnsOldestFirst(t *testing.T) {
	q, mock := newMock(t)

	orgID, campaignID := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older, newer := uuid.New(), uuid.New()

	rows := sqlmock.NewRows(deliveryRowColumns).
		AddRow(newer.String(), orgID.String(), campaignID.String(), nil, uuid.NewString(), "email", "sending", nil,
			"", now, nil, nil, nil, nil, nil, now.Add(-time.Minute), now).
		AddRow(older.String(), orgID.String(), campaignID.String(), nil, uuid.NewString(), "email", "sending", nil,
			"", now, nil, nil, nil, nil, nil, now.Add(-time.Hour), now)

	mock.ExpectQuery(`UPDATE deliveries\s+SET status = 'sending'`).
		WithArgs(campaignID, int32(10), now, now.Add(-10*time.Minute)).
		WillReturnRows(rows)

	claimed, err := q.ClaimQueuedDeliveries(context.Background(), ClaimQueuedDeliveriesParams{
		CampaignID:  campaignID,
		Limit:       10,
		ClaimedAt:   now,
		StaleBefore: now.Add(-10 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, older, claimed[0].ID)
	assert.Equal(t, newer, claimed[1].ID)
	assert.True(t, claimed[0].CampaignID.Valid)
	assert.False(t, claimed[0].EnrollmentID.Valid)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIncrementDailyStatIsSingleUpsert(t *testing.T) {
	q, mock := newMock(t)

	orgID := uuid.New()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO daily_stats .* ON CONFLICT \(org_id, stat_date\) DO UPDATE\s+SET sent = daily_stats.sent \+ EXCLUDED.sent`).
		WithArgs(orgID, day, int32(50), int32(0), int32(0), int32(0), int32(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := q.IncrementDailyStat(context.Background(), IncrementDailyStatParams{OrgID: orgID, StatDate: day, Sent: 50})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteCampaignReportsRowsAffected(t *testing.T) {
	q, mock := newMock(t)

	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE campaigns\s+SET status = 'completed'.*WHERE id = \$1 AND status = 'sending'`).
		WithArgs(id, at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	n, err := q.CompleteCampaign(context.Background(), CompleteCampaignParams{ID: id, CompletedAt: at})
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordWebhookEventFailureTransitionsInSQL(t *testing.T) {
	q, mock := newMock(t)

	id, orgID := uuid.New(), uuid.New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "org_id", "event_type", "payload", "status", "attempts", "last_error", "locked_until",
		"sent_at", "created_at", "updated_at",
	}).AddRow(id.String(), orgID.String(), "campaign.launched", []byte(`{"a":1}`), "failed", 3, "timeout", nil, nil, now, now)

	mock.ExpectQuery(`UPDATE webhook_events\s+SET attempts = attempts \+ 1,\s+status = CASE WHEN attempts \+ 1 >= \$3 THEN 'failed'`).
		WithArgs(id, "timeout", int32(3)).
		WillReturnRows(rows)

	ev, err := q.RecordWebhookEventFailure(context.Background(), RecordWebhookEventFailureParams{
		ID:          id,
		LastError:   "timeout",
		MaxAttempts: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "failed", ev.Status)
	assert.Equal(t, int32(3), ev.Attempts)
	assert.JSONEq(t, `{"a":1}`, string(ev.Payload))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetFirstStatDateScansDateWithoutCast(t *testing.T) {
	q, mock := newMock(t)

	orgID := uuid.New()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT MIN\(stat_date\) FROM daily_stats WHERE org_id = \$1`).
		WithArgs(orgID).
		WillReturnRows(sqlmock.NewRows([]string{"min"}).AddRow(day))

	first, err := q.GetFirstStatDate(context.Background(), orgID)
	require.NoError(t, err)
	require.True(t, first.Valid)
	assert.Equal(t, day, first.Time)
	assert.NotContains(t, getFirstStatDate, "timestamptz")
	require.NoError(t, mock.ExpectationsWereMet())
}
