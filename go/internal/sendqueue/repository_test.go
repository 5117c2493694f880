package sendqueue

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var campaignColumns = []string{
	"id", "org_id", "name", "channel", "subject", "body", "status", "filter_criteria", "batch_size",
	"total_recipients", "sent_count", "failed_count", "started_at", "completed_at", "created_at", "updated_at",
}

func newRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRepository(db.New(conn)), mock
}

func TestSendingCampaignsSkipsUndecodableRows(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	good, bad := uuid.New(), uuid.New()

	mock.ExpectQuery(`FROM campaigns`).
		WithArgs("sending").
		WillReturnRows(sqlmock.NewRows(campaignColumns).
			AddRow(good.String(), uuid.NewString(), "ok", "email", "s", "b", "sending", []byte(`{}`), 50, 10, 0, 0, now, nil, now, now).
			AddRow(bad.String(), uuid.NewString(), "broken", "email", "s", "b", "sending", []byte(`{"tags":`), 50, 10, 0, 0, now, nil, now, now))

	got, err := repo.SendingCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, good, got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCountersSkipsEmptyIncrement(t *testing.T) {
	repo, mock := newRepo(t)
	require.NoError(t, repo.AddCounters(context.Background(), uuid.New(), 0, 0))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCountersIncrementsAtomically(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	mock.ExpectExec(`sent_count = sent_count \+ \$2`).
		WithArgs(id, int32(3), int32(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.AddCounters(context.Background(), id, 3, 1))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteOnlyOnce(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(`SET status = 'completed'`).WithArgs(id, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`SET status = 'completed'`).WithArgs(id, at).WillReturnResult(sqlmock.NewResult(0, 0))

	done, err := repo.Complete(context.Background(), id, at)
	require.NoError(t, err)
	assert.True(t, done)

	done, err = repo.Complete(context.Background(), id, at)
	require.NoError(t, err)
	assert.False(t, done)
	require.NoError(t, mock.ExpectationsWereMet())
}
