package campaign

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/db"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var campaignRowColumns = []string{
	"id", "org_id", "name", "channel", "subject", "body", "status", "filter_criteria", "batch_size",
	"total_recipients", "sent_count", "failed_count", "started_at", "completed_at", "created_at", "updated_at",
}

func campaignRow(id, orgID uuid.UUID, status string, total int, started any) *sqlmock.Rows {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(campaignRowColumns).AddRow(
		id.String(), orgID.String(), "Spring promo", "email", "Hi {{first_name}}", "Body", status,
		[]byte(`{"tags":["vip"],"pipeline_stage":"lead"}`), 50, total, 0, 0, started, nil, now, now,
	)
}

func newRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRepository(db.New(conn), conn), mock
}

func TestLaunchQueuesAndMarksSendingInOneTransaction(t *testing.T) {
	repo, mock := newRepo(t)
	id, orgID := uuid.New(), uuid.New()
	startedAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM campaigns WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(campaignRow(id, orgID, "draft", 0, nil))
	mock.ExpectExec(`INSERT INTO deliveries`).
		WithArgs(orgID, id, sqlmock.AnyArg(), "email").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`UPDATE campaigns\s+SET status = 'sending'`).
		WithArgs(id, int32(2), startedAt).
		WillReturnRows(campaignRow(id, orgID, "sending", 2, startedAt))
	mock.ExpectCommit()

	c, err := repo.Launch(context.Background(), id, []uuid.UUID{uuid.New(), uuid.New()}, startedAt)
	require.NoError(t, err)
	assert.Equal(t, models.CampaignStatusSending, c.Status)
	assert.Equal(t, 2, c.TotalRecipients)
	assert.Equal(t, []string{"vip"}, c.FilterCriteria.Tags)
	assert.Equal(t, "lead", c.FilterCriteria.PipelineStage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLaunchRollsBackWhenAlreadySending(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(campaignRow(id, uuid.New(), "sending", 10, time.Now()))
	mock.ExpectRollback()

	_, err := repo.Launch(context.Background(), id, []uuid.UUID{uuid.New()}, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusLostRaceIsInvalidState(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`UPDATE campaigns\s+SET status = \$2`).
		WithArgs(id, "paused", "sending").
		WillReturnRows(sqlmock.NewRows(campaignRowColumns))

	_, err := repo.UpdateStatus(context.Background(), id, models.CampaignStatusSending, models.CampaignStatusPaused)
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
}

func TestGetCampaignNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	mock.ExpectQuery(`FROM campaigns WHERE id = \$1`).WithArgs(id).WillReturnRows(sqlmock.NewRows(campaignRowColumns))

	_, err := repo.GetCampaign(context.Background(), id)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
