package delivery

import (
	"context"
	"database/sql"
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

var deliveryColumns = []string{
	"id", "org_id", "campaign_id", "enrollment_id", "contact_id", "channel", "status", "provider_message_id",
	"error", "claimed_at", "sent_at", "delivered_at", "opened_at", "clicked_at", "bounced_at", "created_at", "updated_at",
}

func newRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewRepository(db.New(conn)), mock
}

func TestClaimReturnsClaimedRowsOldestFirst(t *testing.T) {
	repo, mock := newRepo(t)
	campaignID := uuid.New()
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	older, newer := uuid.New(), uuid.New()

	mock.ExpectQuery(`FOR UPDATE SKIP LOCKED`).
		WithArgs(campaignID, int32(2), now, now.Add(-10*time.Minute)).
		WillReturnRows(sqlmock.NewRows(deliveryColumns).
			AddRow(newer.String(), uuid.NewString(), campaignID.String(), nil, uuid.NewString(), "email", "sending", nil,
				"", now, nil, nil, nil, nil, nil, now.Add(-time.Minute), now).
			AddRow(older.String(), uuid.NewString(), campaignID.String(), nil, uuid.NewString(), "email", "sending", nil,
				"", now, nil, nil, nil, nil, nil, now.Add(-time.Hour), now))

	got, err := repo.Claim(context.Background(), campaignID, 2, now, now.Add(-10*time.Minute))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, older, got[0].ID)
	assert.Equal(t, newer, got[1].ID)
	assert.Equal(t, models.DeliveryStatusSending, got[0].Status)
	require.NotNil(t, got[0].CampaignID)
	assert.Equal(t, campaignID, *got[0].CampaignID)
	assert.Nil(t, got[0].EnrollmentID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkSentReportsLostClaim(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	at := time.Date(2026, 3, 2, 9, 1, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE deliveries`).
		WithArgs(id, "pm-1", at).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkSent(context.Background(), id, "pm-1", at)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByProviderMessageIDNotFound(t *testing.T) {
	repo, mock := newRepo(t)
	mock.ExpectQuery(`provider_message_id = \$1`).
		WithArgs("pm-missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByProviderMessageID(context.Background(), "pm-missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCompareAndSetStatus(t *testing.T) {
	repo, mock := newRepo(t)
	id := uuid.New()
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(`WHERE id = \$1 AND status = \$3`).
		WithArgs(id, "opened", "delivered", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.CompareAndSetStatus(context.Background(), id, models.DeliveryStatusDelivered, models.DeliveryStatusOpened, at)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordAdHocHasNoCampaign(t *testing.T) {
	repo, mock := newRepo(t)
	enrollmentID := uuid.New()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	id := uuid.New()

	mock.ExpectQuery(`INSERT INTO deliveries`).
		WillReturnRows(sqlmock.NewRows(deliveryColumns).AddRow(
			id.String(), uuid.NewString(), nil, enrollmentID.String(), uuid.NewString(), "sms", "sent", "SM123",
			"", nil, now, nil, nil, nil, nil, now, now))

	d, err := repo.RecordAdHoc(context.Background(), models.Delivery{
		EnrollmentID:      &enrollmentID,
		Channel:           models.ChannelSMS,
		Status:            models.DeliveryStatusSent,
		ProviderMessageID: "SM123",
		SentAt:            &now,
	})
	require.NoError(t, err)
	assert.Nil(t, d.CampaignID)
	assert.Equal(t, enrollmentID, *d.EnrollmentID)
	assert.Equal(t, "SM123", d.ProviderMessageID)
	require.NoError(t, mock.ExpectationsWereMet())
}
