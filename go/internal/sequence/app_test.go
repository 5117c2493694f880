package sequence

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/mcdev12/outreach/go/internal/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() (*App, *memStore, *clockwork.FakeClock) {
	store := newMemStore()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC))
	return NewApp(store, store, store, store, clock), store, clock
}

func TestEnrollSchedulesFirstStep(t *testing.T) {
	app, store, clock := newTestApp()
	orgID := uuid.New()
	seq := store.addSequence(orgID, true, 30, 60)
	contact := store.addContact(orgID)

	e, err := app.Enroll(context.Background(), seq.ID, EnrollRequest{ContactID: contact.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, e.CurrentStep)
	assert.Equal(t, models.EnrollmentStatusActive, e.Status)
	require.NotNil(t, e.NextStepAt)
	assert.Equal(t, clock.Now().Add(30*time.Minute), *e.NextStepAt)
	assert.Equal(t, []string{webhook.EventSequenceEnrolled}, store.events)
	require.Len(t, store.activities, 1)
	assert.Equal(t, models.ActivitySequenceEnrolled, store.activities[0].Kind)
}

func TestEnrollRejectsDuplicateActiveEnrollment(t *testing.T) {
	app, store, _ := newTestApp()
	orgID := uuid.New()
	seq := store.addSequence(orgID, true, 0)
	contact := store.addContact(orgID)
	ctx := context.Background()

	_, err := app.Enroll(ctx, seq.ID, EnrollRequest{ContactID: contact.ID})
	require.NoError(t, err)

	_, err = app.Enroll(ctx, seq.ID, EnrollRequest{ContactID: contact.ID})
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.Equal(t, 1, store.activeCount())
	assert.Len(t, store.enrollments, 1)
}

func TestEnrollAfterCancelIsAllowed(t *testing.T) {
	app, store, _ := newTestApp()
	orgID := uuid.New()
	seq := store.addSequence(orgID, true, 0)
	contact := store.addContact(orgID)
	ctx := context.Background()

	first, err := app.Enroll(ctx, seq.ID, EnrollRequest{ContactID: contact.ID})
	require.NoError(t, err)
	require.NoError(t, app.Cancel(ctx, first.ID, ""))
	assert.Equal(t, defaultCancelReason, store.enrollments[first.ID].CancelReason)

	_, err = app.Enroll(ctx, seq.ID, EnrollRequest{ContactID: contact.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, store.activeCount())
}

func TestEnrollValidation(t *testing.T) {
	app, store, _ := newTestApp()
	orgID := uuid.New()
	active := store.addSequence(orgID, true, 0)
	inactive := store.addSequence(orgID, false, 0)
	empty := store.addSequence(orgID, true)
	contact := store.addContact(orgID)
	foreign := store.addContact(uuid.New())

	tests := []struct {
		name       string
		sequenceID uuid.UUID
		contactID  uuid.UUID
		want       error
	}{
		{"missing contact id", active.ID, uuid.Nil, apperrors.ErrValidation},
		{"unknown sequence", uuid.New(), contact.ID, apperrors.ErrNotFound},
		{"unknown contact", active.ID, uuid.New(), apperrors.ErrNotFound},
		{"contact from another org", active.ID, foreign.ID, apperrors.ErrNotFound},
		{"inactive sequence", inactive.ID, contact.ID, apperrors.ErrValidation},
		{"sequence without steps", empty.ID, contact.ID, apperrors.ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Enroll(context.Background(), tt.sequenceID, EnrollRequest{ContactID: tt.contactID})
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Empty(t, store.enrollments)
}

func TestCancelFinishedEnrollmentIsInvalidState(t *testing.T) {
	app, store, _ := newTestApp()
	orgID := uuid.New()
	seq := store.addSequence(orgID, true, 0)
	contact := store.addContact(orgID)
	ctx := context.Background()

	e, err := app.Enroll(ctx, seq.ID, EnrollRequest{ContactID: contact.ID})
	require.NoError(t, err)
	require.NoError(t, app.Cancel(ctx, e.ID, "changed mind"))

	err = app.Cancel(ctx, e.ID, "again")
	assert.ErrorIs(t, err, apperrors.ErrInvalidState)
	assert.Contains(t, store.events, webhook.EventSequenceEnrollmentCancel)
}

func TestEnrollEndpoint(t *testing.T) {
	app, store, _ := newTestApp()
	orgID := uuid.New()
	seq := store.addSequence(orgID, true, 0)
	contact := store.addContact(orgID)

	r := chi.NewRouter()
	NewService(app).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	post := func(path, body string) *http.Response {
		t.Helper()
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}
	enrollPath := "/v1/sequences/" + seq.ID.String() + "/enrollments"
	body := `{"contact_id":"` + contact.ID.String() + `"}`

	resp := post(enrollPath, body)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created EnrollResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.NotEqual(t, uuid.Nil, created.EnrollmentID)

	assert.Equal(t, http.StatusConflict, post(enrollPath, body).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(enrollPath, `{}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post("/v1/sequences/nope/enrollments", body).StatusCode)
	assert.Equal(t, http.StatusNotFound, post("/v1/sequences/"+uuid.NewString()+"/enrollments", body).StatusCode)

	cancelPath := "/v1/enrollments/" + created.EnrollmentID.String() + "/cancel"
	assert.Equal(t, http.StatusNoContent, post(cancelPath, `{"reason":"replied"}`).StatusCode)
	assert.Equal(t, "replied", store.enrollments[created.EnrollmentID].CancelReason)
	assert.Equal(t, http.StatusConflict, post(cancelPath, `{}`).StatusCode)
}
