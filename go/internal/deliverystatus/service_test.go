package deliverystatus

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/outreach/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "callback-secret"

func newTestServer(t *testing.T) (*httptest.Server, *fakeWorld) {
	t.Helper()
	app, w, _ := newTestApp()
	r := chi.NewRouter()
	NewService(app, testSecret).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, w
}

func doRequest(t *testing.T, req *http.Request) int {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestDeliveryStatusRequiresSecret(t *testing.T) {
	srv, w := newTestServer(t)
	d := w.add(models.DeliveryStatusSent)
	body := `{"event":"delivered","send_id":"` + d.ID.String() + `"}`

	for _, secret := range []string{"", "wrong"} {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/callbacks/delivery-status", strings.NewReader(body))
		if secret != "" {
			req.Header.Set(HeaderCallbackSecret, secret)
		}
		assert.Equal(t, http.StatusUnauthorized, doRequest(t, req))
	}
	assert.Equal(t, models.DeliveryStatusSent, w.deliveries[d.ID].Status)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/callbacks/delivery-status", strings.NewReader(body))
	req.Header.Set(HeaderCallbackSecret, testSecret)
	assert.Equal(t, http.StatusAccepted, doRequest(t, req))
	assert.Equal(t, models.DeliveryStatusDelivered, w.deliveries[d.ID].Status)
}

func TestDeliveryStatusRejectsBadBody(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, body := range []string{`{"event":"delivered"}`, `{"event":"nope","send_id":"` + "00000000-0000-0000-0000-000000000001" + `"}`, `{"event":`} {
		req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/callbacks/delivery-status", strings.NewReader(body))
		req.Header.Set(HeaderCallbackSecret, testSecret)
		assert.Equal(t, http.StatusBadRequest, doRequest(t, req), body)
	}
}

func smsRequest(t *testing.T, target string, form url.Values) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestSMSStatusCallback(t *testing.T) {
	srv, w := newTestServer(t)
	d := w.add(models.DeliveryStatusSent)
	d.Channel = models.ChannelSMS
	target := srv.URL + "/v1/callbacks/sms-status?token=" + testSecret

	queued := url.Values{"MessageSid": {d.ProviderMessageID}, "MessageStatus": {"queued"}}
	assert.Equal(t, http.StatusNoContent, doRequest(t, smsRequest(t, target, queued)))
	assert.Equal(t, models.DeliveryStatusSent, w.deliveries[d.ID].Status)

	undelivered := url.Values{"MessageSid": {d.ProviderMessageID}, "MessageStatus": {"undelivered"}}
	assert.Equal(t, http.StatusNoContent, doRequest(t, smsRequest(t, target, undelivered)))
	assert.Equal(t, models.DeliveryStatusBounced, w.deliveries[d.ID].Status)
	assert.Equal(t, []models.Channel{models.ChannelSMS}, w.revoked)

	unknown := url.Values{"MessageSid": {"SM-unknown"}, "MessageStatus": {"delivered"}}
	assert.Equal(t, http.StatusNoContent, doRequest(t, smsRequest(t, target, unknown)))

	noSecret := smsRequest(t, srv.URL+"/v1/callbacks/sms-status", undelivered)
	assert.Equal(t, http.StatusUnauthorized, doRequest(t, noSecret))
}
