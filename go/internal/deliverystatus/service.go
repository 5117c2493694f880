package deliverystatus

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/httpapi"
	"github.com/rs/zerolog/log"
)

const (
	// HeaderCallbackSecret carries the shared callback secret.
	HeaderCallbackSecret = "X-Callback-Secret"
	// tokenParam is the query fallback for providers that cannot set headers.
	tokenParam = "token"
)

// StatusApp defines what the service layer needs from the app
type StatusApp interface {
	Apply(ctx context.Context, cb Callback) (*Result, error)
}

// Service receives provider status callbacks
type Service struct {
	app    StatusApp
	secret string
}

func NewService(app StatusApp, secret string) *Service {
	return &Service{app: app, secret: secret}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.With(httpapi.RequireSecret(HeaderCallbackSecret, s.secret)).
		Post("/v1/callbacks/delivery-status", s.deliveryStatus)
	r.With(httpapi.RequireSecretQuery(HeaderCallbackSecret, tokenParam, s.secret)).
		Post("/v1/callbacks/sms-status", s.smsStatus)
}

func (s *Service) deliveryStatus(w http.ResponseWriter, r *http.Request) {
	var cb Callback
	if err := httpapi.DecodeJSON(r, &cb); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	res, err := s.app.Apply(r.Context(), cb)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusAccepted, res)
}

// smsEvents maps telephony MessageStatus values to events. Intermediate
// statuses such as queued or sent are acknowledged and ignored.
var smsEvents = map[string]Event{
	"delivered":   EventDelivered,
	"undelivered": EventBounced,
	"failed":      EventBounced,
}

func (s *Service) smsStatus(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpapi.WriteError(w, r, apperrors.Validation("invalid form body: %v", err))
		return
	}
	sid := r.PostForm.Get("MessageSid")
	status := r.PostForm.Get("MessageStatus")
	if sid == "" {
		httpapi.WriteError(w, r, apperrors.Validation("MessageSid is required"))
		return
	}
	ev, ok := smsEvents[status]
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	_, err := s.app.Apply(r.Context(), Callback{Event: ev, ProviderMessageID: sid})
	if errors.Is(err, apperrors.ErrNotFound) {
		// The provider retries non-2xx responses; an unknown SID never resolves.
		log.Warn().Str("message_sid", sid).Msg("status callback for unknown message")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
