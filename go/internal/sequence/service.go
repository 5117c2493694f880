package sequence

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/httpapi"
	"github.com/mcdev12/outreach/go/internal/models"
)

// SequenceApp defines what the service layer needs from the sequence application
type SequenceApp interface {
	Enroll(ctx context.Context, sequenceID uuid.UUID, req EnrollRequest) (*models.SequenceEnrollment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) error
}

// Service exposes enrollment over HTTP
type Service struct {
	app SequenceApp
}

func NewService(app SequenceApp) *Service {
	return &Service{app: app}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Post("/v1/sequences/{sequenceID}/enrollments", s.enroll)
	r.Post("/v1/enrollments/{enrollmentID}/cancel", s.cancel)
}

func (s *Service) enroll(w http.ResponseWriter, r *http.Request) {
	sequenceID, err := httpapi.IDParam(r, "sequenceID")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req EnrollRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	enrollment, err := s.app.Enroll(r.Context(), sequenceID, req)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, EnrollResponse{EnrollmentID: enrollment.ID})
}

func (s *Service) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "enrollmentID")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	var req CancelRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := s.app.Cancel(r.Context(), id, req.Reason); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
