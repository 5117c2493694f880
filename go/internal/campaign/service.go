package campaign

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/httpapi"
	"github.com/mcdev12/outreach/go/internal/models"
)

// CampaignApp defines what the service layer needs from the campaign application
type CampaignApp interface {
	Launch(ctx context.Context, id uuid.UUID) (*LaunchResult, error)
	Pause(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	Resume(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

// Service exposes the campaign lifecycle over HTTP
type Service struct {
	app CampaignApp
}

func NewService(app CampaignApp) *Service {
	return &Service{app: app}
}

func (s *Service) RegisterRoutes(r chi.Router) {
	r.Route("/v1/campaigns/{campaignID}", func(r chi.Router) {
		r.Get("/", s.get)
		r.Post("/launch", s.launch)
		r.Post("/pause", s.pause)
		r.Post("/resume", s.resume)
	})
}

func (s *Service) launch(w http.ResponseWriter, r *http.Request) {
	id, err := httpapi.IDParam(r, "campaignID")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	res, err := s.app.Launch(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, res)
}

func (s *Service) get(w http.ResponseWriter, r *http.Request) {
	s.campaignAction(w, r, s.app.GetCampaign)
}

func (s *Service) pause(w http.ResponseWriter, r *http.Request) {
	s.campaignAction(w, r, s.app.Pause)
}

func (s *Service) resume(w http.ResponseWriter, r *http.Request) {
	s.campaignAction(w, r, s.app.Resume)
}

func (s *Service) campaignAction(w http.ResponseWriter, r *http.Request, fn func(context.Context, uuid.UUID) (*models.Campaign, error)) {
	id, err := httpapi.IDParam(r, "campaignID")
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	c, err := fn(r.Context(), id)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, c)
}
