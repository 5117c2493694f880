package main

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/outreach/go/internal/config"
)

func setupServer(cfg *config.Config, services *Services) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	registerServices(r, services)

	r.Method(http.MethodGet, "/health", services.Health)

	handler := c.Handler(r)

	// Setup HTTP/2 server
	return &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func registerServices(r chi.Router, services *Services) {
	services.Campaigns.RegisterRoutes(r)
	services.Sequences.RegisterRoutes(r)
	services.DeliveryStatus.RegisterRoutes(r)
	services.Ticks.RegisterRoutes(r)
	services.Feed.RegisterRoutes(r)
}
