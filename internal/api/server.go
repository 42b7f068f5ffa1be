// Package api serves the local HTTP API and the notification WebSocket
package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/catalog"
	"github.com/gmsas95/dosewise/internal/clock"
	"github.com/gmsas95/dosewise/internal/config"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
	"github.com/gmsas95/dosewise/internal/reminder"
)

// Deps are the services the API exposes
type Deps struct {
	Store     *medication.Store
	Scheduler *reminder.Scheduler
	Lookup    *catalog.Lookup
	Hub       *Hub
	Clock     clock.Clock
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
	Version   string
}

// Server handles the HTTP API and WebSocket
type Server struct {
	app       *fiber.App
	config    *config.Config
	store     *medication.Store
	scheduler *reminder.Scheduler
	lookup    *catalog.Lookup
	hub       *Hub
	clock     clock.Clock
	metrics   *metrics.Metrics
	logger    *zap.Logger
	version   string
}

// New creates a new API server
func New(cfg *config.Config, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}
	if deps.Version == "" {
		deps.Version = "dev"
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Store, deps.Logger, deps.Metrics)
	}

	app := fiber.New(fiber.Config{
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Logger),
	})

	s := &Server{
		app:       app,
		config:    cfg,
		store:     deps.Store,
		scheduler: deps.Scheduler,
		lookup:    deps.Lookup,
		hub:       deps.Hub,
		clock:     deps.Clock,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		version:   deps.Version,
	}

	s.setupRoutes()
	return s
}

// Hub returns the notification hub
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start listens on the configured address and blocks
func (s *Server) Start() error {
	s.logger.Info("API listening", zap.String("addr", s.config.Listen()))
	return s.app.Listen(s.config.Listen())
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.hub.Close()
	return s.app.ShutdownWithContext(ctx)
}
