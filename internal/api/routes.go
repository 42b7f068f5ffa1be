package api

import (
	"strings"

	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

func (s *Server) setupRoutes() {
	s.app.Use(recover.New())
	s.app.Use(s.metricsMiddleware())
	if s.config.Log.Level == "debug" {
		s.app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
		}))
	}
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(s.config.Server.AllowOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	s.app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)

	api.Get("/user", s.handleGetUser)
	api.Put("/user", s.handleRenameUser)
	api.Delete("/user", s.handleResetUser)
	api.Post("/onboarding", s.handleOnboarding)

	api.Get("/agenda", s.handleAgenda)
	api.Put("/agenda/selected", s.handleSelectDate)

	api.Get("/prescriptions", s.handleListPrescriptions)
	api.Post("/prescriptions", s.handleCreatePrescription)
	api.Get("/prescriptions/:id", s.handleGetPrescription)
	api.Put("/prescriptions/:id", s.handleUpdatePrescription)
	api.Delete("/prescriptions/:id", s.handleDeletePrescription)
	api.Post("/prescriptions/:id/taken", s.handleMarkTaken)

	api.Get("/medicines", s.handleSearchMedicines)

	api.Get("/notifications/permission", s.handleGetPermission)
	api.Post("/notifications/permission", s.handleSetPermission)
	api.Post("/notifications/test", s.handleTestNotification)

	s.app.Use("/ws", upgradeOnly)
	s.app.Get("/ws/notifications", websocket.New(func(c *websocket.Conn) {
		s.hub.Serve(c, s.store.Snapshot())
	}))
}
