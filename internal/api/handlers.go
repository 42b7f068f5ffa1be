package api

import (
	"context"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
)

const permissionTimeout = 60 * time.Second

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"version":   s.version,
		"timestamp": s.clock.Now().Unix(),
		"onboarded": s.store.Onboarded(),
		"clients":   s.hub.Clients(),
	})
}

func (s *Server) handleGetUser(c *fiber.Ctx) error {
	user := s.store.User()
	return c.JSON(userResponse{Onboarded: user != nil, User: user})
}

func (s *Server) handleRenameUser(c *fiber.Ctx) error {
	var req renameRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	if err := s.store.Rename(c.UserContext(), req.Name); err != nil {
		return err
	}
	return c.JSON(userResponse{Onboarded: true, User: s.store.User()})
}

func (s *Server) handleResetUser(c *fiber.Ctx) error {
	if err := s.store.Reset(c.UserContext()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleOnboarding(c *fiber.Ctx) error {
	var req onboardingRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}

	name := strings.TrimSpace(req.Name)
	if err := medication.ValidateUserName(name); err != nil {
		return err
	}
	if err := req.Prescription.Validate(); err != nil {
		return err
	}

	p, err := s.store.Onboard(c.UserContext(), name, req.Prescription)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(onboardingResponse{User: s.store.User(), Prescription: p})
}

// handleAgenda returns the store snapshot, or with ?date= the agenda of that
// date without changing the selection
func (s *Server) handleAgenda(c *fiber.Ctx) error {
	raw := c.Query("date")
	if raw == "" {
		return c.JSON(s.store.Snapshot())
	}

	date, err := medication.ParseDateKey(raw, s.clock.Now().Location())
	if err != nil {
		return apperrors.Invalid("%v", err)
	}
	entries := medication.BuildAgenda(s.store.Prescriptions(), date)
	if entries == nil {
		entries = []medication.DoseEntry{}
	}
	return c.JSON(agendaResponse{Date: medication.DateKey(date), Entries: entries})
}

func (s *Server) handleSelectDate(c *fiber.Ctx) error {
	var req selectDateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}

	date, err := medication.ParseDateKey(req.Date, s.clock.Now().Location())
	if err != nil {
		return apperrors.Invalid("%v", err)
	}
	return c.JSON(s.store.SelectDate(date))
}

func (s *Server) handleListPrescriptions(c *fiber.Ctx) error {
	list := s.store.Prescriptions()
	if list == nil {
		list = []medication.Prescription{}
	}
	return c.JSON(list)
}

func (s *Server) handleCreatePrescription(c *fiber.Ctx) error {
	var in medication.PrescriptionInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	if err := in.Validate(); err != nil {
		return err
	}

	p, err := s.store.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) handleGetPrescription(c *fiber.Ctx) error {
	p := s.store.Prescription(c.Params("id"))
	if p == nil {
		return fiber.NewError(fiber.StatusNotFound, "prescription not found")
	}
	return c.JSON(p)
}

func (s *Server) handleUpdatePrescription(c *fiber.Ctx) error {
	var in medication.PrescriptionInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	if err := in.Validate(); err != nil {
		return err
	}

	p, err := s.store.Update(c.UserContext(), c.Params("id"), in)
	if err != nil {
		return err
	}
	if p == nil {
		return fiber.NewError(fiber.StatusNotFound, "prescription not found")
	}
	return c.JSON(p)
}

func (s *Server) handleDeletePrescription(c *fiber.Ctx) error {
	id := c.Params("id")
	if s.store.Prescription(id) == nil {
		return fiber.NewError(fiber.StatusNotFound, "prescription not found")
	}
	if err := s.store.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleMarkTaken only accepts a dose that is on today's agenda and due
func (s *Server) handleMarkTaken(c *fiber.Ctx) error {
	var req takenRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request")
	}
	at, err := medication.NormalizeClock(req.Time)
	if err != nil {
		return apperrors.Invalid("time: %v", err)
	}

	id := c.Params("id")
	if s.store.Prescription(id) == nil {
		return fiber.NewError(fiber.StatusNotFound, "prescription not found")
	}
	if _, ok := medication.FindDose(s.store.Today(), id, at); !ok {
		return apperrors.Invalid("no dose scheduled at %s today", at)
	}
	if !medication.IsDue(at, s.clock.Now()) {
		return fiber.NewError(fiber.StatusConflict, "dose at "+medication.FormatDisplay(at)+" is not due yet")
	}

	p, err := s.store.MarkTaken(c.UserContext(), id, at)
	if err != nil {
		return err
	}
	if p == nil {
		return fiber.NewError(fiber.StatusNotFound, "prescription not found")
	}
	return c.JSON(p)
}

func (s *Server) handleSearchMedicines(c *fiber.Ctx) error {
	q := c.Query("q")
	limit := c.QueryInt("limit", 0)
	return c.JSON(s.lookup.Search(c.UserContext(), q, limit))
}

func (s *Server) handleGetPermission(c *fiber.Ctx) error {
	return c.JSON(permissionResponse{Granted: s.scheduler.Granted()})
}

// handleTestNotification shows a test notification on every connected
// client
func (s *Server) handleTestNotification(c *fiber.Ctx) error {
	n, err := s.scheduler.SendTest(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(testNotificationResponse{Notification: n, Clients: s.hub.Clients()})
}

// handleSetPermission applies an explicit answer, or asks the connected
// clients when none is given
func (s *Server) handleSetPermission(c *fiber.Ctx) error {
	var req permissionRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request")
		}
	}

	if req.Granted != nil {
		s.scheduler.SetPermission(*req.Granted)
		return c.JSON(permissionResponse{Granted: *req.Granted})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), permissionTimeout)
	defer cancel()
	granted, err := s.scheduler.RequestPermission(ctx, s.hub)
	if err != nil {
		s.logger.Info("Permission request unanswered", zap.Error(err))
	}
	return c.JSON(permissionResponse{Granted: granted})
}
