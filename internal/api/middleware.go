package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
)

func (s *Server) metricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		} else if err != nil {
			status = statusFor(err)
		}
		s.metrics.RecordRequest(c.Method(), status, time.Since(start))
		return err
	}
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// errorHandler renders every handler error as {"error", "code"}
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message})
		}

		status := statusFor(err)
		if status >= fiber.StatusInternalServerError {
			logger.Error("Request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err),
			)
		}

		resp := errorResponse{Error: err.Error()}
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			resp.Code = appErr.Code
			resp.Error = appErr.Message
		}
		return c.Status(status).JSON(resp)
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrBadRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, apperrors.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, apperrors.ErrNotOnboarded), errors.Is(err, apperrors.ErrOnboarded),
		errors.Is(err, apperrors.ErrPermissionDenied):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
