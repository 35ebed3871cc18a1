package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/matching"
)

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := s.now()
	err := c.Next()
	if err != nil {
		// Render now so the logged status is the one sent.
		if herr := s.handleError(c, err); herr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()
	elapsed := s.now().Sub(start)
	route := c.Route().Path

	s.metrics.HTTPRequest(route, c.Method(), status, elapsed)

	fields := []zap.Field{
		zap.String("method", c.Method()),
		zap.String("path", c.Path()),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Duration("duration", elapsed),
		zap.String("request_id", c.GetRespHeader(headerRequestID)),
	}
	switch {
	case status >= fiber.StatusInternalServerError:
		s.logger.Error("http request", fields...)
	case status >= fiber.StatusBadRequest:
		s.logger.Warn("http request", fields...)
	default:
		s.logger.Debug("http request", fields...)
	}
	return nil
}

// handleError renders framework errors (unknown routes, panics) in the
// regular error envelope.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	message := "Internal server error. Please try again."
	code := matching.CodeProcessingError

	var ferr *fiber.Error
	if errors.As(err, &ferr) {
		status = ferr.Code
		if status < fiber.StatusInternalServerError {
			message = ferr.Message
			code = matching.CodeInvalidRequest
		}
	}
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("unhandled request error", zap.Error(err))
	}

	return c.Status(status).JSON(matching.ErrorResponse{Success: false, Error: message, ErrorCode: code})
}
