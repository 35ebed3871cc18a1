package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/logger"
	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/session"
)

const (
	CodeSessionWrite    matching.ErrorCode = "SESSION_WRITE_ERROR"
	CodeSessionNotFound matching.ErrorCode = "SESSION_NOT_FOUND"
)

func (s *Server) saveSession(c *fiber.Ctx) error {
	var r session.Record
	if err := c.BodyParser(&r); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(invalidRequest("Invalid request body"))
	}
	if strings.TrimSpace(r.SessionID) == "" {
		r.SessionID = session.NewID(s.now())
	}
	if r.SearchType == "" {
		r.SearchType = session.SearchManual
	}

	saved, err := s.sessions.Record(c.UserContext(), r)
	if err != nil {
		return s.sessionError(c, err, r.SessionID)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "session": saved})
}

func (s *Server) recentSessions(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Query("userId"))
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(invalidRequest("userId is required"))
	}

	records, err := s.sessions.Recent(c.UserContext(), userID, c.QueryInt("limit", 0))
	if err != nil {
		return s.sessionError(c, err, "")
	}

	return c.JSON(fiber.Map{"success": true, "sessions": records})
}

func (s *Server) getSession(c *fiber.Ctx) error {
	id := c.Params("id")

	record, err := s.sessions.Get(c.UserContext(), id)
	if err != nil {
		return s.sessionError(c, err, id)
	}

	return c.JSON(fiber.Map{"success": true, "session": record})
}

func (s *Server) trackInteraction(c *fiber.Ctx) error {
	var i session.Interaction
	if err := c.BodyParser(&i); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(invalidRequest("Invalid request body"))
	}
	i.SessionID = c.Params("id")

	saved, err := s.sessions.Track(c.UserContext(), i)
	if err != nil {
		return s.sessionError(c, err, i.SessionID)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "interaction": saved})
}

func (s *Server) listInteractions(c *fiber.Ctx) error {
	id := c.Params("id")

	interactions, err := s.sessions.Interactions(c.UserContext(), id)
	if err != nil {
		return s.sessionError(c, err, id)
	}

	return c.JSON(fiber.Map{"success": true, "interactions": interactions})
}

func (s *Server) sessionError(c *fiber.Ctx, err error, sessionID string) error {
	switch {
	case errors.Is(err, session.ErrInvalidRecord):
		return c.Status(fiber.StatusBadRequest).JSON(invalidRequest(strings.TrimPrefix(err.Error(), session.ErrInvalidRecord.Error()+": ")))
	case errors.Is(err, session.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(matching.ErrorResponse{
			Error:     "Session not found",
			ErrorCode: CodeSessionNotFound,
		})
	}

	s.logger.Error("session store failed", zap.Error(err), zap.String(logger.FieldSessionID, sessionID))
	return c.Status(fiber.StatusInternalServerError).JSON(matching.ErrorResponse{
		Error:     "Could not access saved sessions. Please try again.",
		ErrorCode: CodeSessionWrite,
	})
}
