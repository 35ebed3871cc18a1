package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/logger"
	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/session"
)

type healthResponse struct {
	Status           string `json:"status"`
	Service          string `json:"service"`
	Version          string `json:"version"`
	AvailableSchemes int    `json:"availableSchemes"`
	Timestamp        string `json:"timestamp"`
	AIProvider       string `json:"aiProvider"`
	AIModel          string `json:"aiModel"`
	AIEnabled        bool   `json:"aiEnabled"`
}

func (s *Server) matchBenefits(c *fiber.Ctx) error {
	var req matching.MatchRequest
	if err := c.BodyParser(&req); err != nil {
		s.logger.Debug("rejecting unparseable match request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(invalidRequest("Invalid request body"))
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = session.NewID(s.now())
	}
	c.Set(headerSessionID, sessionID)

	resp, err := s.orchestrator.MatchBenefits(c.UserContext(), req)
	if err != nil {
		e := matching.AsError(err)
		if e.HTTPStatus() >= fiber.StatusInternalServerError {
			s.logger.Error("benefit matching failed", zap.Error(err), zap.String(logger.FieldSessionID, sessionID))
		}
		return c.Status(e.HTTPStatus()).JSON(matching.NewErrorResponse(err))
	}

	s.recordMatch(sessionID, req, resp)

	return c.JSON(resp)
}

// recordMatch saves the search in the background. Anonymous searches and
// searches without results are not recorded.
func (s *Server) recordMatch(sessionID string, req matching.MatchRequest, resp *matching.MatchResponse) {
	if s.sessions == nil || len(resp.MatchedBenefits) == 0 {
		return
	}
	user := req.User()
	if user == nil || strings.TrimSpace(user.UserID) == "" {
		return
	}

	record := session.FromMatch(sessionID, user, req.Lang(), strings.TrimSpace(req.Transcript), resp, session.SearchVoice)
	s.sessions.RecordAsync(record)
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(healthResponse{
		Status:           "healthy",
		Service:          ServiceName,
		Version:          matching.Version,
		AvailableSchemes: s.orchestrator.CatalogSize(),
		Timestamp:        s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		AIProvider:       s.orchestrator.AIProvider(),
		AIModel:          s.orchestrator.AIModel(),
		AIEnabled:        s.orchestrator.AIEnabled(),
	})
}

func (s *Server) stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"success": true,
		"stats":   s.orchestrator.Stats(c.UserContext()),
	})
}

func invalidRequest(message string) matching.ErrorResponse {
	return matching.ErrorResponse{Success: false, Error: message, ErrorCode: matching.CodeInvalidRequest}
}
