package matching

import (
	"time"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/profile"
)

// Version is reported in response metadata and health checks.
const Version = "1.0"

// MinTranscriptRunes is the shortest accepted transcript after trimming.
const MinTranscriptRunes = 10

// MatchRequest is one matching call. Only Transcript is required.
type MatchRequest struct {
	Transcript  string        `json:"transcript"`
	UserProfile *profile.User `json:"userProfile,omitempty"`
	Language    string        `json:"language,omitempty"`
	SessionID   string        `json:"sessionId,omitempty"`
	UserID      string        `json:"userId,omitempty"`
}

// MatchedBenefit is a catalog program with the match overlay applied on top.
type MatchedBenefit struct {
	catalog.Program

	MatchScore        float64              `json:"matchScore"`
	MatchLabel        string               `json:"matchLabel"`
	MatchReasons      []string             `json:"matchReasons"`
	EligibilityStatus ai.EligibilityStatus `json:"eligibilityStatus"`
	RequiredDocuments []string             `json:"requiredDocuments"`
	NextSteps         string               `json:"nextSteps"`
}

type Metadata struct {
	ProcessingTime int64     `json:"processingTime"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	AIModel        string    `json:"aiModel"`
	Strategy       Strategy  `json:"strategy"`
	AIUsed         bool      `json:"aiUsed"`
	FallbackUsed   bool      `json:"fallbackUsed"`
}

// MatchResponse is the success envelope. Its shape does not depend on the strategy used.
type MatchResponse struct {
	Success          bool               `json:"success"`
	ExtractedProfile *profile.Extracted `json:"extractedProfile"`
	MatchedBenefits  []MatchedBenefit   `json:"matchedBenefits"`
	Recommendations  string             `json:"recommendations"`
	ConfidenceScore  float64            `json:"confidenceScore"`
	FromCache        bool               `json:"fromCache"`
	Metadata         Metadata           `json:"metadata"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Error     string    `json:"error"`
	ErrorCode ErrorCode `json:"errorCode"`
}

// NewErrorResponse renders err without leaking internal details.
func NewErrorResponse(err error) ErrorResponse {
	e := AsError(err)
	return ErrorResponse{Success: false, Error: e.Message, ErrorCode: e.Code}
}

// ScoreLabel renders a score as a short human label.
func ScoreLabel(score float64) string {
	switch {
	case score >= 0.8:
		return "High Match"
	case score >= 0.6:
		return "Good Match"
	case score >= 0.4:
		return "Possible Match"
	default:
		return "Low Match"
	}
}
