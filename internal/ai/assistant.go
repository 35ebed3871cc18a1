package ai

import (
	"context"

	"github.com/spigell/sahara/internal/profile"
)

// EligibilityStatus is the model's or heuristic's verdict on a single program.
type EligibilityStatus string

const (
	StatusEligible          EligibilityStatus = "eligible"
	StatusLikelyEligible    EligibilityStatus = "likely_eligible"
	StatusNeedsVerification EligibilityStatus = "needs_verification"
	StatusNotEligible       EligibilityStatus = "not_eligible"
)

// Valid reports whether s is one of the known statuses.
func (s EligibilityStatus) Valid() bool {
	switch s {
	case StatusEligible, StatusLikelyEligible, StatusNeedsVerification, StatusNotEligible:
		return true
	}
	return false
}

// SchemeMatch is one recommended program as returned by a matcher.
type SchemeMatch struct {
	SchemeID          string            `json:"schemeId" mapstructure:"schemeId"`
	MatchScore        float64           `json:"matchScore" mapstructure:"matchScore"`
	MatchReasons      []string          `json:"matchReasons" mapstructure:"matchReasons"`
	EligibilityStatus EligibilityStatus `json:"eligibilityStatus" mapstructure:"eligibilityStatus"`
	RequiredDocuments []string          `json:"requiredDocuments,omitempty" mapstructure:"requiredDocuments"`
	NextSteps         string            `json:"nextSteps,omitempty" mapstructure:"nextSteps"`
}

// Result is the structured outcome of one AI matching call.
type Result struct {
	ExtractedProfile *profile.Extracted `json:"extractedProfile" mapstructure:"extractedProfile"`
	MatchedSchemes   []SchemeMatch      `json:"matchedSchemes" mapstructure:"matchedSchemes"`
	Recommendations  string             `json:"recommendations" mapstructure:"recommendations"`
	ConfidenceScore  float64            `json:"confidenceScore" mapstructure:"confidenceScore"`

	Raw   string `json:"-" mapstructure:"-"`
	Model string `json:"-" mapstructure:"-"`
}

// Matcher turns a transcript and optional user profile into ranked program matches.
type Matcher interface {
	Match(ctx context.Context, transcript string, user *profile.User, language string) (*Result, error)
	Model() string
	Provider() string
}
