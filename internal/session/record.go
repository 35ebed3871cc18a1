package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/matching"
	"github.com/spigell/sahara/internal/profile"
)

// SearchType tells how a session was saved.
type SearchType string

const (
	SearchVoice  SearchType = "voice_search"
	SearchManual SearchType = "manual_save"
)

const (
	maxKeywords = 10

	unknownBenefit  = "Unknown Benefit"
	unknownUser     = "Unknown User"
	generalCategory = "General"
	unknownAmount   = "Amount not specified"
	notSpecified    = "Not specified"
)

var ErrInvalidRecord = errors.New("invalid session record")

// SavedBenefit is the flattened, frozen form of a matched benefit.
type SavedBenefit struct {
	ID                string               `json:"id"`
	Name              string               `json:"name"`
	NameEn            string               `json:"nameEn"`
	Category          string               `json:"category"`
	Amount            string               `json:"amount"`
	Description       string               `json:"description"`
	Eligibility       *catalog.Eligibility `json:"eligibility"`
	MatchScore        *float64             `json:"matchScore"`
	EligibilityStatus *string              `json:"eligibilityStatus"`
}

// Record is one persisted matching session. Records are written whole and never patched.
type Record struct {
	SessionID        string             `json:"sessionId"`
	UserID           string             `json:"userId"`
	UserName         string             `json:"userName"`
	Timestamp        time.Time          `json:"timestamp"`
	Language         string             `json:"language"`
	Transcript       string             `json:"transcript"`
	ExtractedProfile *profile.Extracted `json:"extractedProfile"`
	MatchedBenefits  []SavedBenefit     `json:"matchedBenefits"`
	BenefitCount     int                `json:"benefitCount"`
	Location         string             `json:"location"`
	SearchType       SearchType         `json:"searchType"`
	AIUsed           bool               `json:"aiUsed"`
	FallbackUsed     bool               `json:"fallbackUsed"`
	Keywords         []string           `json:"keywords"`
}

// Interaction is a user action on one benefit within a session.
type Interaction struct {
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	BenefitID string    `json:"benefitId"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
}

// NewID returns a session id of the form session_<unix-ms>_<5 chars>.
func NewID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:5]
	return fmt.Sprintf("session_%d_%s", now.UnixMilli(), suffix)
}

// Keywords returns the first ten lowercased words of a transcript.
func Keywords(transcript string) []string {
	words := strings.Fields(strings.ToLower(transcript))
	if len(words) > maxKeywords {
		words = words[:maxKeywords]
	}
	return words
}

// FromMatch freezes a match response into a session record.
func FromMatch(sessionID string, user *profile.User, language, transcript string, resp *matching.MatchResponse, searchType SearchType) Record {
	r := Record{
		SessionID:  sessionID,
		Language:   language,
		Transcript: transcript,
		Location:   user.Location(),
		SearchType: searchType,
	}
	if user != nil {
		r.UserID = user.UserID
		r.UserName = user.Name
	}
	if resp == nil {
		return r
	}

	r.ExtractedProfile = resp.ExtractedProfile
	r.AIUsed = resp.Metadata.AIUsed
	r.FallbackUsed = resp.Metadata.FallbackUsed
	r.MatchedBenefits = make([]SavedBenefit, 0, len(resp.MatchedBenefits))

	for _, b := range resp.MatchedBenefits {
		score := b.MatchScore
		status := string(b.EligibilityStatus)
		eligibility := b.Eligibility

		saved := SavedBenefit{
			ID:          b.ID,
			Name:        b.Name,
			NameEn:      b.NameEn,
			Category:    b.Category,
			Amount:      b.Amount,
			Description: b.Description,
			Eligibility: &eligibility,
			MatchScore:  &score,
		}
		if status != "" {
			saved.EligibilityStatus = &status
		}
		r.MatchedBenefits = append(r.MatchedBenefits, saved)
	}

	return r
}

// Normalize gives every field of r a concrete value. It fails only when the
// session or user id is missing.
func Normalize(r Record, now time.Time) (Record, error) {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.UserID = strings.TrimSpace(r.UserID)
	if r.SessionID == "" {
		return Record{}, fmt.Errorf("%w: session id is required", ErrInvalidRecord)
	}
	if r.UserID == "" {
		return Record{}, fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}

	r.UserName = profile.DisplayOr(r.UserName, unknownUser)
	if r.Timestamp.IsZero() {
		r.Timestamp = now
	}
	r.Timestamp = r.Timestamp.UTC()
	r.Language = profile.DisplayOr(r.Language, "en")
	r.Location = profile.DisplayOr(r.Location, notSpecified)
	if r.SearchType == "" {
		r.SearchType = SearchVoice
	}
	if r.Keywords == nil {
		r.Keywords = Keywords(r.Transcript)
	}

	extracted := profile.Extracted{}
	if r.ExtractedProfile != nil {
		extracted = *r.ExtractedProfile
	}
	if extracted.Needs == nil {
		extracted.Needs = []string{}
	}
	r.ExtractedProfile = &extracted

	benefits := make([]SavedBenefit, 0, len(r.MatchedBenefits))
	for i, b := range r.MatchedBenefits {
		benefits = append(benefits, normalizeBenefit(b, i, now))
	}
	r.MatchedBenefits = benefits
	r.BenefitCount = len(benefits)

	return r, nil
}

func normalizeBenefit(b SavedBenefit, i int, now time.Time) SavedBenefit {
	if strings.TrimSpace(b.ID) == "" {
		b.ID = fmt.Sprintf("benefit_%d_%d", now.UnixMilli(), i)
	}
	b.Name = profile.DisplayOr(b.Name, unknownBenefit)
	b.NameEn = profile.DisplayOr(b.NameEn, b.Name)
	b.Category = profile.DisplayOr(b.Category, generalCategory)
	b.Amount = profile.DisplayOr(b.Amount, unknownAmount)

	if b.Eligibility != nil {
		e := *b.Eligibility
		if e.Keywords == nil {
			e.Keywords = []string{}
		}
		b.Eligibility = &e
	}
	return b
}
