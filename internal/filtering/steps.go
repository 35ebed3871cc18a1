package filtering

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/ai"
)

const minScoreName = "min_score"

// toggle carries the enable/disable state shared by every step.
type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type knownSchemesFilter struct{ toggle }

// NewKnownSchemes drops matches whose scheme id is not in the catalog.
func NewKnownSchemes() Filter {
	return &knownSchemesFilter{}
}

func (f *knownSchemesFilter) Name() string { return "known_schemes" }

func (f *knownSchemesFilter) Validate(*Config) error { return nil }

func (f *knownSchemesFilter) Apply(_ context.Context, deps Deps, matches []ai.SchemeMatch) ([]ai.SchemeMatch, Step, error) {
	if deps.Catalog == nil {
		return nil, Step{}, errors.New("catalog is required")
	}

	initial := len(matches)
	kept := make([]ai.SchemeMatch, 0, len(matches))
	unknown := make([]string, 0)

	for _, m := range matches {
		id := strings.TrimSpace(m.SchemeID)
		if _, ok := deps.Catalog.Find(id); !ok {
			unknown = append(unknown, m.SchemeID)
			continue
		}
		m.SchemeID = id
		kept = append(kept, m)
	}

	if deps.Logger != nil && len(unknown) > 0 {
		deps.Logger.Warn("dropping matches with unknown scheme ids",
			zap.Strings("scheme_ids", unknown),
			zap.Int("matches_left", len(kept)),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(unknown), Left: len(kept)}, nil
}

func (f *knownSchemesFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

type duplicatesFilter struct{ toggle }

// NewDuplicates keeps only the first match for each scheme id.
func NewDuplicates() Filter {
	return &duplicatesFilter{}
}

func (f *duplicatesFilter) Name() string { return "duplicates" }

func (f *duplicatesFilter) Validate(*Config) error { return nil }

func (f *duplicatesFilter) Apply(_ context.Context, deps Deps, matches []ai.SchemeMatch) ([]ai.SchemeMatch, Step, error) {
	initial := len(matches)
	seen := make(map[string]struct{}, len(matches))
	kept := make([]ai.SchemeMatch, 0, len(matches))

	for _, m := range matches {
		if _, dup := seen[m.SchemeID]; dup {
			continue
		}
		seen[m.SchemeID] = struct{}{}
		kept = append(kept, m)
	}

	if deps.Logger != nil && len(kept) < initial {
		deps.Logger.Debug("dropping duplicated scheme matches", zap.Int("dropped", initial-len(kept)))
	}

	return kept, Step{Initial: initial, Dropped: initial - len(kept), Left: len(kept)}, nil
}

type normalizeFilter struct{ toggle }

// NewNormalize clamps scores into [0,1] and defaults a missing status to
// needs_verification. An unknown status fails the run. It never drops matches.
func NewNormalize() Filter {
	return &normalizeFilter{}
}

func (f *normalizeFilter) Name() string { return "normalize" }

func (f *normalizeFilter) Validate(*Config) error { return nil }

func (f *normalizeFilter) Apply(_ context.Context, _ Deps, matches []ai.SchemeMatch) ([]ai.SchemeMatch, Step, error) {
	out := make([]ai.SchemeMatch, len(matches))
	for i, m := range matches {
		if math.IsNaN(m.MatchScore) {
			m.MatchScore = 0
		}
		m.MatchScore = math.Max(0, math.Min(1, m.MatchScore))

		m.EligibilityStatus = ai.EligibilityStatus(strings.ToLower(strings.TrimSpace(string(m.EligibilityStatus))))
		switch {
		case m.EligibilityStatus == "":
			m.EligibilityStatus = ai.StatusNeedsVerification
		case !m.EligibilityStatus.Valid():
			return nil, Step{}, fmt.Errorf("scheme %s has unknown eligibility status %q", m.SchemeID, m.EligibilityStatus)
		}

		if m.MatchReasons == nil {
			m.MatchReasons = []string{}
		}
		out[i] = m
	}

	return out, Step{Initial: len(matches), Left: len(out)}, nil
}

type minScoreFilter struct {
	toggle
	threshold float64
}

// NewMinScore drops matches scoring below Config.MinScore. threshold is what
// the filter reports before Validate reads the config.
func NewMinScore(threshold float64) Filter {
	return &minScoreFilter{threshold: threshold}
}

func (f *minScoreFilter) Name() string { return minScoreName }

func (f *minScoreFilter) Validate(cfg *Config) error {
	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		return fmt.Errorf("minimum score must be within [0,1], got %v", cfg.MinScore)
	}
	f.threshold = cfg.MinScore
	return nil
}

func (f *minScoreFilter) Apply(_ context.Context, deps Deps, matches []ai.SchemeMatch) ([]ai.SchemeMatch, Step, error) {
	initial := len(matches)
	kept := make([]ai.SchemeMatch, 0, len(matches))
	dropped := make([]string, 0)

	for _, m := range matches {
		if m.MatchScore < f.threshold {
			dropped = append(dropped, m.SchemeID)
			continue
		}
		kept = append(kept, m)
	}

	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Debug("dropping matches by score threshold",
			zap.Strings("scheme_ids", dropped),
			zap.Float64("threshold", f.threshold),
		)
	}

	return kept, Step{Initial: initial, Dropped: len(dropped), Left: len(kept)}, nil
}

func (f *minScoreFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"threshold": strconv.FormatFloat(f.threshold, 'f', 2, 64)},
	}
}
