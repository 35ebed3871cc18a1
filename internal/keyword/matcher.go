package keyword

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/profile"
)

const (
	keywordWeight  = 0.3
	categoryWeight = 0.4

	// MinScore is exclusive: a program needs strictly more to be returned.
	MinScore = 0.3
	// LikelyEligibleScore is exclusive as well.
	LikelyEligibleScore = 0.7
	MaxResults          = 10
)

// Match is one catalog program scored against a transcript.
type Match struct {
	Program catalog.Program
	Score   float64
	Reasons []string
	Status  ai.EligibilityStatus
}

// Matcher scores every catalog program by keyword overlap and category triggers.
// It is pure and safe for concurrent use.
type Matcher struct {
	catalog   *catalog.Catalog
	cfg       *Config
	stopwords map[string]struct{}
	keywords  map[string][]string
}

func New(cat *catalog.Catalog, cfg *Config) (*Matcher, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, errors.New("keyword matcher requires a non-empty catalog")
	}
	if cfg == nil {
		var err error
		if cfg, err = DefaultConfig(); err != nil {
			return nil, fmt.Errorf("load default keyword config: %w", err)
		}
	}

	m := &Matcher{
		catalog:   cat,
		cfg:       cfg,
		stopwords: make(map[string]struct{}, len(cfg.Stopwords)),
		keywords:  make(map[string][]string, cat.Len()),
	}

	for _, w := range cfg.Stopwords {
		m.stopwords[w] = struct{}{}
	}
	for _, p := range cat.All() {
		m.keywords[p.ID] = lowerAll(p.Eligibility.Keywords)
	}

	return m, nil
}

// Preprocess strips language-specific filler words from the transcript.
func (m *Matcher) Preprocess(transcript, language string) string {
	return m.cfg.Preprocess(transcript, language)
}

// Match preprocesses the transcript and scores it.
func (m *Matcher) Match(transcript, language string) []Match {
	return m.Score(m.Preprocess(transcript, language))
}

// Score returns at most MaxResults programs scoring above MinScore, best first.
// Ties keep catalog order.
func (m *Matcher) Score(transcript string) []Match {
	tokens := Tokenize(transcript, m.stopwords)
	if len(tokens) == 0 {
		return []Match{}
	}

	triggered := m.triggeredGroups(tokens)

	matches := make([]Match, 0)
	for _, p := range m.catalog.All() {
		score := 0.0
		reasons := make([]string, 0)

		for _, kw := range m.keywords[p.ID] {
			if m.hits(tokens, kw) {
				score += keywordWeight
				reasons = append(reasons, "Keyword match: "+kw)
			}
		}

		for _, g := range triggered {
			if slices.Contains(g.Categories, p.Category) {
				score += categoryWeight
				reasons = append(reasons, fmt.Sprintf("Matches %s needs (category: %s)", g.Need, p.Category))
			}
		}

		score = math.Min(round2(score), 1)
		if score <= MinScore {
			continue
		}

		status := ai.StatusNeedsVerification
		if score > LikelyEligibleScore {
			status = ai.StatusLikelyEligible
		}

		matches = append(matches, Match{Program: p, Score: score, Reasons: reasons, Status: status})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})

	if len(matches) > MaxResults {
		matches = matches[:MaxResults]
	}
	return matches
}

// Profile builds a heuristic extracted profile from trigger groups and the registered address.
func (m *Matcher) Profile(transcript, language string, user *profile.User) *profile.Extracted {
	tokens := Tokenize(m.Preprocess(transcript, language), m.stopwords)
	triggered := m.triggeredGroups(tokens)

	extracted := &profile.Extracted{
		Needs: make([]string, 0, len(triggered)),
		Demographics: map[string]any{
			"location":          user.Location(),
			"state":             profile.DisplayOr(user.State(), "Not specified"),
			"registeredAddress": user.RegisteredAddress(),
		},
		FamilyComposition: map[string]any{},
	}

	for _, g := range m.cfg.Groups {
		if g.Family != "" {
			extracted.FamilyComposition[g.Family] = false
		}
	}

	for _, g := range triggered {
		if g.Need != "" && !slices.Contains(extracted.Needs, g.Need) {
			extracted.Needs = append(extracted.Needs, g.Need)
		}
		if g.Occupation != "" && extracted.Occupation == "" {
			extracted.Occupation = g.Occupation
		}
		if g.Family != "" {
			extracted.FamilyComposition[g.Family] = true
		}
	}

	return extracted
}

func (m *Matcher) triggeredGroups(tokens []string) []Group {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}

	out := make([]Group, 0)
	for _, g := range m.cfg.Groups {
		for _, trig := range g.Triggers {
			if _, ok := set[trig]; ok {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// hits reports a token containing the keyword, or a long enough token contained in it.
func (m *Matcher) hits(tokens []string, kw string) bool {
	for _, tok := range tokens {
		if strings.Contains(tok, kw) {
			return true
		}
		if utf8.RuneCountInString(tok) >= m.cfg.MinTokenRunes && strings.Contains(kw, tok) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
