package matching

import (
	"errors"
	"testing"

	"github.com/spigell/sahara/internal/ai"
)

func TestSelectStrategy(t *testing.T) {
	withMatches := &ai.Result{MatchedSchemes: []ai.SchemeMatch{{SchemeID: "pm-kisan"}}}
	empty := &ai.Result{MatchedSchemes: []ai.SchemeMatch{}}

	tests := []struct {
		name       string
		configured bool
		result     *ai.Result
		err        error
		expect     Strategy
	}{
		{name: "ai not configured", configured: false, result: withMatches, expect: StrategyKeyword},
		{name: "ai error", configured: true, err: errors.New("boom"), expect: StrategyKeyword},
		{name: "ai error with partial result", configured: true, result: withMatches, err: errors.New("boom"), expect: StrategyKeyword},
		{name: "nil result", configured: true, expect: StrategyKeyword},
		{name: "zero matches", configured: true, result: empty, expect: StrategyKeyword},
		{name: "ai matches", configured: true, result: withMatches, expect: StrategyAI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := selectStrategy(tt.configured, tt.result, tt.err); got != tt.expect {
				t.Fatalf("expected %s, got %s", tt.expect, got)
			}
		})
	}
}

func TestScoreLabel(t *testing.T) {
	tests := map[float64]string{0.95: "High Match", 0.8: "High Match", 0.6: "Good Match", 0.45: "Possible Match", 0.1: "Low Match"}
	for score, want := range tests {
		if got := ScoreLabel(score); got != want {
			t.Fatalf("ScoreLabel(%v) = %q, want %q", score, got, want)
		}
	}
}

func TestAsError(t *testing.T) {
	internal := AsError(errors.New("nil pointer somewhere"))
	if internal.Code != CodeProcessingError || internal.HTTPStatus() != 500 {
		t.Fatalf("unexpected conversion: %+v", internal)
	}

	resp := NewErrorResponse(internal)
	if resp.Success || resp.Error != msgProcessingError || resp.ErrorCode != CodeProcessingError {
		t.Fatalf("internal details must not leak: %+v", resp)
	}

	typed := &Error{Code: CodeInvalidRequest, Message: "bad body"}
	if AsError(typed) != typed || typed.HTTPStatus() != 400 {
		t.Fatalf("expected typed errors to pass through")
	}
}
