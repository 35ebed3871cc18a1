package matching

import "github.com/spigell/sahara/internal/ai"

// Strategy names the tier that produced a response.
type Strategy string

const (
	StrategyAI      Strategy = "ai"
	StrategyKeyword Strategy = "keyword"
)

// selectStrategy keeps the AI result only when it succeeded with at least one match.
func selectStrategy(aiConfigured bool, result *ai.Result, err error) Strategy {
	if !aiConfigured || err != nil || result == nil || len(result.MatchedSchemes) == 0 {
		return StrategyKeyword
	}
	return StrategyAI
}
