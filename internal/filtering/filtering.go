package filtering

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/catalog"
)

// Filter represents a single refinement step applied to model-proposed scheme matches.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Validate(cfg *Config) error
	Apply(ctx context.Context, deps Deps, matches []ai.SchemeMatch) ([]ai.SchemeMatch, Step, error)
}

// Deps aggregates dependencies shared across all filtering steps.
type Deps struct {
	Catalog *catalog.Catalog
	Logger  *zap.Logger
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Config contains configuration settings consumed by the filters.
type Config struct {
	// MinScore drops matches scoring below it. Zero keeps every match.
	MinScore float64
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// statusProvider is implemented by filters that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Default returns the standard refinement chain in execution order.
func Default(cfg *Config) []Filter {
	var threshold float64
	if cfg != nil {
		threshold = cfg.MinScore
	}

	steps := []Filter{
		NewKnownSchemes(),
		NewDuplicates(),
		NewNormalize(),
		NewMinScore(threshold),
	}
	if cfg == nil || cfg.MinScore <= 0 {
		DisableByName(steps, minScoreName, "minimum score is not configured")
	}
	return steps
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially and returns the surviving matches.
func Run(ctx context.Context, cfg *Config, deps Deps, steps []Filter, matches []ai.SchemeMatch) ([]ai.SchemeMatch, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			continue
		}
		if err := step.Validate(cfg); err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			if deps.Logger != nil {
				deps.Logger.Debug("filter disabled", zap.String("name", step.Name()))
			}
			continue
		}

		next, info, err := step.Apply(ctx, deps, matches)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		if deps.Logger != nil {
			deps.Logger.Debug("filter step",
				zap.String("name", step.Name()),
				zap.Int("initial", info.Initial),
				zap.Int("dropped", info.Dropped),
				zap.Int("left", info.Left),
			)
		}

		matches = next
	}

	return matches, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
