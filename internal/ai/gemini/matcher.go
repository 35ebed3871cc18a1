package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	_ "embed"

	"github.com/mitchellh/mapstructure"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/spigell/sahara/internal/ai"
	"github.com/spigell/sahara/internal/catalog"
	"github.com/spigell/sahara/internal/filtering"
	"github.com/spigell/sahara/internal/logger"
	"github.com/spigell/sahara/internal/profile"
	"github.com/spigell/sahara/internal/utils"
)

const (
	// Provider is the human-readable provider name reported by health checks.
	Provider = "Google Gemini"

	defaultMaxLogLength = 200
)

//go:embed prompt.md
var promptTemplate string

//go:embed response_schema.json
var responseSchema []byte

var schema = mustSchema(responseSchema)

func mustSchema(raw []byte) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		panic(fmt.Sprintf("compile gemini response schema: %v", err))
	}
	return s
}

type contentGenerator interface {
	Generate(ctx context.Context, systemInstruction, prompt string) (string, error)
	Model() string
}

// MatcherOptions configures the matcher. Zero values select the defaults.
type MatcherOptions struct {
	MaxLogLength int
	MinScore     float64
}

type Matcher struct {
	generator   contentGenerator
	catalog     *catalog.Catalog
	catalogJSON string
	logger      *zap.Logger
	maxLogLen   int
	filterCfg   *filtering.Config
}

func NewMatcher(generator contentGenerator, cat *catalog.Catalog, log *zap.Logger, opts MatcherOptions) (*Matcher, error) {
	if generator == nil {
		return nil, errors.New("gemini generator is required")
	}
	if cat == nil || cat.Len() == 0 {
		return nil, errors.New("catalog is required")
	}

	summaries, err := json.MarshalIndent(cat.Summaries(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal catalog summaries: %w", err)
	}

	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaultMaxLogLength
	}

	m := &Matcher{
		generator:   generator,
		catalog:     cat,
		catalogJSON: string(summaries),
		logger:      logger.WithCommonFields(log, Provider, generator.Model()),
		maxLogLen:   opts.MaxLogLength,
		filterCfg:   &filtering.Config{MinScore: opts.MinScore},
	}

	for _, status := range filtering.Describe(filtering.Default(m.filterCfg)) {
		m.logger.Debug("match filter configured",
			zap.String("name", status.Name),
			zap.Bool("enabled", status.Enabled),
			zap.String("reason", status.Reason),
			zap.Any("details", status.Details),
		)
	}

	return m, nil
}

func (m *Matcher) Model() string    { return m.generator.Model() }
func (m *Matcher) Provider() string { return Provider }

// Match asks the model for scheme matches. Unknown scheme ids are dropped, not reported as errors.
func (m *Matcher) Match(ctx context.Context, transcript string, user *profile.User, language string) (*ai.Result, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return nil, ai.NewError("transcript is required", nil)
	}
	if strings.TrimSpace(language) == "" {
		language = "en"
	}

	system := m.buildSystemInstruction(user, language)
	prompt := buildPrompt(transcript, language)

	m.logger.Debug("gemini generate content request",
		zap.Int("system_length", utf8.RuneCountInString(system)),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, m.maxLogLen)),
	)

	raw, err := m.generator.Generate(ctx, system, prompt)
	if err != nil {
		var aiErr *ai.Error
		if !errors.As(err, &aiErr) {
			err = ai.NewError("gemini request failed", err)
		}
		return nil, err
	}

	m.logger.Debug("gemini generate content response",
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
	)

	result, err := parseResponse(raw)
	if err != nil {
		m.logger.Warn("gemini response rejected",
			zap.Error(err),
			zap.String("response_preview", utils.TruncateForLog(raw, m.maxLogLen)),
		)
		return nil, err
	}

	deps := filtering.Deps{Catalog: m.catalog, Logger: m.logger}
	matches, err := filtering.Run(ctx, m.filterCfg, deps, filtering.Default(m.filterCfg), result.MatchedSchemes)
	if err != nil {
		return nil, ai.NewError("refine gemini matches", err)
	}

	result.MatchedSchemes = matches
	result.Raw = raw
	result.Model = m.generator.Model()

	return result, nil
}

func (m *Matcher) buildSystemInstruction(user *profile.User, language string) string {
	var name, phone string
	if user != nil {
		name, phone = user.Name, user.Phone
	}

	location := fmt.Sprintf("%s, %s",
		profile.DisplayOr(user.City(), "Not specified"),
		profile.DisplayOr(user.State(), "Not specified"),
	)

	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Schemes:\n{{CATALOG_JSON}}\n\nRespond with JSON only."
	}

	replacer := strings.NewReplacer(
		"{{USER_NAME}}", profile.DisplayOr(name, "Not provided"),
		"{{LOCATION}}", location,
		"{{PHONE}}", profile.DisplayOr(phone, "Not provided"),
		"{{LANGUAGE}}", language,
		"{{CATALOG_JSON}}", m.catalogJSON,
	)
	return replacer.Replace(template)
}

func buildPrompt(transcript, language string) string {
	return fmt.Sprintf("Transcript (%s): %q\n\nAnalyze it and respond with the JSON object only.", language, transcript)
}

// parseResponse strips code fences, validates the payload against the response
// schema and decodes it. Nothing is coerced before validation passes.
func parseResponse(raw string) (*ai.Result, error) {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return nil, ai.NewError("gemini response is empty", nil)
	}

	var doc any
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return nil, ai.NewError("invalid AI JSON output", err)
	}

	validation, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, ai.NewError("validate gemini response", err)
	}
	if !validation.Valid() {
		problems := make([]string, 0, len(validation.Errors()))
		for _, e := range validation.Errors() {
			problems = append(problems, e.String())
		}
		return nil, ai.NewError("gemini response violates schema: "+strings.Join(problems, "; "), nil)
	}

	var result ai.Result
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &result,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, ai.NewError("create response decoder", err)
	}
	if err := decoder.Decode(doc); err != nil {
		return nil, ai.NewError("decode gemini response", err)
	}

	if result.MatchedSchemes == nil {
		result.MatchedSchemes = []ai.SchemeMatch{}
	}
	if result.ExtractedProfile != nil && result.ExtractedProfile.Needs == nil {
		result.ExtractedProfile.Needs = []string{}
	}

	return &result, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```JSON")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}
