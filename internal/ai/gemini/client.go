package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/spigell/sahara/internal/ai"
)

const (
	defaultModel           = "gemini-2.0-flash"
	defaultTemperature     = 0.3
	defaultMaxOutputTokens = 2000
	defaultTimeout         = 15 * time.Second

	jsonMIMEType = "application/json"
)

// contentModel is the subset of genai.Models used by the generator.
type contentModel interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeneratorOptions tunes generation. Zero values select the defaults.
type GeneratorOptions struct {
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// Generator wraps the Google GenAI client to send one JSON-mode generation request per call.
type Generator struct {
	models          contentModel
	modelName       string
	temperature     float32
	maxOutputTokens int32
	timeout         time.Duration
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, opts GeneratorOptions) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(client.Models, opts), nil
}

func newGenerator(models contentModel, opts GeneratorOptions) *Generator {
	g := &Generator{
		models:          models,
		modelName:       strings.TrimSpace(opts.Model),
		temperature:     opts.Temperature,
		maxOutputTokens: opts.MaxOutputTokens,
		timeout:         opts.Timeout,
	}

	if g.modelName == "" {
		g.modelName = defaultModel
	}
	if g.temperature <= 0 {
		g.temperature = defaultTemperature
	}
	if g.maxOutputTokens <= 0 {
		g.maxOutputTokens = defaultMaxOutputTokens
	}
	if g.timeout <= 0 {
		g.timeout = defaultTimeout
	}

	return g
}

// Generate sends the system instruction and prompt as a single request and returns
// the first candidate's text. Every failure is an *ai.Error.
func (g *Generator) Generate(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if g == nil || g.models == nil {
		return "", ai.NewError("gemini generator is not initialized", nil)
	}

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", ai.NewError("prompt must not be empty", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	resp, err := g.models.GenerateContent(ctx, g.modelName, []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}, g.config(systemInstruction))
	if err != nil {
		return "", classifyError(ctx, err)
	}

	text := firstText(resp)
	if text == "" {
		return "", ai.NewError("gemini api returned empty response", nil)
	}

	return text, nil
}

func (g *Generator) config(systemInstruction string) *genai.GenerateContentConfig {
	temperature := g.temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:      &temperature,
		MaxOutputTokens:  g.maxOutputTokens,
		ResponseMIMEType: jsonMIMEType,
	}

	if s := strings.TrimSpace(systemInstruction); s != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: s}}}
	}

	return cfg
}

func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return ai.NewTimeoutError("gemini request timed out", err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return ai.NewError(fmt.Sprintf("gemini api returned status %d %s", apiErr.Code, apiErr.Status), err)
	}

	return ai.NewError("gemini request failed", err)
}

// firstText mirrors candidates[0].content.parts[0].text, skipping empty parts.
func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	for _, part := range candidate.Content.Parts {
		if part == nil {
			continue
		}
		if text := strings.TrimSpace(part.Text); text != "" {
			return text
		}
	}
	return ""
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.modelName
}
