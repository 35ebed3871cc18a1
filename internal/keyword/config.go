package keyword

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var embeddedConfig []byte

const defaultMinTokenRunes = 3

// Group is a multilingual trigger-word set bound to the catalog categories it boosts.
type Group struct {
	Name       string   `yaml:"name"`
	Need       string   `yaml:"need"`
	Occupation string   `yaml:"occupation"`
	Family     string   `yaml:"family"`
	Triggers   []string `yaml:"triggers"`
	Categories []string `yaml:"categories"`
}

// Config is the externalized heuristic data of the keyword matcher.
type Config struct {
	MinTokenRunes int                 `yaml:"min-token-runes"`
	Stopwords     []string            `yaml:"stopwords"`
	Fillers       map[string][]string `yaml:"fillers"`
	Groups        []Group             `yaml:"groups"`
}

// DefaultConfig returns the bundled trigger configuration.
func DefaultConfig() (*Config, error) {
	return LoadConfig(bytes.NewReader(embeddedConfig))
}

// LoadConfigFile reads the configuration from path, or the bundled one when path is empty.
func LoadConfigFile(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultConfig()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open keywords file %q: %w", path, err)
	}
	defer f.Close()

	return LoadConfig(f)
}

// LoadConfig decodes YAML configuration and lowercases every word list.
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode keywords config: %w", err)
	}

	if cfg.MinTokenRunes <= 0 {
		cfg.MinTokenRunes = defaultMinTokenRunes
	}

	cfg.Stopwords = lowerAll(cfg.Stopwords)
	for lang, words := range cfg.Fillers {
		cfg.Fillers[lang] = lowerAll(words)
	}

	for i := range cfg.Groups {
		g := &cfg.Groups[i]
		g.Name = strings.TrimSpace(g.Name)
		if g.Name == "" {
			return nil, fmt.Errorf("keyword group at position %d has no name", i)
		}
		if len(g.Triggers) == 0 {
			return nil, fmt.Errorf("keyword group %q has no triggers", g.Name)
		}
		g.Triggers = lowerAll(g.Triggers)
	}

	return &cfg, nil
}

func lowerAll(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
