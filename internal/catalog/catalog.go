package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	_ "embed"
)

//go:embed schemes.json
var embeddedSchemes []byte

// AgeRange bounds the applicant age. Nil ends are open.
type AgeRange struct {
	Min *int `json:"min,omitempty"`
	Max *int `json:"max,omitempty"`
}

// Eligibility is the structured eligibility metadata of a program.
// Keywords span English, Hindi and Marathi and drive fallback matching.
type Eligibility struct {
	Occupation        []string       `json:"occupation,omitempty"`
	IncomeLimit       *int64         `json:"incomeLimit,omitempty"`
	AgeLimit          *AgeRange      `json:"ageLimit,omitempty"`
	Gender            string         `json:"gender,omitempty"`
	Demographics      []string       `json:"demographics,omitempty"`
	SpecialConditions []string       `json:"specialConditions,omitempty"`
	Keywords          []string       `json:"keywords"`
	Conditions        map[string]any `json:"conditions,omitempty"`
}

// Program is a single benefit scheme. Programs are loaded once and never mutated.
type Program struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	NameEn             string      `json:"nameEn"`
	Category           string      `json:"category"`
	Amount             string      `json:"amount"`
	Eligibility        Eligibility `json:"eligibility"`
	Description        string      `json:"description"`
	Documents          []string    `json:"documents"`
	Level              string      `json:"level"`
	Ministry           string      `json:"ministry"`
	Icon               string      `json:"icon"`
	ApplicationProcess string      `json:"applicationProcess"`
	BenefitType        string      `json:"benefitType"`
}

// Summary is the condensed projection of a program sent to the model.
type Summary struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Amount      string      `json:"amount"`
	Eligibility Eligibility `json:"eligibility"`
	Category    string      `json:"category"`
	Level       string      `json:"level"`
}

// Catalog is an ordered, read-only collection of programs indexed by id.
type Catalog struct {
	programs []Program
	index    map[string]int
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(embeddedSchemes))
}

// LoadFile reads a catalog from a JSON file. An empty path yields the bundled catalog.
func LoadFile(path string) (*Catalog, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Default()
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file %q: %w", path, err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes a JSON array of programs and validates id uniqueness.
func Load(r io.Reader) (*Catalog, error) {
	var programs []Program
	if err := json.NewDecoder(r).Decode(&programs); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	return New(programs)
}

// New builds a catalog from the given programs preserving their order.
func New(programs []Program) (*Catalog, error) {
	c := &Catalog{
		programs: make([]Program, 0, len(programs)),
		index:    make(map[string]int, len(programs)),
	}

	for i, p := range programs {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return nil, fmt.Errorf("program at position %d has an empty id", i)
		}
		if _, ok := c.index[id]; ok {
			return nil, fmt.Errorf("duplicate program id %q", id)
		}
		p.ID = id
		if p.Eligibility.Keywords == nil {
			p.Eligibility.Keywords = []string{}
		}
		c.index[id] = len(c.programs)
		c.programs = append(c.programs, p)
	}

	if len(c.programs) == 0 {
		return nil, errors.New("catalog is empty")
	}

	return c, nil
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.programs)
}

// All returns the programs in catalog order. The slice is a copy.
func (c *Catalog) All() []Program {
	if c == nil {
		return nil
	}
	out := make([]Program, len(c.programs))
	copy(out, c.programs)
	return out
}

// Find looks a program up by id.
func (c *Catalog) Find(id string) (Program, bool) {
	if c == nil {
		return Program{}, false
	}
	i, ok := c.index[strings.TrimSpace(id)]
	if !ok {
		return Program{}, false
	}
	return c.programs[i], true
}

// Summaries returns the condensed projection used to bound prompt size.
func (c *Catalog) Summaries() []Summary {
	if c == nil {
		return nil
	}
	out := make([]Summary, 0, len(c.programs))
	for _, p := range c.programs {
		out = append(out, Summary{
			ID:          p.ID,
			Name:        p.Name,
			Amount:      p.Amount,
			Eligibility: p.Eligibility,
			Category:    p.Category,
			Level:       p.Level,
		})
	}
	return out
}
