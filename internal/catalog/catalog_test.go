package catalog

import (
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.Len() == 0 {
		t.Fatal("expected bundled catalog to contain programs")
	}

	kisan, ok := c.Find("pm-kisan")
	if !ok {
		t.Fatal("expected pm-kisan to be present")
	}
	if kisan.Category != "Agriculture" {
		t.Fatalf("unexpected category: %q", kisan.Category)
	}
	if len(kisan.Eligibility.Keywords) == 0 {
		t.Fatal("expected pm-kisan keywords")
	}

	if _, ok := c.Find("pradhan-mantri-awas"); !ok {
		t.Fatal("expected a housing program")
	}

	seen := make(map[string]bool)
	for _, p := range c.All() {
		if seen[p.ID] {
			t.Fatalf("duplicate id %q", p.ID)
		}
		seen[p.ID] = true
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	raw := `[{"id":"a","name":"A"},{"id":" a ","name":"B"}]`
	if _, err := Load(strings.NewReader(raw)); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestLoadRejectsEmptyID(t *testing.T) {
	if _, err := Load(strings.NewReader(`[{"id":"  "}]`)); err == nil {
		t.Fatal("expected empty id error")
	}
}

func TestSummariesKeepOrderAndProjection(t *testing.T) {
	c, err := New([]Program{
		{ID: "b", Name: "B", Category: "Housing", Level: "National", Amount: "1", Description: "long text"},
		{ID: "a", Name: "A", Category: "Healthcare"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	summaries := c.Summaries()
	if len(summaries) != 2 || summaries[0].ID != "b" || summaries[1].ID != "a" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	if summaries[0].Level != "National" || summaries[0].Category != "Housing" {
		t.Fatalf("projection lost fields: %+v", summaries[0])
	}
}

func TestAllReturnsCopy(t *testing.T) {
	c, err := New([]Program{{ID: "x", Name: "X"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := c.All()
	all[0].Name = "mutated"

	p, _ := c.Find("x")
	if p.Name != "X" {
		t.Fatalf("catalog was mutated through All(): %q", p.Name)
	}
}
