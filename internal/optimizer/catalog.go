package optimizer

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/xiaot623/gogo/coach/internal/domain"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the recipe data set the optimizer draws from.
type Catalog struct {
	Recipes []domain.Recipe `yaml:"recipes"`
}

// LoadCatalog parses a YAML recipe catalog.
func LoadCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[int]bool, len(c.Recipes))
	for _, r := range c.Recipes {
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate recipe id %d", r.ID)
		}
		seen[r.ID] = true
	}
	return &c, nil
}

// DefaultCatalog returns the built-in recipe catalog.
func DefaultCatalog() *Catalog {
	c, err := LoadCatalog(defaultCatalog)
	if err != nil {
		panic(err)
	}
	return c
}

// ForDiet returns the recipes compatible with prefs. No preferences, or an
// omnivore preference, admits every recipe; when nothing matches the whole
// catalog is returned.
func (c *Catalog) ForDiet(prefs []string) []domain.Recipe {
	if len(prefs) == 0 {
		return c.Recipes
	}
	for _, p := range prefs {
		if strings.EqualFold(p, "omnivore") {
			return c.Recipes
		}
	}

	var out []domain.Recipe
	for _, r := range c.Recipes {
		for _, p := range prefs {
			if r.HasDiet(strings.ToLower(p)) {
				out = append(out, r)
				break
			}
		}
	}
	if len(out) == 0 {
		return c.Recipes
	}
	return out
}

// InRange returns recipes whose calories fall within [min, max].
func InRange(recipes []domain.Recipe, min, max int) []domain.Recipe {
	out := make([]domain.Recipe, 0, len(recipes))
	for _, r := range recipes {
		if r.Calories >= min && r.Calories <= max {
			out = append(out, r)
		}
	}
	return out
}
