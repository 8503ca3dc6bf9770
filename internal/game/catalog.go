package game

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category is a themed pool of candidate secret words.
type Category struct {
	ID    string   `yaml:"id" json:"id"`
	Name  string   `yaml:"name" json:"name"`
	Icon  string   `yaml:"icon" json:"icon"`
	Words []string `yaml:"words" json:"-"`
}

// CategorySummary is the public face of a category, without its words.
type CategorySummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Summary strips the word list.
func (c Category) Summary() CategorySummary {
	return CategorySummary{ID: c.ID, Name: c.Name, Icon: c.Icon}
}

// categoryFile is the on-disk layout of the catalog.
type categoryFile struct {
	Categories []Category `yaml:"categories"`
}

// Catalog holds the read-only category data loaded at startup
type Catalog struct {
	categories []Category
	byID       map[string]int
}

// NewCatalog parses the YAML catalog. It fails fast on empty or malformed
// data so the server never starts without words to play with.
func NewCatalog(data []byte) (*Catalog, error) {
	var file categoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse category catalog: %w", err)
	}
	return newCatalog(file.Categories)
}

// NewCatalogFromCategories builds a catalog from in-memory categories.
func NewCatalogFromCategories(categories []Category) (*Catalog, error) {
	return newCatalog(categories)
}

func newCatalog(categories []Category) (*Catalog, error) {
	if len(categories) == 0 {
		return nil, fmt.Errorf("category catalog is empty")
	}

	c := &Catalog{
		categories: make([]Category, 0, len(categories)),
		byID:       make(map[string]int, len(categories)),
	}

	for _, cat := range categories {
		cat.ID = strings.TrimSpace(cat.ID)
		if cat.ID == "" {
			return nil, fmt.Errorf("category %q has no id", cat.Name)
		}
		if _, dup := c.byID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", cat.ID)
		}

		words := make([]string, 0, len(cat.Words))
		seen := make(map[string]bool, len(cat.Words))
		for _, w := range cat.Words {
			w = strings.TrimSpace(w)
			key := strings.ToLower(w)
			if w == "" || seen[key] {
				continue
			}
			seen[key] = true
			words = append(words, w)
		}
		if len(words) == 0 {
			return nil, fmt.Errorf("category %q has no words", cat.ID)
		}
		cat.Words = words

		c.byID[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}

	return c, nil
}

// Categories returns a copy of all categories.
func (c *Catalog) Categories() []Category {
	out := make([]Category, len(c.categories))
	copy(out, c.categories)
	return out
}

// Get looks up a category by id.
func (c *Catalog) Get(id string) (Category, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// Filter returns the categories whose ids are listed. An empty list means all.
// Unknown ids are ignored.
func (c *Catalog) Filter(ids []string) []Category {
	if len(ids) == 0 {
		return c.Categories()
	}
	out := make([]Category, 0, len(ids))
	for _, id := range ids {
		if cat, ok := c.Get(id); ok {
			out = append(out, cat)
		}
	}
	return out
}

// Summaries lists every category without words.
func (c *Catalog) Summaries() []CategorySummary {
	out := make([]CategorySummary, len(c.categories))
	for i, cat := range c.categories {
		out[i] = cat.Summary()
	}
	return out
}

// Len returns the number of categories.
func (c *Catalog) Len() int {
	return len(c.categories)
}
