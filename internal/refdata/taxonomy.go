package refdata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Subcategory is one taxonomy leaf.
type Subcategory struct {
	ID   int    `json:"subcategory_id"`
	Name string `json:"subcategory_name"`
}

// Category is one taxonomy category with its subcategories in declared order.
type Category struct {
	Key     string
	Name    string        `json:"category_name"`
	ID      int           `json:"category_id"`
	Subcats []Subcategory `json:"subcategories"`
}

// rawSubcategory tolerates ids arriving as either numbers or strings.
type rawSubcategory struct {
	ID   json.Number `json:"subcategory_id"`
	Name string      `json:"subcategory_name"`
}

type rawCategory struct {
	Name    string           `json:"category_name"`
	ID      json.Number      `json:"category_id"`
	Subcats []rawSubcategory `json:"subcategories"`
}

const taxonomyFile = "subcategories.json"

func (s *Store) loadCategories() {
	s.catOnce.Do(func() {
		s.categories = make(map[string]Category)

		data, err := os.ReadFile(filepath.Join(s.dir, taxonomyFile))
		if err != nil {
			return
		}
		var raw map[string]rawCategory
		if err := json.Unmarshal(data, &raw); err != nil {
			return
		}
		for key, rc := range raw {
			cat := Category{Key: key, Name: rc.Name, ID: coerceID(rc.ID)}
			if cat.Name == "" {
				cat.Name = key
			}
			for _, rsc := range rc.Subcats {
				id := coerceID(rsc.ID)
				if id == 0 {
					continue
				}
				cat.Subcats = append(cat.Subcats, Subcategory{ID: id, Name: rsc.Name})
			}
			s.categories[key] = cat
			s.catOrder = append(s.catOrder, key)
		}
		sort.Strings(s.catOrder)
	})
}

func coerceID(n json.Number) int {
	v, err := strconv.Atoi(strings.TrimSpace(n.String()))
	if err != nil {
		return 0
	}
	return v
}

// Category returns the taxonomy category for the given key.
func (s *Store) Category(key string) (Category, bool) {
	s.loadCategories()
	c, ok := s.categories[key]
	return c, ok
}

// Categories returns every category key in stable order.
func (s *Store) Categories() []string {
	s.loadCategories()
	return s.catOrder
}

// FindSubcategory locates a subcategory by name, trying exact match first
// and then containment in either direction, case-insensitively. Exact
// matches beat containment so "Plumber" never lands on "Emergency Plumber".
func (s *Store) FindSubcategory(name string) (Category, Subcategory, bool) {
	s.loadCategories()
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return Category{}, Subcategory{}, false
	}

	var partialCat Category
	var partialSub Subcategory
	found := false
	for _, key := range s.catOrder {
		cat := s.categories[key]
		for _, sc := range cat.Subcats {
			scLower := strings.ToLower(sc.Name)
			if scLower == needle {
				return cat, sc, true
			}
			if !found && (strings.Contains(scLower, needle) || strings.Contains(needle, scLower)) {
				partialCat, partialSub, found = cat, sc, true
			}
		}
	}
	return partialCat, partialSub, found
}

// TaxonomyText renders the full taxonomy as text for generator prompts.
func (s *Store) TaxonomyText() string {
	s.loadCategories()
	if len(s.categories) == 0 {
		return "Category taxonomy not available."
	}

	var b strings.Builder
	for _, key := range s.catOrder {
		cat := s.categories[key]
		if len(cat.Subcats) == 0 {
			fmt.Fprintf(&b, "%s (id: %d)\n", cat.Name, cat.ID)
			continue
		}
		fmt.Fprintf(&b, "%s (id: %d):\n", cat.Name, cat.ID)
		for _, sc := range cat.Subcats {
			fmt.Fprintf(&b, "  - %s (id: %d)\n", sc.Name, sc.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// RelevantTaxonomy trims the taxonomy text down to the given categories,
// for follow-up prompts that only need to look up ids. Falls back to a
// truncated full taxonomy when nothing matches.
func (s *Store) RelevantTaxonomy(categoryNames []string, maxLen int) string {
	full := s.TaxonomyText()
	if len(categoryNames) == 0 {
		return truncate(full, maxLen)
	}

	var relevant []string
	include := false
	for _, line := range strings.Split(full, "\n") {
		if !strings.HasPrefix(line, "  -") {
			include = false
			for _, cat := range categoryNames {
				if cat != "" && strings.Contains(strings.ToLower(line), strings.ToLower(cat)) {
					include = true
					break
				}
			}
		}
		if include {
			relevant = append(relevant, line)
		}
	}
	if len(relevant) == 0 {
		return truncate(full, maxLen)
	}
	return strings.Join(relevant, "\n")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
