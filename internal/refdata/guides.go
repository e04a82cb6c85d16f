package refdata

import (
	"os"
	"path/filepath"
	"strings"
)

// stateGuides maps state codes to the city whose regional guide applies.
var stateGuides = map[string]string{
	"NSW": "sydney",
	"VIC": "melbourne",
	"QLD": "brisbane",
	"WA":  "perth",
}

// tradeGuides maps business-name keywords to subcategory guide files,
// first match wins.
var tradeGuides = []struct {
	keyword string
	files   []string
}{
	{"plumb", []string{"plumber-subcategory-guide.md", "plumbing_subcategories.md"}},
	{"paint", []string{"painter_subcategories.md"}},
	{"electri", []string{"electrician-subcategory-guide.md", "electrical_subcategories.md"}},
	{"clean", []string{"cleaner-subcategory-guide.md"}},
	{"garden", []string{"gardener-subcategory-guide.md"}},
	{"carpent", []string{"carpentry_subcategories.md"}},
	{"build", []string{"carpentry_subcategories.md"}},
}

// RegionalGuide returns the regional guide document for a state code
// (barriers, corridors, congestion zones), or "" when none exists.
func (s *Store) RegionalGuide(stateCode string) string {
	city, ok := stateGuides[strings.ToUpper(stateCode)]
	if !ok {
		return ""
	}
	return s.readGuide(city + "_regions.md")
}

// SubcategoryGuide returns the trade guide matching the business name's
// trade keyword, or "" when no guide applies.
func (s *Store) SubcategoryGuide(businessName string) string {
	nameLower := strings.ToLower(businessName)
	for _, tg := range tradeGuides {
		if !strings.Contains(nameLower, tg.keyword) {
			continue
		}
		for _, fname := range tg.files {
			if content := s.readGuide(fname); content != "" {
				return content
			}
		}
	}
	return ""
}

func (s *Store) readGuide(fname string) string {
	s.guideMu.Lock()
	defer s.guideMu.Unlock()

	if cached, ok := s.guideCache[fname]; ok {
		return cached
	}
	data, err := os.ReadFile(filepath.Join(s.dir, fname))
	content := ""
	if err == nil {
		content = string(data)
	}
	s.guideCache[fname] = content
	return content
}
