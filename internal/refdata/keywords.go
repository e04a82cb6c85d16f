package refdata

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// KeywordEntry maps a trade keyword to a taxonomy category key. Entries are
// checked in order; the first keyword found in the input wins.
type KeywordEntry struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

const keywordsFile = "trade_keywords.json"

// defaultKeywords is the built-in keyword table, used when the resources
// directory does not carry an override.
var defaultKeywords = []KeywordEntry{
	{"electri", "Electrician"},
	{"plumb", "Plumber"},
	{"paint", "Painter"},
	{"clean", "Cleaner"},
	{"garden", "Gardener"},
	{"landscap", "Landscaper"},
	{"carpent", "Carpenter"},
	{"build", "Builder"},
	{"roof", "Roofer"},
	{"tile", "Tiler"},
	{"concret", "Concreter"},
	{"fenc", "Fencing & Gate Company"},
	{"glass", "Glass Repair Company"},
	{"locksmith", "Locksmith"},
	{"handyman", "Handyman"},
	{"plaster", "Plasterer"},
	{"brick", "Bricklayer"},
	{"render", "Rendering Company"},
	{"pool", "Pool & Spa Company"},
	{"solar", "Solar Company"},
	{"air con", "Air Conditioning & Heating Technician"},
	{"hvac", "Air Conditioning & Heating Technician"},
	{"pest", "Exterminator"},
	{"waterproof", "Waterproofing Company"},
	{"insul", "Insulation Company"},
	{"floor", "Flooring Company"},
	{"kitchen", "Kitchen Renovation Company"},
	{"bathroom", "Bathroom Renovation Company"},
	{"secur", "Security Company"},
	{"gas fit", "Gas Fitter"},
}

// TradeKeywords returns the keyword table, loading an override from the
// resources directory when present.
func (s *Store) TradeKeywords() []KeywordEntry {
	s.kwOnce.Do(func() {
		s.keywords = defaultKeywords
		data, err := os.ReadFile(filepath.Join(s.dir, keywordsFile))
		if err != nil {
			return
		}
		var override []KeywordEntry
		if err := json.Unmarshal(data, &override); err == nil && len(override) > 0 {
			s.keywords = override
		}
	})
	return s.keywords
}
