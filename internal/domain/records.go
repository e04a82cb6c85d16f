package domain

// RegistryRecord is one business register match.
type RegistryRecord struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	EntityType    string `json:"entity_type"`
	TaxRegistered bool   `json:"tax_registered"`
	State         string `json:"state"`
	Postcode      string `json:"postcode"`
	Status        string `json:"status"`
	StartDate     string `json:"start_date,omitempty"`
}

// IdentityRecord holds the verified business identity plus the pending
// register candidates while verification is still in flight.
type IdentityRecord struct {
	RawInput      string           `json:"raw_input,omitempty"`
	Name          string           `json:"name"`
	BusinessID    string           `json:"business_id"`
	EntityType    string           `json:"entity_type"`
	TaxRegistered bool             `json:"tax_registered"`
	State         string           `json:"state"`
	Postcode      string           `json:"postcode"`
	StartDate     string           `json:"start_date,omitempty"`
	Candidates    []RegistryRecord `json:"candidates,omitempty"`
}

// Party is a person or entity associated with a licence.
type Party struct {
	Name      string `json:"name"`
	Role      string `json:"role"`
	PartyType string `json:"party_type"`
}

// LicenceClass is one trade class on a licence.
type LicenceClass struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// LicenceCandidate is one browse result from the trade licence register.
type LicenceCandidate struct {
	LicenceID     string `json:"licence_id"`
	Licensee      string `json:"licensee"`
	LicenceNumber string `json:"licence_number"`
	LicenceType   string `json:"licence_type"`
	Status        string `json:"status"`
	Suburb        string `json:"suburb"`
	Postcode      string `json:"postcode"`
	ExpiryDate    string `json:"expiry_date"`
}

// LicenceRecord is the detailed licence attached to a session's identity.
// At most one best match is attached at a time.
type LicenceRecord struct {
	Licensee        string         `json:"licensee"`
	LicenceNumber   string         `json:"licence_number"`
	LicenceType     string         `json:"licence_type"`
	Status          string         `json:"status"`
	StartDate       string         `json:"start_date"`
	ExpiryDate      string         `json:"expiry_date"`
	Classes         []LicenceClass `json:"classes"`
	ComplianceClean bool           `json:"compliance_clean"`
	Parties         []Party        `json:"associated_parties"`
}

// ActiveClassNames returns the names of the licence's active classes.
func (l *LicenceRecord) ActiveClassNames() []string {
	if l == nil {
		return nil
	}
	var names []string
	for _, c := range l.Classes {
		if c.Active {
			names = append(names, c.Name)
		}
	}
	return names
}

// MappedService is one service mapped onto the category taxonomy.
// Uniqueness is by SubcategoryID within a session.
type MappedService struct {
	Input           string  `json:"input"`
	CategoryName    string  `json:"category_name"`
	CategoryID      int     `json:"category_id"`
	SubcategoryName string  `json:"subcategory_name"`
	SubcategoryID   int     `json:"subcategory_id"`
	Confidence      float64 `json:"confidence,omitempty"`
}

// GapEntry is a taxonomy subcategory not yet present among a session's
// mapped services for the resolved trade category.
type GapEntry struct {
	SubcategoryID   int    `json:"subcategory_id"`
	SubcategoryName string `json:"subcategory_name"`
	CategoryID      int    `json:"category_id"`
	CategoryName    string `json:"category_name"`
}

// CoverageArea describes where a business works. RegionsIncluded and
// RegionsExcluded are disjoint; a region in neither set is undecided.
type CoverageArea struct {
	BaseSuburb      string   `json:"base_suburb"`
	BasePostcode    string   `json:"base_postcode"`
	BaseLat         float64  `json:"base_lat"`
	BaseLng         float64  `json:"base_lng"`
	RadiusKm        float64  `json:"radius_km"`
	RegionsIncluded []string `json:"regions_included"`
	RegionsExcluded []string `json:"regions_excluded"`
	Barriers        []string `json:"barriers,omitempty"`
	TravelNotes     string   `json:"travel_notes,omitempty"`
}

// SearchResult is one web search hit.
type SearchResult struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail,omitempty"`
}

// Review is one review snippet from a place profile.
type Review struct {
	Text   string  `json:"text"`
	Rating float64 `json:"rating"`
}

// PlaceProfile is a business profile from the place search collaborator.
type PlaceProfile struct {
	Name        string   `json:"name"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Website     string   `json:"website"`
	MapsURL     string   `json:"maps_url,omitempty"`
	Address     string   `json:"address,omitempty"`
	Reviews     []Review `json:"reviews,omitempty"`
	PrimaryType string   `json:"primary_type"`
}

// AssetSource categorizes where an asset candidate came from.
type AssetSource string

const (
	AssetSourcePrimarySite AssetSource = "primary-site"
	AssetSourceSocial      AssetSource = "social"
	AssetSourceThumbnail   AssetSource = "search-thumbnail"
)

// AssetCandidate is a scored image URL considered for the profile gallery.
type AssetCandidate struct {
	URL    string      `json:"url"`
	Score  int         `json:"score"`
	Source AssetSource `json:"source"`
}

// ProfileDraft is the assembled business profile.
type ProfileDraft struct {
	YearsInBusiness  int      `json:"years_in_business"`
	Description      string   `json:"description"`
	DescriptionDraft string   `json:"description_draft,omitempty"`
	Logo             string   `json:"logo"`
	Photos           []string `json:"photos"`
	Website          string   `json:"website,omitempty"`
	FacebookURL      string   `json:"facebook_url,omitempty"`
}

// PlanSelection records the chosen subscription plan.
type PlanSelection struct {
	Plan    string `json:"plan"`    // "standard" | "plus" | "pro" | "skip"
	Billing string `json:"billing"` // "monthly" | "quarterly" | "annual"
	Price   string `json:"price"`   // e.g. "$79/mo"
	Shown   bool   `json:"shown"`
}

// QuickReply is a tappable reply option offered alongside a response.
type QuickReply struct {
	Label string `json:"label"`
	Value string `json:"value"`
}
