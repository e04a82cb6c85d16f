package engine

import (
	"regexp"
	"strings"

	"github.com/serviceseeking/onboard/internal/domain"
)

// QueryKind classifies an identity query.
type QueryKind string

const (
	QueryNumericID QueryKind = "numeric_id"
	QueryFreeText  QueryKind = "free_text"
)

// Query is a parsed identity search input.
type Query struct {
	Kind         QueryKind
	Term         string
	PostcodeHint string
}

var trailingPostcode = regexp.MustCompile(`\b(\d{4})\s*$`)

// ResolveQuery classifies raw input as a numeric identifier when, after
// removing spaces, it is all digits and at least minIDDigits long.
// Otherwise it detects a trailing 4-digit postcode hint and treats the
// remainder as the search term.
func ResolveQuery(raw string, minIDDigits int) Query {
	trimmed := strings.TrimSpace(raw)
	compact := strings.ReplaceAll(trimmed, " ", "")

	if len(compact) >= minIDDigits && isAllDigits(compact) {
		return Query{Kind: QueryNumericID, Term: compact}
	}

	q := Query{Kind: QueryFreeText, Term: trimmed}
	if m := trailingPostcode.FindStringSubmatchIndex(trimmed); m != nil {
		q.PostcodeHint = trimmed[m[2]:m[3]]
		q.Term = strings.TrimSpace(trimmed[:m[0]])
	}
	return q
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Disambiguate applies the postcode auto-disambiguation rule. With a hint,
// a filtered set of exactly one is auto-selected; more than one narrows the
// displayed list; zero shows the unfiltered list. Without a hint the full
// list is returned for the user to choose from.
func Disambiguate(candidates []domain.RegistryRecord, postcodeHint string) (*domain.RegistryRecord, []domain.RegistryRecord) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if postcodeHint == "" {
		// Even a single register match needs user confirmation;
		// only a postcode hint auto-selects.
		return nil, candidates
	}

	var filtered []domain.RegistryRecord
	for _, c := range candidates {
		if c.Postcode == postcodeHint {
			filtered = append(filtered, c)
		}
	}
	switch len(filtered) {
	case 1:
		return &filtered[0], filtered
	case 0:
		return nil, candidates
	default:
		return nil, filtered
	}
}

// BestLicenceMatch picks the licence to attach: first pass prefers a
// "Current" licence whose licensee name and the business name contain one
// another (case-insensitive, either direction); second pass takes the first
// "Current" licence regardless of name.
func BestLicenceMatch(candidates []domain.LicenceCandidate, name string) (domain.LicenceCandidate, bool) {
	nameLower := strings.ToLower(name)
	for _, c := range candidates {
		if c.Status != "Current" {
			continue
		}
		licensee := strings.ToLower(c.Licensee)
		if licensee == "" {
			continue
		}
		if strings.Contains(nameLower, licensee) || strings.Contains(licensee, nameLower) {
			return c, true
		}
	}
	for _, c := range candidates {
		if c.Status == "Current" {
			return c, true
		}
	}
	return domain.LicenceCandidate{}, false
}

// contactRoles are the licence roles that identify the business contact.
var contactRoles = map[string]bool{
	"Director":             true,
	"Nominated Supervisor": true,
	"Partner":              true,
	"Sole Trader":          true,
}

// ContactFromParties returns the first individual associated party holding
// one of the contact roles, or "".
func ContactFromParties(parties []domain.Party) string {
	for _, p := range parties {
		if p.PartyType == "Individual" && contactRoles[p.Role] {
			return p.Name
		}
	}
	return ""
}

// auPhone matches 1300/1800 numbers, mobiles, and bracketed landlines.
var auPhone = regexp.MustCompile(`(?:1[38]00\s?\d{3}\s?\d{3}|0[24]\d{2}\s?\d{3}\s?\d{3}|\(0\d\)\s?\d{4}\s?\d{4})`)

// PhoneFromResults scans search result descriptions for the first phone
// number, checking at most limit results.
func PhoneFromResults(results []domain.SearchResult, limit int) string {
	for i, r := range results {
		if limit > 0 && i >= limit {
			break
		}
		if m := auPhone.FindString(r.Description); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return ""
}
