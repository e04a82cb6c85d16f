// Package engine holds the deterministic decision engines: the taxonomy gap
// resolver, the identity/licence matcher, and the asset candidate scorer.
// Everything here is a pure function over its inputs plus the reference
// data store.
package engine

import (
	"strings"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/refdata"
)

// ResolveTradeCategory resolves a single trade category from the available
// signals, in strict priority order, stopping at the first hit:
//
//  1. majority category among already-mapped services (ties by first seen)
//  2. keyword match against the free-text business name
//  3. keyword match against licence class names
//  4. keyword match against the external profile name
//  5. keyword match against the external profile type
//
// The boolean is false when no source resolves a category; callers then fall
// back to full-taxonomy mode.
func ResolveTradeCategory(ref *refdata.Store, services []domain.MappedService,
	businessName string, licenceClasses []string, profileName, profileType string) (string, bool) {

	// Majority vote over mapped services avoids mismatches for multi-trade
	// businesses, e.g. licence says electrician but every mapped service
	// is plumbing.
	if key, ok := majorityCategory(ref, services); ok {
		return key, true
	}
	if key, ok := matchTradeKeyword(ref, businessName); ok {
		return key, true
	}
	for _, class := range licenceClasses {
		if key, ok := matchTradeKeyword(ref, class); ok {
			return key, true
		}
	}
	if key, ok := matchTradeKeyword(ref, profileName); ok {
		return key, true
	}
	if key, ok := matchTradeKeyword(ref, profileType); ok {
		return key, true
	}
	return "", false
}

// Gaps returns every subcategory of the resolved trade category not yet
// present among the mapped services, in the category's declared order.
// An empty list with no resolved category means full-taxonomy mode.
func Gaps(ref *refdata.Store, services []domain.MappedService,
	businessName string, licenceClasses []string, profileName, profileType string) []domain.GapEntry {

	key, ok := ResolveTradeCategory(ref, services, businessName, licenceClasses, profileName, profileType)
	if !ok {
		return nil
	}
	cat, ok := ref.Category(key)
	if !ok {
		return nil
	}

	mapped := make(map[int]bool, len(services))
	for _, svc := range services {
		if svc.SubcategoryID != 0 {
			mapped[svc.SubcategoryID] = true
		}
	}

	var gaps []domain.GapEntry
	for _, sc := range cat.Subcats {
		if mapped[sc.ID] {
			continue
		}
		gaps = append(gaps, domain.GapEntry{
			SubcategoryID:   sc.ID,
			SubcategoryName: sc.Name,
			CategoryID:      cat.ID,
			CategoryName:    cat.Name,
		})
	}
	return gaps
}

func majorityCategory(ref *refdata.Store, services []domain.MappedService) (string, bool) {
	counts := make(map[string]int)
	firstSeen := make(map[string]int)
	for i, svc := range services {
		cn := svc.CategoryName
		if cn == "" {
			continue
		}
		counts[cn]++
		if _, ok := firstSeen[cn]; !ok {
			firstSeen[cn] = i
		}
	}
	best, bestCount := "", 0
	for cn, n := range counts {
		if n > bestCount || (n == bestCount && firstSeen[cn] < firstSeen[best]) {
			best, bestCount = cn, n
		}
	}
	if best == "" {
		return "", false
	}
	if _, ok := ref.Category(best); !ok {
		return "", false
	}
	return best, true
}

func matchTradeKeyword(ref *refdata.Store, text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, entry := range ref.TradeKeywords() {
		if strings.Contains(lower, entry.Keyword) {
			return entry.Category, true
		}
	}
	return "", false
}
