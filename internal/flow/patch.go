package flow

import (
	"github.com/serviceseeking/onboard/internal/domain"
)

// Patch is a step handler's proposed update to the session. Nil pointer
// fields mean "unchanged"; flag pointers are tri-state so a handler can
// leave a flag alone, set it, or (for explicit edit actions) clear it.
// Only the orchestrator merges patches, which keeps every state mutation
// in one auditable place.
type Patch struct {
	Text         string
	QuickReplies []domain.QuickReply

	Identity *domain.IdentityRecord
	Licence  *domain.LicenceRecord
	Services []domain.MappedService
	Area     *domain.CoverageArea
	Profile  *domain.ProfileDraft
	Plan     *domain.PlanSelection
	Result   *domain.Result

	ContactName  string
	ContactPhone string
	WebResults   []domain.SearchResult
	Place        *domain.PlaceProfile

	IdentityConfirmed *bool
	ServicesConfirmed *bool
	AreaConfirmed     *bool
	ProfileSaved      *bool
	PlanChosen        *bool

	Trace []domain.TraceEntry
}

func flagTrue() *bool  { t := true; return &t }
func flagFalse() *bool { f := false; return &f }

// merge applies a patch to the session. Services are deduplicated by
// subcategory id, the coverage area's include/exclude sets are forced
// disjoint (an exclusion wins over an earlier inclusion), and flags only
// move when the patch carries an explicit value.
func merge(sess *domain.Session, p Patch) {
	if p.Identity != nil {
		sess.Identity = *p.Identity
	}
	if p.Licence != nil {
		sess.Licence = p.Licence
	}
	if len(p.Services) > 0 {
		sess.Services = mergeServices(sess.Services, p.Services)
	}
	if p.Area != nil {
		sess.Area = sanitizeArea(*p.Area)
	}
	if p.Profile != nil {
		sess.Profile = *p.Profile
	}
	if p.Plan != nil {
		sess.Plan = *p.Plan
	}
	if p.Result != nil {
		sess.Result = p.Result
	}
	if p.ContactName != "" {
		sess.ContactName = p.ContactName
	}
	if p.ContactPhone != "" {
		sess.ContactPhone = p.ContactPhone
	}
	if len(p.WebResults) > 0 {
		sess.WebResults = p.WebResults
	}
	if p.Place != nil {
		sess.Place = p.Place
	}

	if p.IdentityConfirmed != nil {
		sess.Flags.IdentityConfirmed = *p.IdentityConfirmed
	}
	if p.ServicesConfirmed != nil {
		sess.Flags.ServicesConfirmed = *p.ServicesConfirmed
	}
	if p.AreaConfirmed != nil {
		sess.Flags.AreaConfirmed = *p.AreaConfirmed
	}
	if p.ProfileSaved != nil {
		sess.Flags.ProfileSaved = *p.ProfileSaved
	}
	if p.PlanChosen != nil {
		sess.Flags.PlanChosen = *p.PlanChosen
	}

	if len(p.QuickReplies) > 0 {
		sess.QuickReplies = p.QuickReplies
	}
	sess.Trace = append(sess.Trace, p.Trace...)
}

// mergeServices appends new services, collapsing duplicates by subcategory
// id. Existing entries keep their position; an incoming duplicate refreshes
// the existing entry's confidence when higher.
func mergeServices(existing, incoming []domain.MappedService) []domain.MappedService {
	byID := make(map[int]int, len(existing))
	for i, svc := range existing {
		if svc.SubcategoryID != 0 {
			byID[svc.SubcategoryID] = i
		}
	}
	for _, svc := range incoming {
		if svc.SubcategoryID == 0 {
			continue
		}
		if i, seen := byID[svc.SubcategoryID]; seen {
			if svc.Confidence > existing[i].Confidence {
				existing[i].Confidence = svc.Confidence
			}
			continue
		}
		byID[svc.SubcategoryID] = len(existing)
		existing = append(existing, svc)
	}
	return existing
}

// sanitizeArea enforces the disjointness invariant on the region sets:
// a region named in both lists stays excluded.
func sanitizeArea(area domain.CoverageArea) domain.CoverageArea {
	if len(area.RegionsIncluded) == 0 || len(area.RegionsExcluded) == 0 {
		return area
	}
	excluded := make(map[string]bool, len(area.RegionsExcluded))
	for _, r := range area.RegionsExcluded {
		excluded[r] = true
	}
	var included []string
	for _, r := range area.RegionsIncluded {
		if !excluded[r] {
			included = append(included, r)
		}
	}
	area.RegionsIncluded = included
	return area
}
