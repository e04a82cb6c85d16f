package flow

import (
	"fmt"
	"strings"

	"github.com/serviceseeking/onboard/internal/domain"
)

// finalize builds the structured result once every flag is set. The result
// is built at most once per session; re-entering the terminal step only
// restates that onboarding is complete.
func (o *Orchestrator) finalize(sess *domain.Session) string {
	if sess.Result != nil {
		return "You're all set! Your onboarding is complete. Anything else can be changed from your dashboard."
	}

	sess.Result = buildResult(sess)
	o.logger.Info("onboarding complete", "session_id", sess.ID,
		"business", sess.Result.BusinessName, "services", len(sess.Services))

	name := sess.ContactName
	if name == "" {
		name = "there"
	}
	return fmt.Sprintf("That's everything, %s! **%s** is live on ServiceSeeking: "+
		"%d services, covering %s. Leads matching your services will start landing in your inbox.",
		firstWord(name), sess.Result.BusinessName, countSubcats(sess.Result.Services),
		coverageSummary(sess.Result.Area))
}

// buildResult projects the session into the final structured record:
// services grouped by category in first-appearance order, a compact
// licence summary, and the rest verbatim.
func buildResult(sess *domain.Session) *domain.Result {
	result := &domain.Result{
		BusinessName:  sess.Identity.Name,
		BusinessID:    sess.Identity.BusinessID,
		EntityType:    sess.Identity.EntityType,
		TaxRegistered: sess.Identity.TaxRegistered,
		Area:          sess.Area,
		ContactName:   sess.ContactName,
		ContactPhone:  sess.ContactPhone,
		Profile:       sess.Profile,
		Plan:          sess.Plan,
	}

	if l := sess.Licence; l != nil {
		result.Licence = &domain.LicenceSummary{
			Number:  l.LicenceNumber,
			Type:    l.LicenceType,
			Status:  l.Status,
			Expiry:  l.ExpiryDate,
			Classes: l.ActiveClassNames(),
		}
	}

	index := make(map[int]int)
	for _, svc := range sess.Services {
		i, seen := index[svc.CategoryID]
		if !seen {
			i = len(result.Services)
			index[svc.CategoryID] = i
			result.Services = append(result.Services, domain.ServiceCategory{
				Category:   svc.CategoryName,
				CategoryID: svc.CategoryID,
			})
		}
		result.Services[i].Subcats = append(result.Services[i].Subcats, domain.FinalizedSubcat{
			Name: svc.SubcategoryName,
			ID:   svc.SubcategoryID,
		})
	}
	return result
}

func countSubcats(categories []domain.ServiceCategory) int {
	n := 0
	for _, c := range categories {
		n += len(c.Subcats)
	}
	return n
}

func coverageSummary(area domain.CoverageArea) string {
	if len(area.RegionsIncluded) > 0 {
		return strings.Join(area.RegionsIncluded, ", ")
	}
	if area.BaseSuburb != "" {
		return fmt.Sprintf("%.0f km around %s", area.RadiusKm, area.BaseSuburb)
	}
	return "your area"
}

func firstWord(s string) string {
	if fields := strings.Fields(s); len(fields) > 0 {
		return fields[0]
	}
	return s
}
