package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/genai"
	"github.com/serviceseeking/onboard/internal/refdata"
)

// handleArea maps the coverage area: suburbs within the configured radius
// of the verified postcode, grouped into regions the owner includes or
// excludes. The base fields are backfilled from reference data, so this
// step can run concurrently with the services step.
func (o *Orchestrator) handleArea(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
	if sess.Flags.AreaConfirmed {
		return Patch{}, nil
	}

	area, groups := o.baseArea(sess)
	regions := groups.RegionNames()

	if o.overBudget(sess, domain.StepArea) {
		area.RegionsIncluded = includableRegions(regions, area.RegionsExcluded)
		return Patch{
			Area:          &area,
			AreaConfirmed: flagTrue(),
			Text:          "I've set your service area to everywhere within range - trim it from your dashboard whenever you like.",
		}, nil
	}

	if len(regions) == 0 {
		// No geography data for this postcode: fall back to a plain travel
		// note instead of region picking.
		return o.areaWithoutRegions(sess, area, text), nil
	}

	// First invocation (often the concurrent branch of the services
	// fan-out): present the region question.
	if sess.Turns[domain.StepArea] <= 1 || text == "" {
		return o.askArea(area, groups, regions), nil
	}

	if o.deps.Generator != nil && o.deps.Generator.Configured() {
		if p, ok := o.generateArea(ctx, sess, area, regions, text); ok {
			return p, nil
		}
	}
	return o.interpretArea(area, regions, text), nil
}

// baseArea returns the session's coverage area with the base location
// backfilled from the identity postcode, plus the radius grouping around it.
func (o *Orchestrator) baseArea(sess *domain.Session) (domain.CoverageArea, refdata.RadiusGroups) {
	area := sess.Area
	postcode := area.BasePostcode
	if postcode == "" {
		postcode = sess.Identity.Postcode
	}

	h := o.deps.Heuristics
	groups := o.deps.Ref.GroupedRadius(postcode, h.RadiusKm, h.MinRegionSize)
	if area.BaseSuburb == "" {
		area.BaseSuburb = groups.BaseSuburb
		area.BasePostcode = postcode
		area.BaseLat = groups.BaseLat
		area.BaseLng = groups.BaseLng
		area.RadiusKm = h.RadiusKm
	}
	return area, groups
}

func (o *Orchestrator) askArea(area domain.CoverageArea, groups refdata.RadiusGroups, regions []string) Patch {
	p := Patch{Area: &area}
	p.Text = fmt.Sprintf("For your service area, I found %d suburbs within %.0f km of %s. "+
		"They fall into these regions - which do you cover?",
		groups.Total, area.RadiusKm, area.BaseSuburb)
	for _, r := range regions {
		label := fmt.Sprintf("%s (%d suburbs)", r, len(groups.ByArea[r]))
		p.QuickReplies = append(p.QuickReplies, domain.QuickReply{Label: label, Value: r})
	}
	p.QuickReplies = append(p.QuickReplies, domain.QuickReply{Label: "All of these", Value: "all of these"})
	return p
}

func (o *Orchestrator) generateArea(ctx context.Context, sess *domain.Session, area domain.CoverageArea, regions []string, text string) (Patch, bool) {
	system := "You interpret which regions an Australian trade business covers.\n" +
		"Reply with JSON only: {\"response\": string, \"service_areas\": [region names from the list], \"step_complete\": bool}.\n" +
		"Only use region names from the provided list. Set step_complete true once coverage is settled.\n\n" +
		"Regions: " + strings.Join(regions, ", ")
	if guide := o.deps.Ref.RegionalGuide(groupState(sess)); guide != "" {
		system += "\n\nLocal geography notes:\n" + guide
	}

	user := fmt.Sprintf("Base: %s %s. Currently included: %s. Owner's reply: %s",
		area.BaseSuburb, area.BasePostcode, strings.Join(area.RegionsIncluded, ", "), text)
	// The reply is usually an answer to whatever was asked last turn.
	if prev := sess.LastAssistantMessage(); prev != "" {
		user = "Question asked: " + prev + "\n" + user
	}

	started := time.Now()
	reply, err := o.deps.Generator.Complete(ctx, system, []genai.Message{{Role: "user", Text: user}})
	p := Patch{}
	trace(&p, "generator.area", started, fmt.Sprintf("%d chars", len(reply)))
	if err != nil {
		o.logger.Warn("area generation failed", "session_id", sess.ID, "error", err)
		return Patch{}, false
	}

	suggestion := genai.ParseSuggestion(reply)
	if !suggestion.Structured {
		p.Text = suggestion.Response
		return p, true
	}

	included := validRegions(suggestion.ServiceAreas, regions)
	if len(included) > 0 {
		area.RegionsIncluded = included
	}
	p.Area = &area
	p.Text = suggestion.Response
	if len(suggestion.Buttons) > 0 {
		p.QuickReplies = suggestion.Buttons
	}
	if suggestion.StepComplete && len(area.RegionsIncluded) > 0 {
		p.AreaConfirmed = flagTrue()
		if p.Text == "" {
			p.Text = areaConfirmedText(area)
		}
	}
	return p, true
}

// interpretArea is the deterministic path: "all", region names mentioned
// directly, and "except <region>" exclusions.
func (o *Orchestrator) interpretArea(area domain.CoverageArea, regions []string, text string) Patch {
	p := Patch{}

	lower := strings.ToLower(text)
	var excluded []string
	if i := strings.Index(lower, "except"); i >= 0 {
		for _, r := range regions {
			if mentions(text[i:], r) {
				excluded = append(excluded, r)
			}
		}
	}

	var included []string
	switch {
	case strings.EqualFold(strings.TrimSpace(text), "all") || mentions(text, "all of these"):
		included = regions
	default:
		exceptFrom := len(text)
		if i := strings.Index(lower, "except"); i >= 0 {
			exceptFrom = i
		}
		for _, r := range regions {
			if mentions(text[:exceptFrom], r) {
				included = append(included, r)
			}
		}
	}

	if len(included) == 0 && len(excluded) == 0 {
		p.Text = "Which of those regions do you cover? You can name a few, or say \"all of these\"."
		return p
	}

	area.RegionsIncluded = included
	area.RegionsExcluded = mergeRegions(area.RegionsExcluded, excluded)
	area.TravelNotes = text
	p.Area = &area
	if len(area.RegionsIncluded) > 0 {
		p.AreaConfirmed = flagTrue()
		p.Text = areaConfirmedText(area)
	} else {
		p.Text = "Got it. And which regions do you cover?"
	}
	return p
}

// areaWithoutRegions handles postcodes the suburb database cannot group:
// the radius around the base becomes the whole answer.
func (o *Orchestrator) areaWithoutRegions(sess *domain.Session, area domain.CoverageArea, text string) Patch {
	if sess.Turns[domain.StepArea] <= 1 || text == "" {
		return Patch{
			Area: &area,
			Text: fmt.Sprintf("How far do you usually travel for work from %s?",
				orPostcode(area.BaseSuburb, area.BasePostcode)),
		}
	}
	area.TravelNotes = text
	return Patch{
		Area:          &area,
		AreaConfirmed: flagTrue(),
		Text:          "Noted - I've saved that as your service area.",
	}
}

func orPostcode(suburb, postcode string) string {
	if suburb != "" {
		return suburb
	}
	return "postcode " + postcode
}

func areaConfirmedText(area domain.CoverageArea) string {
	return fmt.Sprintf("Service area saved: %s within %.0f km of %s.",
		strings.Join(area.RegionsIncluded, ", "), area.RadiusKm, area.BaseSuburb)
}

// mergeRegions appends names not already present, preserving order, so a
// repeated exclusion never accumulates duplicates across turns.
func mergeRegions(existing, more []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, r := range existing {
		seen[r] = true
	}
	for _, r := range more {
		if !seen[r] {
			seen[r] = true
			existing = append(existing, r)
		}
	}
	return existing
}

func includableRegions(regions, excluded []string) []string {
	if len(excluded) == 0 {
		return regions
	}
	ex := make(map[string]bool, len(excluded))
	for _, r := range excluded {
		ex[r] = true
	}
	var out []string
	for _, r := range regions {
		if !ex[r] {
			out = append(out, r)
		}
	}
	return out
}

func validRegions(names, regions []string) []string {
	known := make(map[string]string, len(regions))
	for _, r := range regions {
		known[strings.ToLower(r)] = r
	}
	var out []string
	seen := make(map[string]bool)
	for _, n := range names {
		if r, ok := known[strings.ToLower(strings.TrimSpace(n))]; ok && !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

func groupState(sess *domain.Session) string {
	return sess.Identity.State
}
