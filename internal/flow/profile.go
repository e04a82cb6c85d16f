package flow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/engine"
	"github.com/serviceseeking/onboard/internal/enrich"
	"github.com/serviceseeking/onboard/internal/genai"
)

// handleProfile assembles the public profile draft: years in business from
// the registration date, a description draft from the generator, and a logo
// plus work photos mined from the business's website and social pages. The
// assembly runs once; later turns only interpret the owner's approval.
func (o *Orchestrator) handleProfile(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
	if sess.Flags.ProfileSaved {
		return Patch{}, nil
	}

	if o.overBudget(sess, domain.StepProfile) {
		profile := sess.Profile
		if profile.Description == "" {
			profile.Description = firstNonEmpty(profile.DescriptionDraft, o.fallbackDescription(sess))
		}
		return Patch{
			Profile:      &profile,
			ProfileSaved: flagTrue(),
			Text:         "I've saved the profile as-is - everything's editable from your dashboard.",
		}, nil
	}

	if !draftAssembled(sess.Profile) {
		profile := o.assembleProfile(ctx, sess)
		p := Patch{Profile: &profile}
		p.Text = o.presentProfile(sess, profile)
		p.QuickReplies = []domain.QuickReply{
			{Label: "Looks good, save it", Value: "yes"},
			{Label: "Change the description", Value: "change the description"},
		}
		return p, nil
	}

	// Draft already assembled: interpret the reply.
	profile := sess.Profile
	switch {
	case isAffirmative(text):
		if profile.Description == "" {
			profile.Description = firstNonEmpty(profile.DescriptionDraft, o.fallbackDescription(sess))
		}
		return Patch{
			Profile:      &profile,
			ProfileSaved: flagTrue(),
			Text:         "Profile saved.",
		}, nil
	case mentions(text, "change") || isNegative(text):
		return Patch{Text: "Sure - type the description you'd like, or tell me what to adjust."}, nil
	case len(strings.Fields(text)) >= 5:
		// A longer reply is the owner writing their own description.
		profile.Description = strings.TrimSpace(text)
		return Patch{
			Profile:      &profile,
			ProfileSaved: flagTrue(),
			Text:         "Updated and saved.",
		}, nil
	default:
		return Patch{Text: "Should I save the profile as drafted? You can also type a new description."}, nil
	}
}

func draftAssembled(p domain.ProfileDraft) bool {
	return p.DescriptionDraft != "" || p.Description != "" || p.Logo != "" || len(p.Photos) > 0
}

// assembleProfile mines the web for profile material. Every stage fails
// soft: a business with no discoverable website still gets a description
// and its years in business.
func (o *Orchestrator) assembleProfile(ctx context.Context, sess *domain.Session) domain.ProfileDraft {
	profile := sess.Profile
	profile.YearsInBusiness = yearsSince(sess.Identity.StartDate)

	if profile.Website == "" {
		if sess.Place != nil && sess.Place.Website != "" {
			profile.Website = sess.Place.Website
		} else if o.deps.Discover != nil {
			profile.Website = o.deps.Discover.DiscoverWebsite(ctx, sess.Identity.Name)
		}
	}
	if profile.FacebookURL == "" {
		profile.FacebookURL = engine.ExtractFacebookURL(sess.WebResults)
	}

	logos, assets := o.collectAssets(ctx, sess, profile)
	if profile.Logo == "" && len(logos) > 0 {
		profile.Logo = logos[0]
	}

	if len(profile.Photos) == 0 {
		profile.Photos = o.selectPhotos(ctx, sess, assets, profile.Logo)
	}

	if profile.DescriptionDraft == "" {
		profile.DescriptionDraft = o.draftDescription(ctx, sess)
	}
	return profile
}

// collectAssets scrapes the primary site, the facebook page, and the search
// thumbnails for logo and photo candidates.
func (o *Orchestrator) collectAssets(ctx context.Context, sess *domain.Session, profile domain.ProfileDraft) ([]string, []engine.RawAsset) {
	var logos []string
	var assets []engine.RawAsset

	if o.deps.Scraper != nil && profile.Website != "" {
		if scraped, err := o.deps.Scraper.Scrape(ctx, profile.Website); err == nil {
			logos = append(logos, scraped.Logos...)
			assets = append(assets, scraped.Assets...)
		} else {
			o.logger.Debug("site scrape failed", "url", profile.Website, "error", err)
		}
	}
	if o.deps.Scraper != nil && profile.FacebookURL != "" {
		social := o.deps.Scraper.ScrapeSocial(ctx, []string{profile.FacebookURL})
		logos = append(logos, social.Logos...)
		assets = append(assets, social.Assets...)
	}
	for _, r := range sess.WebResults {
		if r.Thumbnail != "" {
			assets = append(assets, engine.RawAsset{
				URL:    r.Thumbnail,
				Source: domain.AssetSourceThumbnail,
			})
		}
	}
	return logos, assets
}

// selectPhotos runs the scoring pipeline: rank, download, classify, filter,
// with the raw-size fallback guaranteeing a non-empty result whenever
// plausible large images exist.
func (o *Orchestrator) selectPhotos(ctx context.Context, sess *domain.Session, assets []engine.RawAsset, logo string) []string {
	h := o.deps.Heuristics
	ranked := engine.RankAssets(assets, logo, h)
	if len(ranked) == 0 || o.deps.Images == nil {
		return nil
	}

	urls := make([]string, len(ranked))
	for i, c := range ranked {
		urls[i] = c.URL
	}
	fetched := o.deps.Images.FetchAll(ctx, urls)
	if len(fetched) == 0 {
		return nil
	}

	verdicts := make(map[string]bool)
	if o.deps.Generator != nil && o.deps.Generator.Configured() {
		images := make([]genai.ClassifyImage, len(fetched))
		for i, f := range fetched {
			images[i] = genai.ClassifyImage{MediaType: f.MediaType, Data: f.Data}
		}
		labels, err := o.deps.Generator.Classify(ctx, images, o.tradeHint(sess))
		if err != nil {
			o.logger.Warn("vision classification failed", "session_id", sess.ID, "error", err)
		} else {
			for i, work := range labels {
				if i < len(fetched) {
					verdicts[fetched[i].URL] = work
				}
			}
		}
	}

	photos := engine.FilterAssets(ranked, verdicts, enrich.Downloads(fetched), h)
	if len(photos) > h.MaxPhotos {
		photos = photos[:h.MaxPhotos]
	}
	return photos
}

func (o *Orchestrator) tradeHint(sess *domain.Session) string {
	var placeName, placeType string
	if sess.Place != nil {
		placeName, placeType = sess.Place.Name, sess.Place.PrimaryType
	}
	if cat, ok := engine.ResolveTradeCategory(o.deps.Ref, sess.Services,
		sess.Identity.Name, sess.Licence.ActiveClassNames(), placeName, placeType); ok {
		return cat
	}
	return ""
}

// draftDescription asks the generator for a first-person profile blurb,
// falling back to a plain template.
func (o *Orchestrator) draftDescription(ctx context.Context, sess *domain.Session) string {
	fallback := o.fallbackDescription(sess)
	if o.deps.Generator == nil || !o.deps.Generator.Configured() {
		return fallback
	}

	var services []string
	for _, svc := range sess.Services {
		services = append(services, svc.SubcategoryName)
	}
	var reviewNote string
	if sess.Place != nil && sess.Place.Rating > 0 {
		reviewNote = fmt.Sprintf(" Google rating %.1f from %d reviews.", sess.Place.Rating, sess.Place.ReviewCount)
	}

	system := "Write a 2-3 sentence first-person profile description for an Australian trade business. " +
		"Plain text only, no JSON, no headings. Warm but factual; never invent credentials."
	user := fmt.Sprintf("Business: %s. Services: %s. Based in: %s. Years in business: %d.%s",
		sess.Identity.Name, strings.Join(services, ", "),
		sess.Area.BaseSuburb, yearsSince(sess.Identity.StartDate), reviewNote)

	reply, err := o.deps.Generator.Complete(ctx, system, []genai.Message{{Role: "user", Text: user}})
	if err != nil || strings.TrimSpace(reply) == "" {
		o.logger.Warn("description generation failed", "session_id", sess.ID, "error", err)
		return fallback
	}
	return strings.TrimSpace(reply)
}

func (o *Orchestrator) fallbackDescription(sess *domain.Session) string {
	trade := o.tradeHint(sess)
	if trade == "" {
		trade = "trade services"
	}
	years := yearsSince(sess.Identity.StartDate)
	base := sess.Area.BaseSuburb
	if base == "" {
		base = sess.Identity.State
	}

	desc := fmt.Sprintf("%s provides %s in and around %s.", sess.Identity.Name, strings.ToLower(trade), base)
	if years > 0 {
		desc += fmt.Sprintf(" In business for over %d years.", years)
	}
	return desc
}

func (o *Orchestrator) presentProfile(sess *domain.Session, profile domain.ProfileDraft) string {
	var b strings.Builder
	b.WriteString("Here's your profile draft:\n\n")
	fmt.Fprintf(&b, "**Description:** %s\n", firstNonEmpty(profile.DescriptionDraft, profile.Description))
	if profile.YearsInBusiness > 0 {
		fmt.Fprintf(&b, "**Years in business:** %d\n", profile.YearsInBusiness)
	}
	if profile.Website != "" {
		fmt.Fprintf(&b, "**Website:** %s\n", enrich.Hostname(profile.Website))
	}
	if profile.Logo != "" {
		b.WriteString("**Logo:** found one on your site\n")
	}
	if len(profile.Photos) > 0 {
		fmt.Fprintf(&b, "**Photos:** %d work photos picked from your site\n", len(profile.Photos))
	}
	b.WriteString("\nHappy with that?")
	return b.String()
}

var yearToken = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// yearsSince extracts the year from a registration date in any common
// format and returns full years elapsed, or 0.
func yearsSince(startDate string) int {
	m := yearToken.FindString(startDate)
	if m == "" {
		return 0
	}
	year := 0
	for _, r := range m {
		year = year*10 + int(r-'0')
	}
	years := time.Now().Year() - year
	if years < 0 {
		return 0
	}
	return years
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
