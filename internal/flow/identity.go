package flow

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/engine"
)

const welcomeText = "G'day! Let's get your business set up. " +
	"What's your business name or ABN? Adding your suburb's postcode helps me find the right one, " +
	"e.g. \"Dans Plumbing 2155\"."

// handleIdentity verifies the business against the register: parse the
// query, search, disambiguate (auto-confirming on a unique postcode match),
// and on confirmation fan out to the licence register, web search, and
// place search in parallel.
func (o *Orchestrator) handleIdentity(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
	if sess.Flags.IdentityConfirmed {
		return Patch{}, nil
	}

	if o.overBudget(sess, domain.StepIdentity) {
		return Patch{
			Text:              "Let's keep moving - we can fix the business details later from your account settings.",
			IdentityConfirmed: flagTrue(),
		}, nil
	}

	// Fresh session: open with the question.
	if text == "" && sess.Identity.RawInput == "" && len(sess.Identity.Candidates) == 0 {
		return Patch{Text: welcomeText}, nil
	}

	// A candidate list is pending: interpret the reply as a pick.
	if len(sess.Identity.Candidates) > 0 {
		if rec, ok := pickCandidate(sess.Identity.Candidates, text); ok {
			return o.confirmIdentity(ctx, sess, rec)
		}
		if isNegative(text) {
			identity := sess.Identity
			identity.Candidates = nil
			return Patch{
				Identity: &identity,
				Text:     "No worries. What's the exact business name or ABN? A postcode helps narrow it down.",
			}, nil
		}
		// Anything else is a fresh search below.
	}

	q := engine.ResolveQuery(text, o.deps.Heuristics.MinIDDigits)
	if q.Term == "" {
		return Patch{Text: welcomeText}, nil
	}

	identity := sess.Identity
	identity.RawInput = text

	if q.Kind == engine.QueryNumericID {
		return o.lookupByID(ctx, identity, q.Term)
	}
	return o.searchByName(ctx, identity, q)
}

func (o *Orchestrator) lookupByID(ctx context.Context, identity domain.IdentityRecord, id string) (Patch, error) {
	if o.deps.Registry == nil {
		return Patch{Text: "I can't reach the business register right now. What's your business name instead?"}, nil
	}

	started := time.Now()
	rec, err := o.deps.Registry.LookupID(ctx, id)
	p := Patch{}
	trace(&p, "registry.lookup", started, id)
	if err != nil || rec == nil {
		o.logger.Warn("register id lookup failed", "id", id, "error", err)
		p.Text = fmt.Sprintf("I couldn't find an active registration for %s. "+
			"Could you double-check the number, or give me the business name?", id)
		return p, nil
	}

	identity.Candidates = []domain.RegistryRecord{*rec}
	p.Identity = &identity
	p.Text = fmt.Sprintf("I found **%s** (%s, %s %s). Is that your business?",
		rec.Name, rec.EntityType, rec.State, rec.Postcode)
	p.QuickReplies = []domain.QuickReply{
		{Label: "Yes, that's me", Value: "yes"},
		{Label: "No", Value: "no"},
	}
	return p, nil
}

func (o *Orchestrator) searchByName(ctx context.Context, identity domain.IdentityRecord, q engine.Query) (Patch, error) {
	if o.deps.Registry == nil {
		return Patch{Text: "I can't reach the business register right now. Could you try again in a moment?"}, nil
	}

	started := time.Now()
	candidates, err := o.deps.Registry.SearchByName(ctx, q.Term, o.deps.Heuristics.MaxCandidates)
	p := Patch{}
	trace(&p, "registry.search", started, fmt.Sprintf("%s (%d matches)", q.Term, len(candidates)))
	if err != nil {
		o.logger.Warn("register name search failed", "term", q.Term, "error", err)
		p.Text = "The business register isn't answering right now. Could you try again in a moment?"
		return p, nil
	}
	if len(candidates) == 0 {
		p.Text = fmt.Sprintf("I couldn't find %q on the register. "+
			"Try the exact registered name, or your ABN if you have it handy.", q.Term)
		return p, nil
	}

	selected, shown := engine.Disambiguate(candidates, q.PostcodeHint)
	if selected != nil {
		return o.confirmIdentityWith(ctx, identity, *selected, p.Trace)
	}

	identity.Candidates = shown
	p.Identity = &identity
	p.Text = "I found a few matches - which one is yours?"
	for _, c := range shown {
		label := c.Name
		if c.State != "" || c.Postcode != "" {
			label = fmt.Sprintf("%s (%s %s)", c.Name, c.State, c.Postcode)
		}
		p.QuickReplies = append(p.QuickReplies, domain.QuickReply{Label: label, Value: c.ID})
	}
	p.QuickReplies = append(p.QuickReplies, domain.QuickReply{Label: "None of these", Value: "no"})
	return p, nil
}

// pickCandidate matches a reply against the pending candidate list: by id,
// by name, or by plain agreement when only one candidate is pending.
func pickCandidate(candidates []domain.RegistryRecord, text string) (domain.RegistryRecord, bool) {
	trimmed := strings.TrimSpace(text)
	compact := strings.ReplaceAll(trimmed, " ", "")
	for _, c := range candidates {
		if c.ID != "" && compact == c.ID {
			return c, true
		}
	}
	for _, c := range candidates {
		if mentions(trimmed, c.Name) {
			return c, true
		}
	}
	if len(candidates) == 1 && isAffirmative(trimmed) {
		return candidates[0], true
	}
	return domain.RegistryRecord{}, false
}

func (o *Orchestrator) confirmIdentity(ctx context.Context, sess *domain.Session, rec domain.RegistryRecord) (Patch, error) {
	identity := sess.Identity
	return o.confirmIdentityWith(ctx, identity, rec, nil)
}

// confirmIdentityWith locks in the register record and enriches it: licence
// browse, web search, and place search run concurrently; each branch fails
// soft and contributes nothing on error.
func (o *Orchestrator) confirmIdentityWith(ctx context.Context, identity domain.IdentityRecord, rec domain.RegistryRecord, prior []domain.TraceEntry) (Patch, error) {
	// The name-search records are thin; the id lookup fills in entity type
	// and registration dates.
	if rec.EntityType == "" && o.deps.Registry != nil {
		if full, err := o.deps.Registry.LookupID(ctx, rec.ID); err == nil && full != nil {
			full.Name = preferName(rec.Name, full.Name)
			rec = *full
		}
	}

	identity.Name = rec.Name
	identity.BusinessID = rec.ID
	identity.EntityType = rec.EntityType
	identity.TaxRegistered = rec.TaxRegistered
	identity.State = rec.State
	identity.Postcode = rec.Postcode
	identity.StartDate = rec.StartDate
	identity.Candidates = nil

	p := Patch{Identity: &identity, IdentityConfirmed: flagTrue(), Trace: prior}

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		licences   []domain.LicenceCandidate
		webResults []domain.SearchResult
		place      *domain.PlaceProfile
	)
	record := func(api string, started time.Time, summary string) {
		mu.Lock()
		trace(&p, api, started, summary)
		mu.Unlock()
	}

	if o.deps.Licences != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			cands, err := o.deps.Licences.Browse(ctx, rec.Name, 10)
			if err != nil {
				o.logger.Warn("licence browse failed", "name", rec.Name, "error", err)
				record("licences.browse", started, "failed")
				return
			}
			mu.Lock()
			licences = cands
			mu.Unlock()
			record("licences.browse", started, fmt.Sprintf("%d candidates", len(cands)))
		}()
	}
	if o.deps.Search != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			query := strings.TrimSpace(rec.Name + " " + rec.State)
			results, err := o.deps.Search.Search(ctx, query, 10)
			if err != nil {
				o.logger.Warn("web search failed", "query", query, "error", err)
				record("search.web", started, "failed")
				return
			}
			mu.Lock()
			webResults = results
			mu.Unlock()
			record("search.web", started, fmt.Sprintf("%d results", len(results)))
		}()
	}
	if o.deps.Places != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started := time.Now()
			query := strings.TrimSpace(rec.Name + " " + rec.State + " Australia")
			profile, err := o.deps.Places.Lookup(ctx, query)
			if err != nil {
				o.logger.Warn("place lookup failed", "query", query, "error", err)
				record("places.lookup", started, "failed")
				return
			}
			mu.Lock()
			place = profile
			mu.Unlock()
			record("places.lookup", started, "ok")
		}()
	}
	wg.Wait()

	var licenceNote string
	if best, ok := engine.BestLicenceMatch(licences, rec.Name); ok && o.deps.Licences != nil {
		started := time.Now()
		details, err := o.deps.Licences.Details(ctx, best.LicenceID)
		if err != nil {
			o.logger.Warn("licence details failed", "licence_id", best.LicenceID, "error", err)
			trace(&p, "licences.details", started, "failed")
		} else {
			trace(&p, "licences.details", started, details.LicenceNumber)
			p.Licence = details
			licenceNote = fmt.Sprintf(" I also found your %s licence (%s, %s).",
				details.LicenceType, details.LicenceNumber, details.Status)
			if contact := engine.ContactFromParties(details.Parties); contact != "" {
				p.ContactName = contact
			}
		}
	}

	if len(webResults) > 0 {
		p.WebResults = webResults
		if phone := engine.PhoneFromResults(webResults, 5); phone != "" {
			p.ContactPhone = phone
		}
	}
	if place != nil {
		p.Place = place
	}

	p.Text = fmt.Sprintf("Locked in: **%s** (ABN %s), %s %s.%s",
		rec.Name, rec.ID, rec.State, rec.Postcode, licenceNote)
	return p, nil
}

// preferName keeps the trading name the user searched by over the register's
// legal entity name when both exist.
func preferName(searched, registered string) string {
	if searched != "" {
		return searched
	}
	return registered
}
