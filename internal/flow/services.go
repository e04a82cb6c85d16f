package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/engine"
	"github.com/serviceseeking/onboard/internal/genai"
)

const maxGapReplies = 8

// handleServices maps what the business does onto the category taxonomy.
// The gap resolver narrows the conversation to the subcategories of the
// resolved trade category; the generator interprets free-text replies, with
// a keyword-and-split fallback when it is unavailable.
func (o *Orchestrator) handleServices(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
	if sess.Flags.ServicesConfirmed {
		return Patch{}, nil
	}

	if o.overBudget(sess, domain.StepServices) {
		return Patch{
			Text:              servicesForcedText(sess),
			ServicesConfirmed: flagTrue(),
		}, nil
	}

	gaps := o.serviceGaps(sess)

	// First invocation for this step: the inbound text belongs to the
	// previous step's conversation, so ask instead of interpreting it.
	if sess.Turns[domain.StepServices] <= 1 {
		return o.askServices(sess, gaps), nil
	}

	if o.deps.Generator != nil && o.deps.Generator.Configured() {
		if p, ok := o.generateServices(ctx, sess, text, gaps); ok {
			return p, nil
		}
	}
	return o.interpretServices(sess, text, gaps), nil
}

// serviceGaps runs the gap resolver, discarding the gap list when several
// turns have produced zero mapped services: the resolved category is then
// probably wrong and full-taxonomy mode does better.
func (o *Orchestrator) serviceGaps(sess *domain.Session) []domain.GapEntry {
	if sess.Turns[domain.StepServices] > o.deps.Heuristics.GapFallbackTurns && len(sess.Services) == 0 {
		return nil
	}

	var placeName, placeType string
	if sess.Place != nil {
		placeName, placeType = sess.Place.Name, sess.Place.PrimaryType
	}
	return engine.Gaps(o.deps.Ref, sess.Services,
		sess.Identity.Name, sess.Licence.ActiveClassNames(), placeName, placeType)
}

func (o *Orchestrator) askServices(sess *domain.Session, gaps []domain.GapEntry) Patch {
	p := Patch{}
	if len(gaps) == 0 {
		p.Text = "Now, what services do you offer? List as many as you like, e.g. \"blocked drains, hot water systems, gas fitting\"."
		return p
	}

	p.Text = fmt.Sprintf("Looks like you're in the %s trade. Which of these services do you offer?", gaps[0].CategoryName)
	for i, g := range gaps {
		if i >= maxGapReplies {
			break
		}
		p.QuickReplies = append(p.QuickReplies, domain.QuickReply{Label: g.SubcategoryName, Value: g.SubcategoryName})
	}
	p.QuickReplies = append(p.QuickReplies, domain.QuickReply{Label: "All of these", Value: "all of these"})
	return p
}

// generateServices asks the content generator to map the reply onto the
// taxonomy. Returns ok=false when the call fails, handing over to the
// deterministic path.
func (o *Orchestrator) generateServices(ctx context.Context, sess *domain.Session, text string, gaps []domain.GapEntry) (Patch, bool) {
	var categories []string
	for _, g := range gaps {
		categories = append(categories, g.CategoryName)
	}
	for _, svc := range sess.Services {
		categories = append(categories, svc.CategoryName)
	}
	taxonomy := o.deps.Ref.RelevantTaxonomy(categories, 8000)
	guide := o.deps.Ref.SubcategoryGuide(sess.Identity.Name)

	system := "You map an Australian trade business's services onto a fixed category taxonomy.\n" +
		"Reply with JSON only: {\"response\": string, \"services\": [exact subcategory names], \"step_complete\": bool}.\n" +
		"Set step_complete true once the owner indicates their list is complete.\n\n" +
		"Taxonomy:\n" + taxonomy
	if guide != "" {
		system += "\n\nGuide:\n" + guide
	}

	var current []string
	for _, svc := range sess.Services {
		current = append(current, svc.SubcategoryName)
	}
	var gapNames []string
	for _, g := range gaps {
		gapNames = append(gapNames, g.SubcategoryName)
	}
	user := fmt.Sprintf("Business: %s\nAlready mapped: %s\nStill unmapped in their category: %s\nOwner's reply: %s",
		sess.Identity.Name, strings.Join(current, ", "), strings.Join(gapNames, ", "), text)
	if prev := sess.LastAssistantMessage(); prev != "" {
		user = "Question asked: " + prev + "\n" + user
	}

	started := time.Now()
	reply, err := o.deps.Generator.Complete(ctx, system, []genai.Message{{Role: "user", Text: user}})
	p := Patch{}
	trace(&p, "generator.services", started, fmt.Sprintf("%d chars", len(reply)))
	if err != nil {
		o.logger.Warn("services generation failed", "session_id", sess.ID, "error", err)
		return Patch{}, false
	}

	suggestion := genai.ParseSuggestion(reply)
	if !suggestion.Structured {
		// Malformed output stays a plain, non-terminal message.
		p.Text = suggestion.Response
		return p, true
	}

	p.Services = o.mapServiceNames(suggestion.Services, text)
	p.Text = suggestion.Response
	if len(suggestion.Buttons) > 0 {
		p.QuickReplies = suggestion.Buttons
	}
	if suggestion.StepComplete && (len(sess.Services) > 0 || len(p.Services) > 0) {
		p.ServicesConfirmed = flagTrue()
		if p.Text == "" {
			p.Text = "Services saved."
		}
	}
	return p, true
}

// interpretServices is the deterministic path: quick-reply echoes, "all of
// these", "that's all", and comma-separated service lists matched against
// the taxonomy.
func (o *Orchestrator) interpretServices(sess *domain.Session, text string, gaps []domain.GapEntry) Patch {
	p := Patch{}

	if mentions(text, "all of these") || strings.EqualFold(strings.TrimSpace(text), "all") {
		for _, g := range gaps {
			p.Services = append(p.Services, domain.MappedService{
				Input:           text,
				CategoryName:    g.CategoryName,
				CategoryID:      g.CategoryID,
				SubcategoryName: g.SubcategoryName,
				SubcategoryID:   g.SubcategoryID,
				Confidence:      0.8,
			})
		}
		if len(p.Services) > 0 {
			p.ServicesConfirmed = flagTrue()
			p.Text = fmt.Sprintf("Great - I've added all %d %s services.", len(p.Services), gaps[0].CategoryName)
			return p
		}
	}

	doneReply := isAffirmative(text) || isNegative(text) ||
		mentions(text, "that's all") || mentions(text, "thats all") || mentions(text, "nothing else")
	if doneReply && len(sess.Services) > 0 {
		p.ServicesConfirmed = flagTrue()
		p.Text = fmt.Sprintf("Done - %d services on your profile.", len(sess.Services))
		return p
	}

	p.Services = o.mapServiceNames(splitList(text), text)
	if len(p.Services) == 0 {
		p.Text = "I couldn't match those to our service categories. Could you describe what you do in a few words, like \"emergency plumbing\" or \"bathroom renovations\"?"
		return p
	}

	var added []string
	for _, svc := range p.Services {
		added = append(added, svc.SubcategoryName)
	}
	p.Text = fmt.Sprintf("Added: %s. Anything else you offer?", strings.Join(added, ", "))
	p.QuickReplies = []domain.QuickReply{{Label: "That's all", Value: "that's all"}}
	return p
}

// mapServiceNames resolves free-text service names to taxonomy entries,
// dropping anything unmappable.
func (o *Orchestrator) mapServiceNames(names []string, input string) []domain.MappedService {
	var services []domain.MappedService
	for _, name := range names {
		cat, sub, ok := o.deps.Ref.FindSubcategory(name)
		if !ok {
			continue
		}
		services = append(services, domain.MappedService{
			Input:           input,
			CategoryName:    cat.Name,
			CategoryID:      cat.ID,
			SubcategoryName: sub.Name,
			SubcategoryID:   sub.ID,
			Confidence:      0.9,
		})
	}
	return services
}

func servicesForcedText(sess *domain.Session) string {
	if len(sess.Services) > 0 {
		return fmt.Sprintf("I'll lock in the %d services we've got - you can add more from your dashboard any time.", len(sess.Services))
	}
	return "We can sort your service list from the dashboard later. Let's keep going."
}
