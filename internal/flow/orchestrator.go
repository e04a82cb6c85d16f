// Package flow is the workflow orchestrator: the step state machine, the
// bounded auto-chain loop, the adjacent-step fan-out, and the step handlers
// that compose enrichment clients, decision engines, and the content
// generator into per-step patches.
package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/serviceseeking/onboard/internal/config"
	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/enrich"
	"github.com/serviceseeking/onboard/internal/genai"
	"github.com/serviceseeking/onboard/internal/refdata"
)

// Narrow views of the enrichment clients, so handlers can be tested with
// stubs.
type (
	Registry interface {
		SearchByName(ctx context.Context, name string, maxResults int) ([]domain.RegistryRecord, error)
		LookupID(ctx context.Context, id string) (*domain.RegistryRecord, error)
	}
	Licences interface {
		Browse(ctx context.Context, search string, max int) ([]domain.LicenceCandidate, error)
		Details(ctx context.Context, licenceID string) (*domain.LicenceRecord, error)
	}
	Searcher interface {
		Search(ctx context.Context, query string, count int) ([]domain.SearchResult, error)
	}
	Places interface {
		Lookup(ctx context.Context, query string) (*domain.PlaceProfile, error)
	}
	Discoverer interface {
		DiscoverWebsite(ctx context.Context, businessName string) string
	}
	Scraper interface {
		Scrape(ctx context.Context, pageURL string) (*enrich.Scraped, error)
		ScrapeSocial(ctx context.Context, pageURLs []string) *enrich.Scraped
	}
	ImageFetcher interface {
		FetchAll(ctx context.Context, urls []string) []*enrich.Fetched
	}
	Generator interface {
		Configured() bool
		Complete(ctx context.Context, system string, messages []genai.Message) (string, error)
		Classify(ctx context.Context, images []genai.ClassifyImage, tradeHint string) ([]bool, error)
	}
)

// Deps wires the orchestrator's collaborators. Any client may be nil; the
// handlers degrade to their deterministic paths.
type Deps struct {
	Registry  Registry
	Licences  Licences
	Search    Searcher
	Places    Places
	Discover  Discoverer
	Scraper   Scraper
	Images    ImageFetcher
	Generator Generator

	Ref        *refdata.Store
	Heuristics config.Heuristics
	Logger     *slog.Logger
}

// Reply is one turn's outcome.
type Reply struct {
	Text         string              `json:"response"`
	QuickReplies []domain.QuickReply `json:"quick_replies,omitempty"`
	Step         domain.Step         `json:"current_step"`
	Terminal     bool                `json:"is_terminal"`
}

type handlerFunc func(ctx context.Context, sess *domain.Session, text string) (Patch, error)

// Orchestrator holds the step-transition policy and runs handlers.
type Orchestrator struct {
	deps     Deps
	handlers map[domain.Step]handlerFunc
	logger   *slog.Logger
}

func New(deps Deps) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	o := &Orchestrator{deps: deps, logger: deps.Logger}
	o.handlers = map[domain.Step]handlerFunc{
		domain.StepIdentity: o.handleIdentity,
		domain.StepServices: o.handleServices,
		domain.StepArea:     o.handleArea,
		domain.StepProfile:  o.handleProfile,
		domain.StepPlan:     o.handlePlan,
	}
	return o
}

const genericPrompt = "Sorry, something went wrong on my side there. Could you say that again, or rephrase it?"

// Start runs the first turn of a fresh session: the identity step with no
// inbound text, which produces the opening question.
func (o *Orchestrator) Start(ctx context.Context, sess *domain.Session) Reply {
	return o.Advance(ctx, sess, "")
}

// Advance processes one inbound message: it appends the message, then runs
// the next-step handler in a bounded loop, chaining into following steps as
// long as each handler completes its own step without needing a reply.
func (o *Orchestrator) Advance(ctx context.Context, sess *domain.Session, text string) Reply {
	sess.QuickReplies = nil
	sess.Trace = nil
	if text != "" {
		sess.Append(domain.SpeakerUser, text)
	}

	var parts []string
	for hop := 0; hop < o.deps.Heuristics.MaxChainLength; hop++ {
		step := domain.NextStep(sess.Flags)
		sess.CurrentStep = step

		if step == domain.StepDone {
			if msg := o.finalize(sess); msg != "" {
				parts = append(parts, msg)
			}
			break
		}

		if step == domain.StepServices && o.canFanOutArea(sess) {
			if !o.runFanOut(ctx, sess, text, &parts) {
				break
			}
			// The area branch already ran this turn. If it still needs a
			// reply it stays pending; the next inbound message answers it.
			if !sess.Flags.Done(domain.StepArea) {
				break
			}
			continue
		}

		patch, err := o.runStep(ctx, step, sess, text)
		if err != nil {
			o.logger.Error("step handler failed", "session_id", sess.ID, "step", step, "error", err)
			parts = append(parts, genericPrompt)
			break
		}
		merge(sess, patch)
		if patch.Text != "" {
			parts = append(parts, patch.Text)
		}

		// The chain halts at the first step that still needs a reply.
		if !sess.Flags.Done(step) {
			break
		}
	}

	response := strings.Join(parts, "\n\n")
	if response == "" {
		response = genericPrompt
	}
	sess.Append(domain.SpeakerAssistant, response)
	sess.CurrentStep = domain.NextStep(sess.Flags)

	return Reply{
		Text:         response,
		QuickReplies: sess.QuickReplies,
		Step:         sess.CurrentStep,
		Terminal:     sess.CurrentStep == domain.StepDone,
	}
}

// runStep invokes one handler with the turn counter incremented and panics
// converted to errors, so a handler fault never takes down the turn.
func (o *Orchestrator) runStep(ctx context.Context, step domain.Step, sess *domain.Session, text string) (Patch, error) {
	sess.Turns[step]++
	return o.invoke(ctx, step, sess, text)
}

// invoke runs a handler without touching the turn counter. Handlers read
// the session and return a patch; they never mutate the session directly,
// which is what makes the fan-out's concurrent invocations safe.
func (o *Orchestrator) invoke(ctx context.Context, step domain.Step, sess *domain.Session, text string) (patch Patch, err error) {
	handler, ok := o.handlers[step]
	if !ok {
		return Patch{}, fmt.Errorf("no handler for step %q", step)
	}

	defer func() {
		if r := recover(); r != nil {
			patch = Patch{}
			err = fmt.Errorf("handler for %q panicked: %v", step, r)
		}
	}()

	started := time.Now()
	patch, err = handler(ctx, sess, text)
	o.logger.Debug("step handled", "session_id", sess.ID, "step", step,
		"turn", sess.Turns[step], "took", time.Since(started), "error", err)
	return patch, err
}

// canFanOutArea reports whether the area step can run concurrently with the
// services step: the base location needs only the postal code verified
// during identity, and the area step has not started yet.
func (o *Orchestrator) canFanOutArea(sess *domain.Session) bool {
	return !sess.Flags.AreaConfirmed &&
		sess.Turns[domain.StepArea] == 0 &&
		len(sess.Services) > 0 &&
		sess.Area.BaseSuburb == "" &&
		sess.Identity.Postcode != ""
}

// runFanOut runs the services and area handlers concurrently and joins
// before merging. Both patches merge regardless of the other branch's
// outcome; the chain continues only when the services step (the step the
// loop is on) completed. A failed branch is logged and contributes nothing.
func (o *Orchestrator) runFanOut(ctx context.Context, sess *domain.Session, text string, parts *[]string) bool {
	type branch struct {
		patch Patch
		err   error
	}

	// Both counters move before either handler starts: the turn map is not
	// safe for concurrent writes.
	sess.Turns[domain.StepServices]++
	sess.Turns[domain.StepArea]++

	// The area branch gets no inbound text: the user's message belongs to
	// the services conversation.
	var servicesBr, areaBr branch
	done := make(chan struct{})
	go func() {
		defer close(done)
		areaBr.patch, areaBr.err = o.invoke(ctx, domain.StepArea, sess, "")
	}()
	servicesBr.patch, servicesBr.err = o.invoke(ctx, domain.StepServices, sess, text)
	<-done

	for _, b := range []struct {
		step domain.Step
		br   branch
	}{
		{domain.StepServices, servicesBr},
		{domain.StepArea, areaBr},
	} {
		if b.br.err != nil {
			o.logger.Error("fan-out branch failed", "session_id", sess.ID, "step", b.step, "error", b.br.err)
			continue
		}
		merge(sess, b.br.patch)
		if b.br.patch.Text != "" {
			*parts = append(*parts, b.br.patch.Text)
		}
	}

	if servicesBr.err != nil {
		*parts = append(*parts, genericPrompt)
		return false
	}
	return sess.Flags.Done(domain.StepServices)
}

// overBudget reports whether the step's turn counter has exceeded its
// configured budget. Handlers must force their completion flag when it has.
func (o *Orchestrator) overBudget(sess *domain.Session, step domain.Step) bool {
	budget, ok := o.deps.Heuristics.TurnBudgets[step]
	if !ok {
		return false
	}
	over := sess.Turns[step] > budget
	if over {
		o.logger.Warn("turn budget exceeded, forcing step completion",
			"session_id", sess.ID, "step", step, "turns", sess.Turns[step], "budget", budget)
	}
	return over
}

// trace records one enrichment call on a patch for the dev log view.
func trace(p *Patch, api string, started time.Time, summary string) {
	p.Trace = append(p.Trace, domain.TraceEntry{
		API:     api,
		Took:    time.Since(started),
		Summary: summary,
	})
}
