package flow

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/serviceseeking/onboard/internal/config"
	"github.com/serviceseeking/onboard/internal/domain"
	"github.com/serviceseeking/onboard/internal/refdata"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestOrchestrator builds an orchestrator with no enrichment clients and
// an empty reference data directory. Handlers then run their deterministic
// fallback paths.
func newTestOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	return New(Deps{
		Ref:        refdata.New(t.TempDir()),
		Heuristics: config.DefaultHeuristics(),
		Logger:     testLogger(),
	})
}

func completingHandler(step domain.Step, text string) handlerFunc {
	return func(ctx context.Context, sess *domain.Session, _ string) (Patch, error) {
		p := Patch{Text: text}
		switch step {
		case domain.StepIdentity:
			p.IdentityConfirmed = flagTrue()
		case domain.StepServices:
			p.ServicesConfirmed = flagTrue()
		case domain.StepArea:
			p.AreaConfirmed = flagTrue()
		case domain.StepProfile:
			p.ProfileSaved = flagTrue()
		case domain.StepPlan:
			p.PlanChosen = flagTrue()
		}
		return p, nil
	}
}

func TestStartAsksForIdentity(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")

	reply := o.Start(context.Background(), sess)
	if reply.Step != domain.StepIdentity {
		t.Errorf("Expected identity step, got %s", reply.Step)
	}
	if reply.Terminal {
		t.Error("Expected a non-terminal first turn")
	}
	if !strings.Contains(reply.Text, "business name or ABN") {
		t.Errorf("Expected the opening question, got %q", reply.Text)
	}
	if sess.Turns[domain.StepIdentity] != 1 {
		t.Errorf("Expected 1 identity turn, got %d", sess.Turns[domain.StepIdentity])
	}
}

func TestAdvanceChainStopsAtFirstIncompleteStep(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	o.handlers[domain.StepIdentity] = completingHandler(domain.StepIdentity, "Business locked in.")

	reply := o.Advance(context.Background(), sess, "Dans Plumbing 2155")
	if !sess.Flags.IdentityConfirmed {
		t.Fatal("Expected identity confirmed")
	}
	if sess.Flags.ServicesConfirmed {
		t.Error("Expected the chain to halt at the services question")
	}
	if reply.Step != domain.StepServices {
		t.Errorf("Expected chain to land on services, got %s", reply.Step)
	}
	if !strings.Contains(reply.Text, "Business locked in.") {
		t.Errorf("Expected both steps' texts joined, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, "services") {
		t.Errorf("Expected the services question appended, got %q", reply.Text)
	}
}

func TestAdvanceChainIsBounded(t *testing.T) {
	deps := Deps{
		Ref:        refdata.New(t.TempDir()),
		Heuristics: config.DefaultHeuristics(),
		Logger:     testLogger(),
	}
	deps.Heuristics.MaxChainLength = 2
	o := New(deps)
	for _, step := range domain.StepOrder {
		o.handlers[step] = completingHandler(step, "ok")
	}

	sess := domain.NewSession("s1")
	o.Advance(context.Background(), sess, "go")

	if !sess.Flags.IdentityConfirmed || !sess.Flags.ServicesConfirmed {
		t.Error("Expected the first two steps to complete")
	}
	if sess.Turns[domain.StepArea] != 0 {
		t.Errorf("Expected the chain bound to stop before area, got %d area turns", sess.Turns[domain.StepArea])
	}
}

func TestAdvanceRecoversFromHandlerPanic(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	o.handlers[domain.StepIdentity] = func(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
		panic("boom")
	}

	reply := o.Advance(context.Background(), sess, "hello")
	if reply.Text != genericPrompt {
		t.Errorf("Expected the generic prompt after a panic, got %q", reply.Text)
	}
	if sess.Flags.IdentityConfirmed {
		t.Error("Expected flags unchanged after a panic")
	}

	// The session stays usable.
	o.handlers[domain.StepIdentity] = completingHandler(domain.StepIdentity, "recovered")
	reply = o.Advance(context.Background(), sess, "try again")
	if !sess.Flags.IdentityConfirmed {
		t.Error("Expected the next turn to proceed normally")
	}
	if reply.Step != domain.StepServices {
		t.Errorf("Expected the session to resume, got step %s", reply.Step)
	}
}

func TestAdvanceHandlerErrorReturnsGenericPrompt(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	o.handlers[domain.StepIdentity] = func(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
		return Patch{}, errors.New("register down")
	}

	reply := o.Advance(context.Background(), sess, "hello")
	if reply.Text != genericPrompt {
		t.Errorf("Expected the generic prompt, got %q", reply.Text)
	}
}

func TestTurnBudgetForcesServices(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Flags.IdentityConfirmed = true
	sess.Turns[domain.StepServices] = o.deps.Heuristics.TurnBudgets[domain.StepServices]

	reply := o.Advance(context.Background(), sess, "something unmappable")
	if !sess.Flags.ServicesConfirmed {
		t.Error("Expected the budget to force services confirmation")
	}
	if reply.Step != domain.StepArea {
		t.Errorf("Expected the chain to move on to area, got %s", reply.Step)
	}
}

func TestTurnBudgetForcesIdentity(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Turns[domain.StepIdentity] = o.deps.Heuristics.TurnBudgets[domain.StepIdentity]

	o.Advance(context.Background(), sess, "still not sure")
	if !sess.Flags.IdentityConfirmed {
		t.Error("Expected the budget to force identity confirmation")
	}
}

func TestFanOutRunsServicesAndAreaTogether(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := fanOutSession()
	o.handlers[domain.StepServices] = completingHandler(domain.StepServices, "services done")

	var areaTexts []string
	o.handlers[domain.StepArea] = func(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
		areaTexts = append(areaTexts, text)
		return Patch{Text: "which regions do you cover?"}, nil
	}

	reply := o.Advance(context.Background(), sess, "that's all")
	if sess.Turns[domain.StepServices] != 1 {
		t.Errorf("Expected 1 services turn, got %d", sess.Turns[domain.StepServices])
	}
	// The area branch runs exactly once, with no inbound text: the user's
	// message belongs to the services conversation, and the pending area
	// question waits for the next message.
	if len(areaTexts) != 1 || areaTexts[0] != "" {
		t.Errorf("Expected area invoked once with no text, got %q", areaTexts)
	}
	if sess.Turns[domain.StepArea] != 1 {
		t.Errorf("Expected 1 area turn, got %d", sess.Turns[domain.StepArea])
	}
	if !strings.Contains(reply.Text, "services done") {
		t.Errorf("Expected the services text merged, got %q", reply.Text)
	}
	if n := strings.Count(reply.Text, "which regions"); n != 1 {
		t.Errorf("Expected the region question asked once, got %d in %q", n, reply.Text)
	}
	if !sess.Flags.ServicesConfirmed {
		t.Error("Expected services confirmed")
	}
	if reply.Step != domain.StepArea {
		t.Errorf("Expected the turn to end on the pending area step, got %s", reply.Step)
	}
}

func TestFanOutContinuesWhenBothBranchesComplete(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := fanOutSession()
	o.handlers[domain.StepServices] = completingHandler(domain.StepServices, "services done")
	o.handlers[domain.StepArea] = completingHandler(domain.StepArea, "area done")

	reply := o.Advance(context.Background(), sess, "that's all")
	if !sess.Flags.ServicesConfirmed || !sess.Flags.AreaConfirmed {
		t.Fatal("Expected both branches confirmed")
	}
	if reply.Step != domain.StepProfile {
		t.Errorf("Expected the chain to continue into profile, got %s", reply.Step)
	}
	if sess.Turns[domain.StepProfile] != 1 {
		t.Errorf("Expected the profile step started, got %d turns", sess.Turns[domain.StepProfile])
	}
}

// A services-directed reply must never be consumed as the area answer: with
// the real area handler and no suburb data, the pending branch stays open
// instead of saving the services text as travel notes.
func TestFanOutDoesNotFeedServicesReplyToArea(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := fanOutSession()
	o.handlers[domain.StepServices] = completingHandler(domain.StepServices, "services done")

	o.Advance(context.Background(), sess, "that's all")
	if sess.Flags.AreaConfirmed {
		t.Fatal("Expected the area step left pending")
	}
	if sess.Area.TravelNotes != "" {
		t.Errorf("Expected no travel notes recorded, got %q", sess.Area.TravelNotes)
	}
}

func TestFanOutMergesAreaWhenServicesBranchFails(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := fanOutSession()
	o.handlers[domain.StepServices] = func(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
		return Patch{}, errors.New("taxonomy service down")
	}
	o.handlers[domain.StepArea] = func(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
		return Patch{
			Area:          &domain.CoverageArea{BaseSuburb: "Kellyville", RegionsIncluded: []string{"Hills District"}},
			AreaConfirmed: flagTrue(),
			Text:          "area saved",
		}, nil
	}

	reply := o.Advance(context.Background(), sess, "blocked drains")
	if !sess.Flags.AreaConfirmed {
		t.Error("Expected the area branch merged despite the services failure")
	}
	if sess.Flags.ServicesConfirmed {
		t.Error("Expected services left unconfirmed")
	}
	if !strings.Contains(reply.Text, "area saved") {
		t.Errorf("Expected the area text kept, got %q", reply.Text)
	}
	if !strings.Contains(reply.Text, genericPrompt) {
		t.Errorf("Expected the generic prompt for the failed branch, got %q", reply.Text)
	}
}

func TestFanOutSkippedWithoutPostcode(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := fanOutSession()
	sess.Identity.Postcode = ""
	if o.canFanOutArea(sess) {
		t.Error("Expected no fan-out without a verified postcode")
	}
	sess = fanOutSession()
	sess.Turns[domain.StepArea] = 1
	if o.canFanOutArea(sess) {
		t.Error("Expected no fan-out once the area step has started")
	}
	sess = fanOutSession()
	sess.Services = nil
	if o.canFanOutArea(sess) {
		t.Error("Expected no fan-out before any service is mapped")
	}
}

func fanOutSession() *domain.Session {
	sess := domain.NewSession("s1")
	sess.Flags.IdentityConfirmed = true
	sess.Identity.Postcode = "2155"
	sess.Services = []domain.MappedService{
		{SubcategoryID: 101, SubcategoryName: "Blocked Drains", CategoryName: "Plumber"},
	}
	return sess
}

func TestFinalizeBuildsResultOnce(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Flags = domain.StepFlags{
		IdentityConfirmed: true,
		ServicesConfirmed: true,
		AreaConfirmed:     true,
		ProfileSaved:      true,
		PlanChosen:        true,
	}
	sess.Identity.Name = "Dans Plumbing"
	sess.Identity.BusinessID = "51824753556"
	sess.ContactName = "Dan Smith"
	sess.Services = []domain.MappedService{
		{CategoryName: "Plumber", CategoryID: 10, SubcategoryName: "Blocked Drains", SubcategoryID: 101},
		{CategoryName: "Plumber", CategoryID: 10, SubcategoryName: "Gas Fitting", SubcategoryID: 103},
	}
	sess.Area.RegionsIncluded = []string{"Hills District"}

	reply := o.Advance(context.Background(), sess, "thanks")
	if !reply.Terminal {
		t.Fatal("Expected a terminal reply")
	}
	if sess.Result == nil {
		t.Fatal("Expected the result built")
	}
	if len(sess.Result.Services) != 1 || len(sess.Result.Services[0].Subcats) != 2 {
		t.Errorf("Expected services grouped under one category, got %+v", sess.Result.Services)
	}
	if !strings.Contains(reply.Text, "Dan") {
		t.Errorf("Expected the contact's first name in the closing message, got %q", reply.Text)
	}

	first := sess.Result
	reply = o.Advance(context.Background(), sess, "hello again")
	if sess.Result != first {
		t.Error("Expected the result built exactly once")
	}
	if !reply.Terminal {
		t.Error("Expected re-entry to stay terminal")
	}
	if !strings.Contains(reply.Text, "all set") {
		t.Errorf("Expected a completion reminder, got %q", reply.Text)
	}
}
