package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/serviceseeking/onboard/internal/domain"
)

func TestPlanFirstTurnPresentsOptions(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Turns[domain.StepPlan] = 1

	p, err := o.handlePlan(context.Background(), sess, "")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.Plan == nil || !p.Plan.Shown {
		t.Fatal("Expected the plan list marked as shown")
	}
	if p.PlanChosen != nil {
		t.Error("Expected no choice yet")
	}
	for _, name := range []string{"Standard", "Plus", "Pro"} {
		if !strings.Contains(p.Text, name) {
			t.Errorf("Expected %s in the plan list, got %q", name, p.Text)
		}
	}
	if len(p.QuickReplies) != 4 {
		t.Errorf("Expected 3 plans plus skip, got %d replies", len(p.QuickReplies))
	}
}

func TestInterpretPlan(t *testing.T) {
	tests := []struct {
		text        string
		wantPlan    string
		wantBilling string
		wantPrice   string
	}{
		{"the plus plan please", "plus", "monthly", "$79/mo"},
		{"pro, billed annually", "pro", "annual", "$1290/yr"},
		{"standard quarterly", "standard", "quarterly", "$49/mo"},
		{"skip for now", "skip", "", ""},
		{"I'll stay on the free tier", "skip", "", ""},
		{"no thanks", "skip", "", ""},
	}
	for _, tt := range tests {
		plan := interpretPlan(tt.text)
		if plan == nil {
			t.Errorf("interpretPlan(%q): expected a selection", tt.text)
			continue
		}
		if plan.Plan != tt.wantPlan || plan.Billing != tt.wantBilling || plan.Price != tt.wantPrice {
			t.Errorf("interpretPlan(%q) = %s/%s/%s, want %s/%s/%s", tt.text,
				plan.Plan, plan.Billing, plan.Price, tt.wantPlan, tt.wantBilling, tt.wantPrice)
		}
	}
}

func TestInterpretPlanUnrecognised(t *testing.T) {
	if plan := interpretPlan("which one do you recommend?"); plan != nil {
		t.Errorf("Expected nil for an unrecognised reply, got %+v", plan)
	}
}

func TestPlanChoiceConfirms(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Plan.Shown = true
	sess.Turns[domain.StepPlan] = 2

	p, err := o.handlePlan(context.Background(), sess, "plus")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.PlanChosen == nil || !*p.PlanChosen {
		t.Fatal("Expected the plan chosen")
	}
	if p.Plan.Plan != "plus" || p.Plan.Price != "$79/mo" {
		t.Errorf("Expected the plus plan at $79/mo, got %+v", p.Plan)
	}
	if !p.Plan.Shown {
		t.Error("Expected the shown marker preserved")
	}
}

func TestPlanUnrecognisedReplyReasks(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Plan.Shown = true
	sess.Turns[domain.StepPlan] = 2

	p, err := o.handlePlan(context.Background(), sess, "hmm")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.PlanChosen != nil {
		t.Error("Expected no choice recorded")
	}
	if len(p.QuickReplies) == 0 {
		t.Error("Expected the plan replies offered again")
	}
}

func TestPlanBudgetForcesSkip(t *testing.T) {
	o := newTestOrchestrator(t)
	sess := domain.NewSession("s1")
	sess.Plan.Shown = true
	sess.Turns[domain.StepPlan] = o.deps.Heuristics.TurnBudgets[domain.StepPlan] + 1

	p, err := o.handlePlan(context.Background(), sess, "hmm")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if p.PlanChosen == nil || !*p.PlanChosen {
		t.Fatal("Expected the budget to force a choice")
	}
	if p.Plan.Plan != "skip" {
		t.Errorf("Expected a forced skip, got %q", p.Plan.Plan)
	}
}
