package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/serviceseeking/onboard/internal/domain"
)

type planOption struct {
	name    string
	monthly string
	annual  string
	blurb   string
}

var planOptions = []planOption{
	{"standard", "$49/mo", "$490/yr", "lead credits to get started"},
	{"plus", "$79/mo", "$790/yr", "more leads plus a featured profile"},
	{"pro", "$129/mo", "$1290/yr", "unlimited quoting and priority placement"},
}

// handlePlan presents the subscription plans and records the choice.
// Skipping is a first-class outcome, and the turn budget forces it.
func (o *Orchestrator) handlePlan(ctx context.Context, sess *domain.Session, text string) (Patch, error) {
	if sess.Flags.PlanChosen {
		return Patch{}, nil
	}

	if o.overBudget(sess, domain.StepPlan) {
		return Patch{
			Plan:       &domain.PlanSelection{Plan: "skip", Shown: sess.Plan.Shown},
			PlanChosen: flagTrue(),
			Text:       "No rush on the plan - you're on the free tier for now and can upgrade any time.",
		}, nil
	}

	if !sess.Plan.Shown {
		return o.presentPlans(sess), nil
	}

	plan := interpretPlan(text)
	if plan == nil {
		return Patch{
			Text:         "Which plan would you like: standard, plus, or pro? You can also skip for now.",
			QuickReplies: planReplies(),
		}, nil
	}
	plan.Shown = true

	var msg string
	if plan.Plan == "skip" {
		msg = "All good - you're on the free tier. Upgrade whenever you're ready."
	} else {
		msg = fmt.Sprintf("You're on the %s plan (%s, billed %s).", plan.Plan, plan.Price, plan.Billing)
	}
	return Patch{Plan: plan, PlanChosen: flagTrue(), Text: msg}, nil
}

func (o *Orchestrator) presentPlans(sess *domain.Session) Patch {
	var b strings.Builder
	b.WriteString("Last thing - pick a plan:\n\n")
	for _, opt := range planOptions {
		fmt.Fprintf(&b, "- **%s** (%s or %s): %s\n",
			capitalize(opt.name), opt.monthly, opt.annual, opt.blurb)
	}
	b.WriteString("\nOr skip for now and stay on the free tier.")

	plan := sess.Plan
	plan.Shown = true
	return Patch{
		Plan:         &plan,
		Text:         b.String(),
		QuickReplies: planReplies(),
	}
}

func planReplies() []domain.QuickReply {
	replies := make([]domain.QuickReply, 0, len(planOptions)+1)
	for _, opt := range planOptions {
		replies = append(replies, domain.QuickReply{
			Label: fmt.Sprintf("%s (%s)", capitalize(opt.name), opt.monthly),
			Value: opt.name,
		})
	}
	return append(replies, domain.QuickReply{Label: "Skip for now", Value: "skip"})
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// interpretPlan matches the reply against the plan names and billing terms.
// Returns nil when the reply names no plan.
func interpretPlan(text string) *domain.PlanSelection {
	lower := strings.ToLower(text)

	if strings.Contains(lower, "skip") || strings.Contains(lower, "free") ||
		strings.Contains(lower, "later") || isNegative(text) {
		return &domain.PlanSelection{Plan: "skip"}
	}

	billing := "monthly"
	if strings.Contains(lower, "annual") || strings.Contains(lower, "year") {
		billing = "annual"
	} else if strings.Contains(lower, "quarter") {
		billing = "quarterly"
	}

	for _, opt := range planOptions {
		if !strings.Contains(lower, opt.name) {
			continue
		}
		price := opt.monthly
		if billing == "annual" {
			price = opt.annual
		}
		return &domain.PlanSelection{Plan: opt.name, Billing: billing, Price: price}
	}
	return nil
}
