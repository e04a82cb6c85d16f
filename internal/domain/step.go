package domain

// Step is one stage of the onboarding pipeline.
type Step string

const (
	StepIdentity Step = "identity"
	StepServices Step = "services"
	StepArea     Step = "area"
	StepProfile  Step = "profile"
	StepPlan     Step = "plan"
	StepDone     Step = "done"
)

// StepOrder is the fixed pipeline order, terminal step excluded.
var StepOrder = []Step{StepIdentity, StepServices, StepArea, StepProfile, StepPlan}

// StepFlags holds the per-step completion flags. Flags are monotonic within a
// session: once true, only an explicit edit action may force one back to false.
type StepFlags struct {
	IdentityConfirmed bool `json:"identity_confirmed"`
	ServicesConfirmed bool `json:"services_confirmed"`
	AreaConfirmed     bool `json:"area_confirmed"`
	ProfileSaved      bool `json:"profile_saved"`
	PlanChosen        bool `json:"plan_chosen"`
}

// Done reports whether the given step's completion flag is set.
func (f StepFlags) Done(s Step) bool {
	switch s {
	case StepIdentity:
		return f.IdentityConfirmed
	case StepServices:
		return f.ServicesConfirmed
	case StepArea:
		return f.AreaConfirmed
	case StepProfile:
		return f.ProfileSaved
	case StepPlan:
		return f.PlanChosen
	case StepDone:
		return true
	}
	return false
}

// NextStep returns the first step in pipeline order whose completion flag is
// false, or StepDone when every flag is set.
func NextStep(f StepFlags) Step {
	for _, s := range StepOrder {
		if !f.Done(s) {
			return s
		}
	}
	return StepDone
}
