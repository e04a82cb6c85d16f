// Package domain defines the onboarding session record and its typed
// per-step sub-records.
package domain

import (
	"time"
)

// Speaker tags a transcript entry.
type Speaker string

const (
	SpeakerUser      Speaker = "user"
	SpeakerAssistant Speaker = "assistant"
)

// Message is one transcript entry.
type Message struct {
	Speaker Speaker   `json:"speaker"`
	Text    string    `json:"text"`
	At      time.Time `json:"at"`
}

// TraceEntry records one enrichment or generator call made during a turn,
// for dev tooling. The trace is cleared at the start of every turn.
type TraceEntry struct {
	API     string        `json:"api"`
	Took    time.Duration `json:"took"`
	Summary string        `json:"summary"`
}

// Session is the unit of work: one business owner's onboarding conversation.
// It is created by the session store and mutated only by the orchestrator
// merging step-handler patches.
type Session struct {
	ID          string    `json:"session_id"`
	CreatedAt   time.Time `json:"created_at"`
	Messages    []Message `json:"-"`
	CurrentStep Step      `json:"current_step"`

	Identity IdentityRecord  `json:"identity"`
	Licence  *LicenceRecord  `json:"licence,omitempty"`
	Services []MappedService `json:"services"`
	Area     CoverageArea    `json:"area"`
	Profile  ProfileDraft    `json:"profile"`
	Plan     PlanSelection   `json:"plan"`

	ContactName  string         `json:"contact_name,omitempty"`
	ContactPhone string         `json:"contact_phone,omitempty"`
	WebResults   []SearchResult `json:"web_results,omitempty"`
	Place        *PlaceProfile  `json:"place,omitempty"`

	Flags StepFlags    `json:"flags"`
	Turns map[Step]int `json:"turns"`

	// Transient per-turn state.
	QuickReplies []QuickReply `json:"-"`
	Trace        []TraceEntry `json:"-"`

	Result *Result `json:"result,omitempty"`
}

// NewSession returns a fresh session with all flags false and empty fields.
func NewSession(id string) *Session {
	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		CurrentStep: StepIdentity,
		Turns:       make(map[Step]int),
	}
}

// Append adds a transcript entry.
func (s *Session) Append(sp Speaker, text string) {
	s.Messages = append(s.Messages, Message{Speaker: sp, Text: text, At: time.Now()})
}

// LastAssistantMessage returns the most recent assistant message text, or "".
func (s *Session) LastAssistantMessage() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Speaker == SpeakerAssistant {
			return s.Messages[i].Text
		}
	}
	return ""
}

// ServiceCategory groups finalized subcategories under one category.
type ServiceCategory struct {
	Category   string            `json:"category"`
	CategoryID int               `json:"category_id"`
	Subcats    []FinalizedSubcat `json:"subcategories"`
}

// FinalizedSubcat is one subcategory in the final result.
type FinalizedSubcat struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
}

// LicenceSummary is the compact licence view in the final result.
type LicenceSummary struct {
	Number  string   `json:"number"`
	Type    string   `json:"type"`
	Status  string   `json:"status"`
	Expiry  string   `json:"expiry"`
	Classes []string `json:"classes"`
}

// Result is the finalized structured record, available once the terminal
// step is reached.
type Result struct {
	BusinessName  string            `json:"business_name"`
	BusinessID    string            `json:"business_id"`
	EntityType    string            `json:"entity_type"`
	TaxRegistered bool              `json:"tax_registered"`
	Licence       *LicenceSummary   `json:"licence"`
	Services      []ServiceCategory `json:"services"`
	Area          CoverageArea      `json:"area"`
	ContactName   string            `json:"contact_name"`
	ContactPhone  string            `json:"contact_phone"`
	Profile       ProfileDraft      `json:"profile"`
	Plan          PlanSelection     `json:"plan"`
}
