package types

import (
	"time"
)

// SignalType classifies a buying signal observed on a lead's company.
type SignalType string

const (
	SignalFunding          SignalType = "funding"
	SignalLeadershipChange SignalType = "leadership_change"
	SignalHiring           SignalType = "hiring"
	SignalExpansion        SignalType = "expansion"
	SignalNews             SignalType = "news"
	SignalProductLaunch    SignalType = "product_launch"
)

// KnownSignalTypes lists the signal types that carry score points.
var KnownSignalTypes = []SignalType{
	SignalFunding,
	SignalLeadershipChange,
	SignalHiring,
	SignalExpansion,
	SignalNews,
	SignalProductLaunch,
}

// IsKnown reports whether t is one of the scored signal types.
func (t SignalType) IsKnown() bool {
	for _, k := range KnownSignalTypes {
		if t == k {
			return true
		}
	}
	return false
}

// BuyingSignal is an immutable fact about a lead's company, produced upstream.
type BuyingSignal struct {
	Type        SignalType `json:"type"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Date        *time.Time `json:"date,omitempty"`
}

// PriorityLevel is the coarse bucket derived from a lead's score.
type PriorityLevel string

const (
	PriorityHigh   PriorityLevel = "high"
	PriorityMedium PriorityLevel = "medium"
	PriorityLow    PriorityLevel = "low"
)

// BreakdownCategory separates buying-signal contributions from fit contributions.
type BreakdownCategory string

const (
	CategoryBuyingSignal BreakdownCategory = "buying_signal"
	CategoryFit          BreakdownCategory = "fit"
)

// BreakdownEntry is one line of scoring provenance.
type BreakdownEntry struct {
	SignalType string            `json:"signal_type"`
	Name       string            `json:"name"`
	Points     int               `json:"points"`
	Category   BreakdownCategory `json:"category"`
}

// LeadScore is the output of a scoring run.
// PriorityScore always equals BuyingSignalScore + FitScore.
type LeadScore struct {
	PriorityScore     int              `json:"priority_score"`
	PriorityLevel     PriorityLevel    `json:"priority_level"`
	BuyingSignalScore int              `json:"buying_signal_score"`
	FitScore          int              `json:"fit_score"`
	Breakdown         []BreakdownEntry `json:"signal_breakdown"`
}

// TargetBuyerProfile holds a user's declared target industries and title keywords.
type TargetBuyerProfile struct {
	UserID           string    `json:"user_id"`
	TargetIndustries []string  `json:"target_industries"`
	TargetTitles     []string  `json:"target_titles"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Lead is a prospect record owned by exactly one user.
type Lead struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Name           string         `json:"name"`
	Company        string         `json:"company"`
	Industry       string         `json:"industry,omitempty"`
	Title          string         `json:"title,omitempty"`
	Signals        []BuyingSignal `json:"signals"`
	Score          *LeadScore     `json:"score,omitempty"`
	FirstScoredAt  *time.Time     `json:"first_scored_at,omitempty"`
	LastRescoredAt *time.Time     `json:"last_rescored_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewLead carries the fields needed to create a lead.
type NewLead struct {
	UserID   string
	Name     string
	Company  string
	Industry string
	Title    string
	Signals  []BuyingSignal
}

// FocusCandidate is the projection of a scored lead used by focus selection.
type FocusCandidate struct {
	LeadID        string        `json:"lead_id"`
	Company       string        `json:"company"`
	Industry      string        `json:"industry"`
	PriorityScore int           `json:"priority_score"`
	PriorityLevel PriorityLevel `json:"priority_level"`
}

// DateLayout is the calendar-date format used for daily focus keys.
const DateLayout = "2006-01-02"

// DailyFocus is the ordered set of leads a user is nudged to act on for one date.
// Position 0 is the top priority. Records are never updated after creation.
type DailyFocus struct {
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	LeadIDs     []string  `json:"lead_ids"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ActionType enumerates the lead actions a user can take.
type ActionType string

const (
	ActionContacted         ActionType = "contacted"
	ActionViewed            ActionType = "viewed"
	ActionAddedToFocus      ActionType = "added_to_focus"
	ActionGeneratedOutreach ActionType = "generated_outreach"
)

// LeadAction is an append-only user event on a lead.
type LeadAction struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	LeadID     string         `json:"lead_id"`
	Type       ActionType     `json:"action_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// StoreStats holds aggregate counters for the health endpoint.
type StoreStats struct {
	LeadCount   int64 `json:"lead_count"`
	ScoredCount int64 `json:"scored_count"`
	UserCount   int64 `json:"user_count"`
}
