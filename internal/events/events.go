// Package events publishes domain events about scores and focus lists to a
// message broker so downstream consumers (notifications, CRM sync) can react.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	TypeLeadScored     = "lead.scored"
	TypeFocusGenerated = "focus.generated"
	TypeLeadContacted  = "lead.contacted"
)

// Event is the envelope every published message uses.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	OccurredAt time.Time `json:"occurred_at"`
	Payload    any       `json:"payload"`
}

// LeadScored is the payload of a lead.scored event.
type LeadScored struct {
	LeadID        string `json:"lead_id"`
	PriorityScore int    `json:"priority_score"`
	PriorityLevel string `json:"priority_level"`
	FirstScore    bool   `json:"first_score"`
}

// FocusGenerated is the payload of a focus.generated event.
type FocusGenerated struct {
	Date    string   `json:"date"`
	LeadIDs []string `json:"lead_ids"`
}

// LeadContacted is the payload of a lead.contacted event.
type LeadContacted struct {
	LeadID   string `json:"lead_id"`
	ActionID string `json:"action_id"`
}

// Publisher delivers events. Publish failures never undo the state change
// that produced the event; callers log and move on.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NoopPublisher discards all events.
type NoopPublisher struct{}

// Publish does nothing.
func (NoopPublisher) Publish(context.Context, Event) error { return nil }
