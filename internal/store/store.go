package store

import (
	"context"
	"time"

	"github.com/hyperengineering/prospector/internal/types"
)

// Store defines the interface contract for all lead, score, focus, and action persistence.
type Store interface {
	UpsertProfile(ctx context.Context, profile types.TargetBuyerProfile) (*types.TargetBuyerProfile, error)
	GetProfile(ctx context.Context, userID string) (*types.TargetBuyerProfile, error)

	CreateLead(ctx context.Context, lead types.NewLead) (*types.Lead, error)
	GetLead(ctx context.Context, id string) (*types.Lead, error)
	ListLeadsByUser(ctx context.Context, userID string) ([]types.Lead, error)
	ListLeadOwners(ctx context.Context) ([]string, error)

	// SaveLeadScore writes a score and reports whether this was the lead's first.
	// The first-score decision reads the stored first_scored_at inside the same
	// row update, so the write is atomic per lead.
	SaveLeadScore(ctx context.Context, leadID, userID string, score types.LeadScore, at time.Time) (bool, error)

	ListFocusCandidates(ctx context.Context, userID string) ([]types.FocusCandidate, error)
	GetDailyFocus(ctx context.Context, userID, date string) (*types.DailyFocus, error)
	// CreateDailyFocus inserts focus unless a record for (user, date) exists,
	// in which case the existing record is returned with created=false.
	CreateDailyFocus(ctx context.Context, focus types.DailyFocus) (*types.DailyFocus, bool, error)

	RecordLeadAction(ctx context.Context, action types.LeadAction) (*types.LeadAction, error)
	ContactedLeadIDsBetween(ctx context.Context, userID string, from, to time.Time) ([]string, error)

	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
