package focus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/prospector/internal/events"
	"github.com/hyperengineering/prospector/internal/store"
	"github.com/hyperengineering/prospector/internal/types"
)

// Defaults applied when Options fields are zero.
const (
	DefaultLimit                      = 5
	DefaultExcludeContactedWithinDays = 7
)

// ErrInvalidDate is returned when a focus date is not formatted YYYY-MM-DD.
var ErrInvalidDate = errors.New("invalid focus date")

// Store defines the store operations needed by the focus service.
type Store interface {
	GetLead(ctx context.Context, id string) (*types.Lead, error)
	ListFocusCandidates(ctx context.Context, userID string) ([]types.FocusCandidate, error)
	GetDailyFocus(ctx context.Context, userID, date string) (*types.DailyFocus, error)
	CreateDailyFocus(ctx context.Context, focus types.DailyFocus) (*types.DailyFocus, bool, error)
	RecordLeadAction(ctx context.Context, action types.LeadAction) (*types.LeadAction, error)
	ContactedLeadIDsBetween(ctx context.Context, userID string, from, to time.Time) ([]string, error)
}

// Options tunes a single Generate call. Zero fields take the service
// defaults. A negative ExcludeContactedWithinDays turns the contacted
// exclusion off; yesterday's focus is still excluded.
type Options struct {
	Limit                      int
	ExcludeContactedWithinDays int
}

// Result is a focus list plus whether this call created it.
type Result struct {
	Focus   *types.DailyFocus
	Created bool
}

// Service generates and records daily focus lists and lead actions.
type Service struct {
	store     Store
	publisher events.Publisher
	defaults  Options
	now       func() time.Time
}

// NewService creates a focus service. Zero fields in defaults fall back to
// DefaultLimit and DefaultExcludeContactedWithinDays.
func NewService(s Store, publisher events.Publisher, defaults Options) *Service {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if defaults.Limit <= 0 {
		defaults.Limit = DefaultLimit
	}
	if defaults.ExcludeContactedWithinDays <= 0 {
		defaults.ExcludeContactedWithinDays = DefaultExcludeContactedWithinDays
	}
	return &Service{
		store:     s,
		publisher: publisher,
		defaults:  defaults,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Defaults returns the options used when a caller passes zero values.
func (s *Service) Defaults() Options {
	return s.defaults
}

// Today returns the current focus date in UTC.
func (s *Service) Today() string {
	return s.now().UTC().Format(types.DateLayout)
}

// Get returns the stored focus for (userID, date), or store.ErrFocusNotFound.
func (s *Service) Get(ctx context.Context, userID, date string) (*types.DailyFocus, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	return s.store.GetDailyFocus(ctx, userID, date)
}

// Generate returns the focus list for (userID, date), computing and storing
// it when none exists. An existing list is returned unchanged.
func (s *Service) Generate(ctx context.Context, userID, date string, opts Options) (*Result, error) {
	day, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	opts = s.withDefaults(opts)

	existing, err := s.store.GetDailyFocus(ctx, userID, date)
	if err == nil {
		return &Result{Focus: existing}, nil
	}
	if !errors.Is(err, store.ErrFocusNotFound) {
		return nil, fmt.Errorf("load focus: %w", err)
	}

	excluded, err := s.exclusions(ctx, userID, day, opts.ExcludeContactedWithinDays)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.ListFocusCandidates(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list focus candidates: %w", err)
	}

	ids := Select(candidates, excluded, opts.Limit)

	focus, created, err := s.store.CreateDailyFocus(ctx, types.DailyFocus{
		UserID:      userID,
		Date:        date,
		LeadIDs:     ids,
		GeneratedAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("save focus: %w", err)
	}

	if created {
		slog.Info("daily focus generated",
			"component", "focus",
			"user_id", userID,
			"date", date,
			"leads", len(focus.LeadIDs),
			"candidates", len(candidates),
			"excluded", len(excluded),
		)
		s.publish(ctx, events.Event{
			Type:       events.TypeFocusGenerated,
			UserID:     userID,
			OccurredAt: focus.GeneratedAt,
			Payload:    events.FocusGenerated{Date: date, LeadIDs: focus.LeadIDs},
		})
	}

	return &Result{Focus: focus, Created: created}, nil
}

// exclusions returns leads contacted within the window plus yesterday's focus.
// The window is the days calendar days ending with day, so a focus list for
// another date is judged by the contacts around that date.
func (s *Service) exclusions(ctx context.Context, userID string, day time.Time, days int) (map[string]bool, error) {
	excluded := make(map[string]bool)

	if days > 0 {
		end := day.AddDate(0, 0, 1)
		contacted, err := s.store.ContactedLeadIDsBetween(ctx, userID, end.AddDate(0, 0, -days), end)
		if err != nil {
			return nil, fmt.Errorf("list contacted leads: %w", err)
		}
		for _, id := range contacted {
			excluded[id] = true
		}
	}

	yesterday := day.AddDate(0, 0, -1).Format(types.DateLayout)
	prev, err := s.store.GetDailyFocus(ctx, userID, yesterday)
	switch {
	case err == nil:
		for _, id := range prev.LeadIDs {
			excluded[id] = true
		}
	case !errors.Is(err, store.ErrFocusNotFound):
		return nil, fmt.Errorf("load previous focus: %w", err)
	}

	return excluded, nil
}

// MarkContacted records that userID contacted leadID.
func (s *Service) MarkContacted(ctx context.Context, userID, leadID string, metadata map[string]any) (*types.LeadAction, error) {
	return s.RecordAction(ctx, userID, leadID, types.ActionContacted, metadata)
}

// RecordAction appends an action on a lead owned by userID. A lead owned by
// someone else is reported as store.ErrLeadNotFound.
func (s *Service) RecordAction(ctx context.Context, userID, leadID string, actionType types.ActionType, metadata map[string]any) (*types.LeadAction, error) {
	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}
	if lead.UserID != userID {
		return nil, store.ErrLeadNotFound
	}

	action, err := s.store.RecordLeadAction(ctx, types.LeadAction{
		UserID:     userID,
		LeadID:     leadID,
		Type:       actionType,
		Metadata:   metadata,
		OccurredAt: s.now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record %s action: %w", actionType, err)
	}

	if actionType == types.ActionContacted {
		s.publish(ctx, events.Event{
			Type:       events.TypeLeadContacted,
			UserID:     userID,
			OccurredAt: action.OccurredAt,
			Payload:    events.LeadContacted{LeadID: leadID, ActionID: action.ID},
		})
	}
	return action, nil
}

func (s *Service) withDefaults(opts Options) Options {
	if opts.Limit <= 0 {
		opts.Limit = s.defaults.Limit
	}
	if opts.ExcludeContactedWithinDays == 0 {
		opts.ExcludeContactedWithinDays = s.defaults.ExcludeContactedWithinDays
	}
	return opts
}

func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("event publish failed",
			"component", "focus",
			"event", ev.Type,
			"error", err,
		)
	}
}

func parseDate(date string) (time.Time, error) {
	t, err := time.Parse(types.DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	return t, nil
}
