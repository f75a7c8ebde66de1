package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hyperengineering/prospector/internal/events"
	"github.com/hyperengineering/prospector/internal/lock"
	"github.com/hyperengineering/prospector/internal/types"
)

// Store defines the store operations needed to score a lead.
type Store interface {
	GetLead(ctx context.Context, id string) (*types.Lead, error)
	GetProfile(ctx context.Context, userID string) (*types.TargetBuyerProfile, error)
	SaveLeadScore(ctx context.Context, leadID, userID string, score types.LeadScore, at time.Time) (bool, error)
}

// Outcome is the result of ScoreLead. Lead reflects the stored row after the
// run, including its score and score timestamps.
type Outcome struct {
	Lead       *types.Lead
	FirstScore bool
	Cached     bool
}

// Response converts the outcome to its API shape.
func (o *Outcome) Response() types.ScoreResponse {
	return types.ScoreResponse{
		LeadID:         o.Lead.ID,
		Scored:         o.Lead.Score != nil,
		Cached:         o.Cached,
		FirstScore:     o.FirstScore,
		FirstScoredAt:  o.Lead.FirstScoredAt,
		LastRescoredAt: o.Lead.LastRescoredAt,
		LeadScore:      o.Lead.Score,
	}
}

// Service scores leads against their owner's target-buyer profile and
// persists the result. Writes for one lead are serialized by the locker.
type Service struct {
	store     Store
	locker    lock.Locker
	publisher events.Publisher
	now       func() time.Time
}

// NewService creates a scoring service. A nil locker or publisher falls back
// to the in-process locker and the no-op publisher.
func NewService(store Store, locker lock.Locker, publisher events.Publisher) *Service {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		store:     store,
		locker:    locker,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source. Used by tests.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// ScoreLead computes and stores the score for leadID.
//
// Unless force is set, a lead that already has a stored score is returned
// as-is with Cached=true. Returns store.ErrLeadNotFound or
// store.ErrProfileNotFound when either record is missing.
func (s *Service) ScoreLead(ctx context.Context, leadID string, force bool) (*Outcome, error) {
	release, err := s.locker.Lock(ctx, "lead:"+leadID)
	if err != nil {
		return nil, fmt.Errorf("lock lead %s: %w", leadID, err)
	}
	defer release()

	lead, err := s.store.GetLead(ctx, leadID)
	if err != nil {
		return nil, err
	}

	if !force && lead.Score != nil && lead.FirstScoredAt != nil {
		return &Outcome{Lead: lead, Cached: true}, nil
	}

	profile, err := s.store.GetProfile(ctx, lead.UserID)
	if err != nil {
		return nil, err
	}

	score := Score(lead.Signals, lead.Industry, lead.Title, profile.TargetIndustries, profile.TargetTitles)
	at := s.now()

	first, err := s.store.SaveLeadScore(ctx, lead.ID, lead.UserID, score, at)
	if err != nil {
		return nil, fmt.Errorf("save score for lead %s: %w", lead.ID, err)
	}

	lead.Score = &score
	if first {
		lead.FirstScoredAt = &at
		lead.LastRescoredAt = nil
	} else {
		lead.LastRescoredAt = &at
	}
	lead.UpdatedAt = at

	slog.Debug("lead scored",
		"component", "scoring",
		"lead_id", lead.ID,
		"user_id", lead.UserID,
		"priority_score", score.PriorityScore,
		"priority_level", score.PriorityLevel,
		"first_score", first,
	)

	s.publish(ctx, events.Event{
		Type:       events.TypeLeadScored,
		UserID:     lead.UserID,
		OccurredAt: at,
		Payload: events.LeadScored{
			LeadID:        lead.ID,
			PriorityScore: score.PriorityScore,
			PriorityLevel: string(score.PriorityLevel),
			FirstScore:    first,
		},
	})

	return &Outcome{Lead: lead, FirstScore: first}, nil
}

// publish sends an event. The score is already stored, so failures are logged only.
func (s *Service) publish(ctx context.Context, ev events.Event) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("event publish failed",
			"component", "scoring",
			"event", ev.Type,
			"error", err,
		)
	}
}
