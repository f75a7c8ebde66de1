package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hyperengineering/prospector/internal/focus"
	"github.com/hyperengineering/prospector/internal/report"
	"github.com/hyperengineering/prospector/internal/scoring"
	"github.com/hyperengineering/prospector/internal/types"
)

// SweepStore defines the store operations needed to enumerate sweep units.
type SweepStore interface {
	ListLeadOwners(ctx context.Context) ([]string, error)
	ListLeadsByUser(ctx context.Context, userID string) ([]types.Lead, error)
}

// LeadScorer scores a single lead. Implemented by scoring.Service.
type LeadScorer interface {
	ScoreLead(ctx context.Context, leadID string, force bool) (*scoring.Outcome, error)
}

// FocusGenerator builds a user's focus list. Implemented by focus.Service.
type FocusGenerator interface {
	Today() string
	Generate(ctx context.Context, userID, date string, opts focus.Options) (*focus.Result, error)
}

// Sweeper runs the batch re-score and daily-focus sweeps over every user
// that owns leads. A failing unit is recorded in the summary and never stops
// the sweep; only failing to enumerate users aborts it.
type Sweeper struct {
	store       SweepStore
	scorer      LeadScorer
	focus       FocusGenerator
	archiver    report.Archiver
	concurrency int
	now         func() time.Time
}

// NewSweeper creates a sweeper that processes up to concurrency users at once.
func NewSweeper(store SweepStore, scorer LeadScorer, focuser FocusGenerator, archiver report.Archiver, concurrency int) *Sweeper {
	if concurrency < 1 {
		concurrency = 1
	}
	if archiver == nil {
		archiver = report.NoopArchiver{}
	}
	return &Sweeper{
		store:       store,
		scorer:      scorer,
		focus:       focuser,
		archiver:    archiver,
		concurrency: concurrency,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// tally accumulates unit results from concurrent user goroutines.
type tally struct {
	mu        sync.Mutex
	succeeded int
	existing  int
	failed    int
	leads     int
	failures  []types.UnitFailure
}

func (t *tally) ok() {
	t.mu.Lock()
	t.succeeded++
	t.mu.Unlock()
}

func (t *tally) alreadyExisted() {
	t.mu.Lock()
	t.existing++
	t.mu.Unlock()
}

func (t *tally) addLeads(n int) {
	t.mu.Lock()
	t.leads += n
	t.mu.Unlock()
}

func (t *tally) fail(userID, leadID string, err error) {
	t.mu.Lock()
	t.failed++
	t.failures = append(t.failures, types.UnitFailure{UserID: userID, LeadID: leadID, Error: err.Error()})
	t.mu.Unlock()
}

func (t *tally) sortedFailures() []types.UnitFailure {
	out := append([]types.UnitFailure{}, t.failures...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].LeadID < out[j].LeadID
	})
	return out
}

// RescoreAll force re-scores every lead of every user.
func (s *Sweeper) RescoreAll(ctx context.Context) (*types.RescoreSummary, error) {
	const sweep = report.KindRescore
	start := s.now()

	users, err := s.store.ListLeadOwners(ctx)
	if err != nil {
		sweepRunsTotal.WithLabelValues(sweep, "aborted").Inc()
		slog.Error("sweep aborted",
			"component", "worker",
			"worker", "rescore-sweep",
			"error", err,
		)
		return nil, fmt.Errorf("list lead owners: %w", err)
	}

	t := &tally{}
	s.eachUser(ctx, users, func(userID string) {
		s.rescoreUser(ctx, userID, t)
	})

	summary := &types.RescoreSummary{
		TotalUsers:  len(users),
		TotalLeads:  t.leads,
		Succeeded:   t.succeeded,
		Failed:      t.failed,
		SuccessRate: types.SuccessRate(t.succeeded, t.succeeded+t.failed),
		Failures:    t.sortedFailures(),
		StartedAt:   start,
		DurationMS:  time.Since(start).Milliseconds(),
	}

	sweepUnitsTotal.WithLabelValues(sweep, "succeeded").Add(float64(t.succeeded))
	sweepUnitsTotal.WithLabelValues(sweep, "failed").Add(float64(t.failed))

	if ctx.Err() != nil {
		sweepRunsTotal.WithLabelValues(sweep, "cancelled").Inc()
		return summary, ctx.Err()
	}

	sweepRunsTotal.WithLabelValues(sweep, "completed").Inc()
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
	summary.ReportKey = s.archive(ctx, sweep, start, summary)

	slog.Info("rescore sweep completed",
		"component", "worker",
		"worker", "rescore-sweep",
		"users", summary.TotalUsers,
		"leads", summary.TotalLeads,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"success_rate", summary.SuccessRate,
		"duration_ms", summary.DurationMS,
	)
	return summary, nil
}

func (s *Sweeper) rescoreUser(ctx context.Context, userID string, t *tally) {
	leads, err := s.store.ListLeadsByUser(ctx, userID)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("failed to list leads for rescore",
			"component", "worker",
			"worker", "rescore-sweep",
			"user_id", userID,
			"error", err,
		)
		t.fail(userID, "", fmt.Errorf("list leads: %w", err))
		return
	}
	t.addLeads(len(leads))

	for _, lead := range leads {
		if ctx.Err() != nil {
			return // Graceful shutdown
		}
		if _, err := s.scorer.ScoreLead(ctx, lead.ID, true); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("rescore failed for lead",
				"component", "worker",
				"worker", "rescore-sweep",
				"user_id", userID,
				"lead_id", lead.ID,
				"error", err,
			)
			t.fail(userID, lead.ID, err)
			continue
		}
		t.ok()
	}
}

// GenerateDailyFocus builds today's focus list for every user that lacks one.
// Users who already have one are counted and left untouched.
func (s *Sweeper) GenerateDailyFocus(ctx context.Context) (*types.FocusSweepSummary, error) {
	const sweep = report.KindDailyFocus
	start := s.now()
	date := s.focus.Today()

	users, err := s.store.ListLeadOwners(ctx)
	if err != nil {
		sweepRunsTotal.WithLabelValues(sweep, "aborted").Inc()
		slog.Error("sweep aborted",
			"component", "worker",
			"worker", "focus-sweep",
			"error", err,
		)
		return nil, fmt.Errorf("list lead owners: %w", err)
	}

	t := &tally{}
	s.eachUser(ctx, users, func(userID string) {
		res, err := s.focus.Generate(ctx, userID, date, focus.Options{})
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("focus generation failed for user",
				"component", "worker",
				"worker", "focus-sweep",
				"user_id", userID,
				"error", err,
			)
			t.fail(userID, "", err)
			return
		}
		if res.Created {
			t.ok()
		} else {
			t.alreadyExisted()
		}
	})

	summary := &types.FocusSweepSummary{
		Date:           date,
		UsersProcessed: len(users),
		Generated:      t.succeeded,
		AlreadyExisted: t.existing,
		Failed:         t.failed,
		SuccessRate:    types.SuccessRate(t.succeeded+t.existing, t.succeeded+t.existing+t.failed),
		Failures:       t.sortedFailures(),
		StartedAt:      start,
		DurationMS:     time.Since(start).Milliseconds(),
	}

	sweepUnitsTotal.WithLabelValues(sweep, "succeeded").Add(float64(t.succeeded))
	sweepUnitsTotal.WithLabelValues(sweep, "existing").Add(float64(t.existing))
	sweepUnitsTotal.WithLabelValues(sweep, "failed").Add(float64(t.failed))

	if ctx.Err() != nil {
		sweepRunsTotal.WithLabelValues(sweep, "cancelled").Inc()
		return summary, ctx.Err()
	}

	sweepRunsTotal.WithLabelValues(sweep, "completed").Inc()
	sweepDuration.WithLabelValues(sweep).Observe(time.Since(start).Seconds())
	summary.ReportKey = s.archive(ctx, sweep, start, summary)

	slog.Info("focus sweep completed",
		"component", "worker",
		"worker", "focus-sweep",
		"date", date,
		"users", summary.UsersProcessed,
		"generated", summary.Generated,
		"already_existed", summary.AlreadyExisted,
		"failed", summary.Failed,
		"success_rate", summary.SuccessRate,
		"duration_ms", summary.DurationMS,
	)
	return summary, nil
}

// eachUser runs fn for every user with bounded concurrency. fn never fails
// the group, so one user's error cannot cancel the others.
func (s *Sweeper) eachUser(ctx context.Context, users []string, fn func(userID string)) {
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			fn(userID)
			return nil
		})
	}
	_ = g.Wait()
}

// archive stores the summary and returns its key. Failures are logged only.
func (s *Sweeper) archive(ctx context.Context, kind string, start time.Time, summary any) string {
	key, err := s.archiver.Archive(ctx, kind, start, summary)
	if err != nil {
		slog.Warn("failed to archive sweep report",
			"component", "worker",
			"sweep", kind,
			"error", err,
		)
		return ""
	}
	return key
}
