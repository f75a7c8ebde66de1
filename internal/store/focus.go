package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hyperengineering/prospector/internal/types"
)

// GetDailyFocus returns the focus record for (userID, date).
func (s *SQLStore) GetDailyFocus(ctx context.Context, userID, date string) (*types.DailyFocus, error) {
	var leadIDs, generatedAt string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT lead_ids, generated_at
		FROM daily_focus
		WHERE user_id = ? AND focus_date = ?
	`), userID, date).Scan(&leadIDs, &generatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFocusNotFound
		}
		return nil, fmt.Errorf("query daily focus: %w", err)
	}

	focus := types.DailyFocus{
		UserID:      userID,
		Date:        date,
		GeneratedAt: parseTime(generatedAt),
	}
	if err := json.Unmarshal([]byte(leadIDs), &focus.LeadIDs); err != nil {
		return nil, fmt.Errorf("parse focus lead ids: %w", err)
	}
	if focus.LeadIDs == nil {
		focus.LeadIDs = []string{}
	}
	return &focus, nil
}

// CreateDailyFocus inserts a focus record if none exists for (user, date).
// When another writer got there first the stored record wins and is returned.
func (s *SQLStore) CreateDailyFocus(ctx context.Context, focus types.DailyFocus) (*types.DailyFocus, bool, error) {
	if focus.LeadIDs == nil {
		focus.LeadIDs = []string{}
	}
	ids, err := json.Marshal(focus.LeadIDs)
	if err != nil {
		return nil, false, fmt.Errorf("marshal focus lead ids: %w", err)
	}

	result, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO daily_focus (user_id, focus_date, lead_ids, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, focus_date) DO NOTHING
	`), focus.UserID, focus.Date, string(ids), formatTime(focus.GeneratedAt))
	if err != nil {
		return nil, false, fmt.Errorf("insert daily focus: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		existing, err := s.GetDailyFocus(ctx, focus.UserID, focus.Date)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}

	return &focus, true, nil
}
