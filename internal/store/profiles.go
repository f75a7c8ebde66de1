package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hyperengineering/prospector/internal/types"
)

// UpsertProfile creates or replaces a user's target-buyer profile.
func (s *SQLStore) UpsertProfile(ctx context.Context, p types.TargetBuyerProfile) (*types.TargetBuyerProfile, error) {
	if p.TargetIndustries == nil {
		p.TargetIndustries = []string{}
	}
	if p.TargetTitles == nil {
		p.TargetTitles = []string{}
	}
	industries, err := json.Marshal(p.TargetIndustries)
	if err != nil {
		return nil, fmt.Errorf("marshal target industries: %w", err)
	}
	titles, err := json.Marshal(p.TargetTitles)
	if err != nil {
		return nil, fmt.Errorf("marshal target titles: %w", err)
	}
	p.UpdatedAt = time.Now().UTC()

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO buyer_profiles (user_id, target_industries, target_titles, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			target_industries = excluded.target_industries,
			target_titles = excluded.target_titles,
			updated_at = excluded.updated_at
	`), p.UserID, string(industries), string(titles), formatTime(p.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("upsert profile: %w", err)
	}

	return &p, nil
}

// GetProfile returns the target-buyer profile for userID.
func (s *SQLStore) GetProfile(ctx context.Context, userID string) (*types.TargetBuyerProfile, error) {
	var industries, titles, updatedAt string
	err := s.db.QueryRowContext(ctx, s.rebind(`
		SELECT target_industries, target_titles, updated_at
		FROM buyer_profiles
		WHERE user_id = ?
	`), userID).Scan(&industries, &titles, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("query profile: %w", err)
	}

	p := types.TargetBuyerProfile{UserID: userID, UpdatedAt: parseTime(updatedAt)}
	if err := json.Unmarshal([]byte(industries), &p.TargetIndustries); err != nil {
		return nil, fmt.Errorf("parse target industries: %w", err)
	}
	if err := json.Unmarshal([]byte(titles), &p.TargetTitles); err != nil {
		return nil, fmt.Errorf("parse target titles: %w", err)
	}
	return &p, nil
}
