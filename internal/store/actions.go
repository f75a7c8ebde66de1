package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hyperengineering/prospector/internal/types"
	"github.com/oklog/ulid/v2"
)

// RecordLeadAction appends an action to the log. ID and OccurredAt are
// assigned when empty.
func (s *SQLStore) RecordLeadAction(ctx context.Context, action types.LeadAction) (*types.LeadAction, error) {
	if action.ID == "" {
		action.ID = ulid.Make().String()
	}
	if action.OccurredAt.IsZero() {
		action.OccurredAt = time.Now().UTC()
	}
	if action.Metadata == nil {
		action.Metadata = map[string]any{}
	}
	metadata, err := json.Marshal(action.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal action metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO lead_actions (id, user_id, lead_id, action_type, metadata, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`), action.ID, action.UserID, action.LeadID, string(action.Type), string(metadata), formatTime(action.OccurredAt))
	if err != nil {
		return nil, fmt.Errorf("insert lead action: %w", err)
	}

	return &action, nil
}

// ContactedLeadIDsBetween returns the distinct lead IDs userID marked
// contacted in [from, to).
func (s *SQLStore) ContactedLeadIDsBetween(ctx context.Context, userID string, from, to time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT DISTINCT lead_id
		FROM lead_actions
		WHERE user_id = ? AND action_type = ? AND occurred_at >= ? AND occurred_at < ?
		ORDER BY lead_id
	`), userID, string(types.ActionContacted), formatTime(from), formatTime(to))
	if err != nil {
		return nil, fmt.Errorf("query contacted leads: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan contacted lead: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacted leads: %w", err)
	}
	return ids, nil
}
