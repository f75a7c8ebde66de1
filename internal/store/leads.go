package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperengineering/prospector/internal/types"
	"github.com/oklog/ulid/v2"
)

const leadColumns = `
	id, user_id, name, company, industry, title, signals,
	priority_score, priority_level, buying_signal_score, fit_score, signal_breakdown,
	first_scored_at, last_rescored_at, created_at, updated_at`

// CreateLead stores a new, unscored lead and returns it with its assigned ID.
func (s *SQLStore) CreateLead(ctx context.Context, nl types.NewLead) (*types.Lead, error) {
	signals := nl.Signals
	if signals == nil {
		signals = []types.BuyingSignal{}
	}
	signalsJSON, err := json.Marshal(signals)
	if err != nil {
		return nil, fmt.Errorf("marshal signals: %w", err)
	}

	now := time.Now().UTC()
	lead := types.Lead{
		ID:        ulid.Make().String(),
		UserID:    nl.UserID,
		Name:      nl.Name,
		Company:   nl.Company,
		Industry:  nl.Industry,
		Title:     nl.Title,
		Signals:   signals,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO leads (id, user_id, name, company, industry, title, signals, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`), lead.ID, lead.UserID, lead.Name, lead.Company, lead.Industry, lead.Title,
		string(signalsJSON), formatTime(now), formatTime(now))
	if err != nil {
		return nil, fmt.Errorf("insert lead: %w", err)
	}

	return &lead, nil
}

// GetLead retrieves a lead by ID.
func (s *SQLStore) GetLead(ctx context.Context, id string) (*types.Lead, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+leadColumns+` FROM leads WHERE id = ?`), id)

	lead, err := scanLead(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("scan lead: %w", err)
	}
	return lead, nil
}

// ListLeadsByUser returns all leads owned by userID in creation order.
func (s *SQLStore) ListLeadsByUser(ctx context.Context, userID string) ([]types.Lead, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT `+leadColumns+`
		FROM leads
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("query leads: %w", err)
	}
	defer rows.Close()

	var leads []types.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, *lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leads: %w", err)
	}
	return leads, nil
}

// ListLeadOwners returns every distinct user that owns at least one lead.
func (s *SQLStore) ListLeadOwners(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM leads ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("query lead owners: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan lead owner: %w", err)
		}
		users = append(users, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lead owners: %w", err)
	}
	return users, nil
}

// SaveLeadScore writes score fields for a lead owned by userID.
//
// SET expressions see the row's values from before the update, so
// first_scored_at is only filled when it was NULL and last_rescored_at is
// only set once a first score exists. RETURNING reports which branch ran.
func (s *SQLStore) SaveLeadScore(ctx context.Context, leadID, userID string, score types.LeadScore, at time.Time) (bool, error) {
	breakdown := score.Breakdown
	if breakdown == nil {
		breakdown = []types.BreakdownEntry{}
	}
	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return false, fmt.Errorf("marshal breakdown: %w", err)
	}

	ts := formatTime(at)
	var lastRescored sql.NullString
	err = s.db.QueryRowContext(ctx, s.rebind(`
		UPDATE leads SET
			priority_score = ?,
			priority_level = ?,
			buying_signal_score = ?,
			fit_score = ?,
			signal_breakdown = ?,
			last_rescored_at = CASE WHEN first_scored_at IS NULL THEN NULL ELSE ? END,
			first_scored_at = COALESCE(first_scored_at, ?),
			updated_at = ?
		WHERE id = ? AND user_id = ?
		RETURNING last_rescored_at
	`), score.PriorityScore, string(score.PriorityLevel), score.BuyingSignalScore, score.FitScore,
		string(breakdownJSON), ts, ts, ts, leadID, userID).Scan(&lastRescored)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrLeadNotFound
		}
		return false, fmt.Errorf("update lead score: %w", err)
	}

	return !lastRescored.Valid, nil
}

// ListFocusCandidates returns the user's high and medium leads ordered by
// score descending. Ties keep creation order so the result is stable.
func (s *SQLStore) ListFocusCandidates(ctx context.Context, userID string) ([]types.FocusCandidate, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, company, industry, priority_score, priority_level
		FROM leads
		WHERE user_id = ? AND priority_level IN (?, ?)
		ORDER BY priority_score DESC, created_at ASC, id ASC
	`), userID, string(types.PriorityHigh), string(types.PriorityMedium))
	if err != nil {
		return nil, fmt.Errorf("query focus candidates: %w", err)
	}
	defer rows.Close()

	var out []types.FocusCandidate
	for rows.Next() {
		var c types.FocusCandidate
		var level string
		if err := rows.Scan(&c.LeadID, &c.Company, &c.Industry, &c.PriorityScore, &level); err != nil {
			return nil, fmt.Errorf("scan focus candidate: %w", err)
		}
		c.PriorityLevel = types.PriorityLevel(level)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate focus candidates: %w", err)
	}
	return out, nil
}

// scanLead scans a row into a Lead, handling JSON columns and nullable score fields.
func scanLead(scanner interface{ Scan(...any) error }) (*types.Lead, error) {
	var lead types.Lead
	var signalsJSON string
	var priorityScore, buyingScore, fitScore sql.NullInt64
	var level, breakdownJSON sql.NullString
	var firstScored, lastRescored sql.NullString
	var createdAt, updatedAt string

	err := scanner.Scan(
		&lead.ID,
		&lead.UserID,
		&lead.Name,
		&lead.Company,
		&lead.Industry,
		&lead.Title,
		&signalsJSON,
		&priorityScore,
		&level,
		&buyingScore,
		&fitScore,
		&breakdownJSON,
		&firstScored,
		&lastRescored,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(signalsJSON) != "" {
		if err := json.Unmarshal([]byte(signalsJSON), &lead.Signals); err != nil {
			return nil, fmt.Errorf("parse signals JSON: %w", err)
		}
	}
	if lead.Signals == nil {
		lead.Signals = []types.BuyingSignal{}
	}

	if level.Valid && level.String != "" {
		score := &types.LeadScore{
			PriorityScore:     int(priorityScore.Int64),
			PriorityLevel:     types.PriorityLevel(level.String),
			BuyingSignalScore: int(buyingScore.Int64),
			FitScore:          int(fitScore.Int64),
			Breakdown:         []types.BreakdownEntry{},
		}
		if breakdownJSON.Valid && breakdownJSON.String != "" {
			if err := json.Unmarshal([]byte(breakdownJSON.String), &score.Breakdown); err != nil {
				return nil, fmt.Errorf("parse breakdown JSON: %w", err)
			}
		}
		lead.Score = score
	}

	lead.FirstScoredAt = parseNullTime(firstScored)
	lead.LastRescoredAt = parseNullTime(lastRescored)
	lead.CreatedAt = parseTime(createdAt)
	lead.UpdatedAt = parseTime(updatedAt)

	return &lead, nil
}
