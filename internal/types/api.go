package types

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status      string `json:"status"`
	Version     string `json:"version"`
	LeadCount   int64  `json:"lead_count"`
	ScoredCount int64  `json:"scored_count"`
	UserCount   int64  `json:"user_count"`
}

// ProfileRequest is the body of PUT /users/{userID}/profile.
type ProfileRequest struct {
	TargetIndustries []string `json:"target_industries" validate:"max=50,dive,max=200"`
	TargetTitles     []string `json:"target_titles" validate:"max=50,dive,max=200"`
}

// SignalInput is one signal in a lead creation request. Type may be empty,
// in which case the configured classifier assigns one.
type SignalInput struct {
	Type        string     `json:"type" validate:"max=64"`
	Title       string     `json:"title" validate:"required,max=500"`
	Description string     `json:"description" validate:"max=5000"`
	Date        *time.Time `json:"date,omitempty"`
}

// CreateLeadRequest is the body of POST /users/{userID}/leads.
type CreateLeadRequest struct {
	Name     string        `json:"name" validate:"required,max=200"`
	Company  string        `json:"company" validate:"required,max=200"`
	Industry string        `json:"industry" validate:"max=200"`
	Title    string        `json:"title" validate:"max=200"`
	Signals  []SignalInput `json:"signals" validate:"max=100,dive"`
}

// CreateLeadResponse is returned after a lead is created and scored.
type CreateLeadResponse struct {
	Lead   Lead   `json:"lead"`
	Scored bool   `json:"scored"`
	Error  string `json:"score_error,omitempty"`
}

// ScoreResponse is returned by the lead score endpoints.
type ScoreResponse struct {
	LeadID         string     `json:"lead_id"`
	Scored         bool       `json:"scored"`
	Cached         bool       `json:"cached,omitempty"`
	FirstScore     bool       `json:"first_score,omitempty"`
	FirstScoredAt  *time.Time `json:"first_scored_at,omitempty"`
	LastRescoredAt *time.Time `json:"last_rescored_at,omitempty"`
	*LeadScore
}

// FocusStatus tells the caller how a focus response was produced.
type FocusStatus string

const (
	FocusGenerated FocusStatus = "generated"
	FocusExisting  FocusStatus = "existing"
)

// FocusResponse is returned by GET /users/{userID}/focus.
type FocusResponse struct {
	DailyFocus
	Status  FocusStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}

// ContactedRequest is the body of POST /users/{userID}/leads/{leadID}/contacted.
type ContactedRequest struct {
	Metadata map[string]any `json:"metadata"`
}

// UnitFailure records one failed unit of work inside a sweep.
type UnitFailure struct {
	UserID string `json:"user_id"`
	LeadID string `json:"lead_id,omitempty"`
	Error  string `json:"error"`
}

// RescoreSummary is the aggregate result of a re-score sweep.
type RescoreSummary struct {
	TotalUsers  int           `json:"total_users"`
	TotalLeads  int           `json:"total_leads"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	SuccessRate float64       `json:"success_rate"`
	Failures    []UnitFailure `json:"failures"`
	StartedAt   time.Time     `json:"started_at"`
	DurationMS  int64         `json:"duration_ms"`
	ReportKey   string        `json:"report_key,omitempty"`
}

// FocusSweepSummary is the aggregate result of a daily-focus sweep.
type FocusSweepSummary struct {
	Date           string        `json:"date"`
	UsersProcessed int           `json:"users_processed"`
	Generated      int           `json:"generated"`
	AlreadyExisted int           `json:"already_existed"`
	Failed         int           `json:"failed"`
	SuccessRate    float64       `json:"success_rate"`
	Failures       []UnitFailure `json:"failures"`
	StartedAt      time.Time     `json:"started_at"`
	DurationMS     int64         `json:"duration_ms"`
	ReportKey      string        `json:"report_key,omitempty"`
}

// SuccessRate returns succeeded/total as a percentage rounded to one decimal.
// Zero units yields zero.
func SuccessRate(succeeded, total int) float64 {
	if total == 0 {
		return 0
	}
	pct := float64(succeeded) * 100 / float64(total)
	return float64(int64(pct*10+0.5)) / 10
}

// ActionRequest is the body of POST /users/{userID}/leads/{leadID}/actions.
type ActionRequest struct {
	Type     ActionType     `json:"action_type" validate:"required,oneof=contacted viewed added_to_focus generated_outreach"`
	Metadata map[string]any `json:"metadata"`
}

// ReportLinkResponse is a time-limited download link for an archived sweep report.
type ReportLinkResponse struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
