package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hyperengineering/prospector/internal/focus"
	"github.com/hyperengineering/prospector/internal/report"
	"github.com/hyperengineering/prospector/internal/scoring"
	"github.com/hyperengineering/prospector/internal/signals"
	"github.com/hyperengineering/prospector/internal/types"
	"github.com/hyperengineering/prospector/internal/validation"
)

// LeadStore is the persistence the handlers use directly.
type LeadStore interface {
	GetStats(ctx context.Context) (*types.StoreStats, error)
	UpsertProfile(ctx context.Context, profile types.TargetBuyerProfile) (*types.TargetBuyerProfile, error)
	CreateLead(ctx context.Context, lead types.NewLead) (*types.Lead, error)
	GetLead(ctx context.Context, id string) (*types.Lead, error)
}

// Scorer scores a single lead. Implemented by scoring.Service.
type Scorer interface {
	ScoreLead(ctx context.Context, leadID string, force bool) (*scoring.Outcome, error)
}

// FocusService reads, generates and records against daily focus lists.
// Implemented by focus.Service.
type FocusService interface {
	Today() string
	Get(ctx context.Context, userID, date string) (*types.DailyFocus, error)
	Generate(ctx context.Context, userID, date string, opts focus.Options) (*focus.Result, error)
	RecordAction(ctx context.Context, userID, leadID string, actionType types.ActionType, metadata map[string]any) (*types.LeadAction, error)
}

// Sweeper runs the batch sweeps. Implemented by worker.Sweeper.
type Sweeper interface {
	RescoreAll(ctx context.Context) (*types.RescoreSummary, error)
	GenerateDailyFocus(ctx context.Context) (*types.FocusSweepSummary, error)
}

// HandlerConfig carries the Handler's collaborators.
type HandlerConfig struct {
	Store      LeadStore
	Scorer     Scorer
	Focus      FocusService
	Sweeper    Sweeper
	Archiver   report.Archiver
	Classifier signals.Classifier // optional
	APIKey     string
	CronSecret string
	Version    string
}

// Handler implements the API handlers
type Handler struct {
	store      LeadStore
	scorer     Scorer
	focus      FocusService
	sweeper    Sweeper
	archiver   report.Archiver
	classifier signals.Classifier
	apiKey     string
	cronSecret string
	version    string
}

// NewHandler creates a new Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	archiver := cfg.Archiver
	if archiver == nil {
		archiver = report.NoopArchiver{}
	}
	return &Handler{
		store:      cfg.Store,
		scorer:     cfg.Scorer,
		focus:      cfg.Focus,
		sweeper:    cfg.Sweeper,
		archiver:   archiver,
		classifier: cfg.Classifier,
		apiKey:     cfg.APIKey,
		cronSecret: cfg.CronSecret,
		version:    cfg.Version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// decodeJSON decodes the request body into v. An empty body is allowed when
// optional is set.
func decodeJSON(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if optional && errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func queryBool(r *http.Request, name string, def bool) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be true or false", name)
	}
	return v, nil
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		WriteProblem(w, r, http.StatusServiceUnavailable, "Store unavailable")
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:      "healthy",
		Version:     h.version,
		LeadCount:   stats.LeadCount,
		ScoredCount: stats.ScoredCount,
		UserCount:   stats.UserCount,
	})
}

// PutProfile handles PUT /api/v1/users/{userID}/profile
func (h *Handler) PutProfile(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req types.ProfileRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.AddAll(validation.Struct(req))
	for i, v := range req.TargetIndustries {
		c.Add(validation.ValidateText(fmt.Sprintf("target_industries[%d]", i), v))
	}
	for i, v := range req.TargetTitles {
		c.Add(validation.ValidateText(fmt.Sprintf("target_titles[%d]", i), v))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	profile, err := h.store.UpsertProfile(r.Context(), types.TargetBuyerProfile{
		UserID:           userID,
		TargetIndustries: req.TargetIndustries,
		TargetTitles:     req.TargetTitles,
	})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// CreateLead handles POST /api/v1/users/{userID}/leads. The lead is scored
// right away; a scoring failure leaves it stored but unscored.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req types.CreateLeadRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.AddAll(validation.Struct(req))
	c.Add(validation.ValidateText("name", req.Name))
	c.Add(validation.ValidateText("company", req.Company))
	for i, s := range req.Signals {
		c.Add(validation.ValidateText(fmt.Sprintf("signals[%d].title", i), s.Title))
		c.Add(validation.ValidateText(fmt.Sprintf("signals[%d].description", i), s.Description))
	}
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	raw := make([]types.BuyingSignal, len(req.Signals))
	for i, s := range req.Signals {
		raw[i] = types.BuyingSignal{
			Type:        types.SignalType(s.Type),
			Title:       s.Title,
			Description: s.Description,
			Date:        s.Date,
		}
	}

	lead, err := h.store.CreateLead(r.Context(), types.NewLead{
		UserID:   userID,
		Name:     req.Name,
		Company:  req.Company,
		Industry: req.Industry,
		Title:    req.Title,
		Signals:  signals.Resolve(r.Context(), h.classifier, raw),
	})
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	resp := types.CreateLeadResponse{Lead: *lead}
	outcome, err := h.scorer.ScoreLead(r.Context(), lead.ID, false)
	if err != nil {
		slog.Warn("lead created but not scored",
			"user_id", userID,
			"lead_id", lead.ID,
			"error", err,
		)
		resp.Error = err.Error()
	} else {
		resp.Lead = *outcome.Lead
		resp.Scored = true
	}

	writeJSON(w, http.StatusCreated, resp)
}

// GetScore handles GET /api/v1/leads/{leadID}/score
func (h *Handler) GetScore(w http.ResponseWriter, r *http.Request) {
	lead, err := h.store.GetLead(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	outcome := &scoring.Outcome{Lead: lead}
	writeJSON(w, http.StatusOK, outcome.Response())
}

// ScoreLead handles POST /api/v1/leads/{leadID}/score?force=true
func (h *Handler) ScoreLead(w http.ResponseWriter, r *http.Request) {
	force, err := queryBool(r, "force", false)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}

	outcome, err := h.scorer.ScoreLead(r.Context(), chi.URLParam(r, "leadID"), force)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome.Response())
}

const emptyFocusMessage = "No high or medium priority leads are available for today."

// GetFocus handles GET /api/v1/users/{userID}/focus?date=YYYY-MM-DD&generate=true.
// With generate=false a missing list is a 404 rather than computed on demand.
func (h *Handler) GetFocus(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	generate, err := queryBool(r, "generate", true)
	if err != nil {
		WriteProblem(w, r, http.StatusBadRequest, err.Error())
		return
	}
	date := r.URL.Query().Get("date")
	if date == "" {
		date = h.focus.Today()
	}

	var resp types.FocusResponse
	if generate {
		res, err := h.focus.Generate(r.Context(), userID, date, focus.Options{})
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		resp.DailyFocus = *res.Focus
		resp.Status = types.FocusExisting
		if res.Created {
			resp.Status = types.FocusGenerated
		}
	} else {
		f, err := h.focus.Get(r.Context(), userID, date)
		if err != nil {
			MapStoreError(w, r, err)
			return
		}
		resp.DailyFocus = *f
		resp.Status = types.FocusExisting
	}

	if len(resp.LeadIDs) == 0 {
		resp.Message = emptyFocusMessage
	}
	writeJSON(w, http.StatusOK, resp)
}

// MarkContacted handles POST /api/v1/users/{userID}/leads/{leadID}/contacted
func (h *Handler) MarkContacted(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req types.ContactedRequest
	if err := decodeJSON(r, &req, true); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	action, err := h.focus.RecordAction(r.Context(), userID, chi.URLParam(r, "leadID"), types.ActionContacted, req.Metadata)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

// RecordAction handles POST /api/v1/users/{userID}/leads/{leadID}/actions
func (h *Handler) RecordAction(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserIDFromContext(r.Context())

	var req types.ActionRequest
	if err := decodeJSON(r, &req, false); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	if errs := validation.Struct(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	action, err := h.focus.RecordAction(r.Context(), userID, chi.URLParam(r, "leadID"), req.Type, req.Metadata)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, action)
}

// Rescore handles POST /api/v1/cron/rescore. Unit failures are reported in
// the summary with a 200; only a sweep that could not run is a 500.
func (h *Handler) Rescore(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sweeper.RescoreAll(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// DailyFocus handles POST /api/v1/cron/daily-focus.
func (h *Handler) DailyFocus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.sweeper.GenerateDailyFocus(r.Context())
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ReportLink handles GET /api/v1/cron/reports?key=... and returns a
// pre-signed download URL for an archived sweep summary.
func (h *Handler) ReportLink(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if err := validation.ValidateRequired("key", key); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", []validation.ValidationError{*err})
		return
	}

	url, expiry, err := h.archiver.PresignedURL(r.Context(), key)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, types.ReportLinkResponse{
		Key:       key,
		URL:       url,
		ExpiresAt: expiry.UTC().Truncate(time.Second),
	})
}
