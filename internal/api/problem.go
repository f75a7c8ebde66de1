package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/prospector/internal/focus"
	"github.com/hyperengineering/prospector/internal/lock"
	"github.com/hyperengineering/prospector/internal/report"
	"github.com/hyperengineering/prospector/internal/store"
	"github.com/hyperengineering/prospector/internal/validation"
)

const problemBaseURI = "https://prospector.dev/errors/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail"`
	Instance string `json:"instance,omitempty"`
}

type problemType struct {
	typeURI string
	title   string
}

// problemTypes maps HTTP status codes to RFC 7807 type URIs and titles.
var problemTypes = map[int]problemType{
	http.StatusUnauthorized:        {problemBaseURI + "unauthorized", "Unauthorized"},
	http.StatusBadRequest:          {problemBaseURI + "bad-request", "Bad Request"},
	http.StatusNotFound:            {problemBaseURI + "not-found", "Not Found"},
	http.StatusInternalServerError: {problemBaseURI + "internal-error", "Internal Server Error"},
	http.StatusUnprocessableEntity: {problemBaseURI + "validation-error", "Validation Error"},
	http.StatusServiceUnavailable:  {problemBaseURI + "service-unavailable", "Service Unavailable"},
	http.StatusConflict:            {problemBaseURI + "conflict", "Conflict"},
}

func lookupProblemType(status int) problemType {
	if pt, ok := problemTypes[status]; ok {
		return pt
	}
	return problemType{typeURI: problemBaseURI + "unknown", title: http.StatusText(status)}
}

// WriteProblem writes an RFC 7807 Problem Details response.
func WriteProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	pt := lookupProblemType(status)
	p := Problem{
		Type:     pt.typeURI,
		Title:    pt.title,
		Status:   status,
		Detail:   detail,
		Instance: r.URL.Path,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// ProblemWithErrors extends Problem with validation error details.
type ProblemWithErrors struct {
	Problem
	Errors []validation.ValidationError `json:"errors,omitempty"`
}

// WriteProblemWithErrors writes a 422 Problem Details response with field errors.
func WriteProblemWithErrors(w http.ResponseWriter, r *http.Request, detail string, errs []validation.ValidationError) {
	pt := lookupProblemType(http.StatusUnprocessableEntity)

	p := ProblemWithErrors{
		Problem: Problem{
			Type:     pt.typeURI,
			Title:    pt.title,
			Status:   http.StatusUnprocessableEntity,
			Detail:   detail,
			Instance: r.URL.Path,
		},
		Errors: errs,
	}

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(http.StatusUnprocessableEntity)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		slog.Error("failed to encode problem response", "error", err)
	}
}

// MapStoreError converts domain errors to Problem Details responses.
func MapStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrLeadNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Lead not found")
	case errors.Is(err, store.ErrProfileNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Target buyer profile not found")
	case errors.Is(err, store.ErrFocusNotFound):
		WriteProblem(w, r, http.StatusNotFound, "Daily focus not computed")
	case errors.Is(err, focus.ErrInvalidDate):
		WriteProblem(w, r, http.StatusBadRequest, "date must be YYYY-MM-DD")
	case errors.Is(err, lock.ErrLockTimeout):
		WriteProblem(w, r, http.StatusConflict, "Lead is being scored by another request")
	case errors.Is(err, report.ErrNotConfigured):
		WriteProblem(w, r, http.StatusServiceUnavailable, "Report storage not configured")
	default:
		// Never expose internal error details to client
		slog.Error("request failed",
			"path", r.URL.Path,
			"method", r.Method,
			"error", err,
		)
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
	}
}
