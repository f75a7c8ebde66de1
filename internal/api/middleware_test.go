package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

const testAPIKey = "test-secret-key-12345"

// okHandler reports whether it ran and answers 200.
func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

// captureLogs routes the default logger into a buffer for the test.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(old) })
	return &buf
}

// logEntries decodes every JSON log line written so far.
func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		entries = append(entries, e)
	}
	return entries
}

func findLog(entries []map[string]any, msg string) map[string]any {
	for _, e := range entries {
		if e["msg"] == msg {
			return e
		}
	}
	return nil
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		wantOK bool
	}{
		{"valid bearer token", "Bearer " + testAPIKey, true},
		{"surrounding whitespace trimmed", "Bearer  " + testAPIKey + " ", true},
		{"missing header", "", false},
		{"wrong token", "Bearer wrong-token", false},
		{"token without scheme", testAPIKey, false},
		{"lowercase scheme", "bearer " + testAPIKey, false},
		{"empty token", "Bearer ", false},
		{"prefix of the secret", "Bearer " + testAPIKey[:5], false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			captureLogs(t)
			next, called := okHandler()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/rescore", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			AuthMiddleware(testAPIKey)(next).ServeHTTP(w, req)

			if *called != tt.wantOK {
				t.Errorf("handler called = %v, want %v", *called, tt.wantOK)
			}
			if tt.wantOK {
				return
			}
			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("Content-Type = %q, want application/problem+json", ct)
			}
			var p Problem
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("failed to decode problem: %v", err)
			}
			if p.Type != problemBaseURI+"unauthorized" || p.Instance != "/api/v1/cron/rescore" {
				t.Errorf("problem = %+v", p)
			}
			if strings.Contains(w.Body.String(), testAPIKey) {
				t.Error("response body contains the secret")
			}
		})
	}
}

func TestAuthMiddleware_FailureLoggedWithoutSecret(t *testing.T) {
	logs := captureLogs(t)
	next, _ := okHandler()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/focus", nil)
	req.Header.Set("Authorization", "Bearer guessed-"+testAPIKey)

	AuthMiddleware(testAPIKey)(next).ServeHTTP(httptest.NewRecorder(), req)

	entry := findLog(logEntries(t, logs), "auth failure")
	if entry == nil {
		t.Fatal("expected an auth failure log entry")
	}
	if entry["level"] != "WARN" || entry["path"] != "/api/v1/users/user-1/focus" {
		t.Errorf("entry = %v", entry)
	}
	if strings.Contains(logs.String(), testAPIKey) {
		t.Error("log output contains the secret")
	}
}

func TestAuthMiddleware_EmptySecretPassesThrough(t *testing.T) {
	next, called := okHandler()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/daily-focus", nil)
	w := httptest.NewRecorder()

	AuthMiddleware("")(next).ServeHTTP(w, req)

	if !*called || w.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d; want pass-through", *called, w.Code)
	}
}

func TestRouter_AuthGroupsUseSeparateSecrets(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		method   string
		path     string
		token    string
		wantAuth bool
	}{
		{"health needs no token", http.MethodGet, "/api/v1/health", "", true},
		{"user route with api key", http.MethodGet, "/api/v1/users/user-1/focus", testAPIKey, true},
		{"user route with cron secret", http.MethodGet, "/api/v1/users/user-1/focus", testCronSecret, false},
		{"score route with cron secret", http.MethodGet, "/api/v1/leads/lead-1/score", testCronSecret, false},
		{"cron route with cron secret", http.MethodPost, "/api/v1/cron/daily-focus", testCronSecret, true},
		{"cron route with api key", http.MethodPost, "/api/v1/cron/daily-focus", testAPIKey, false},
		{"reports route with api key", http.MethodGet, "/api/v1/cron/reports?key=x", testAPIKey, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.request(tt.method, tt.path, "", tt.token)
			if got := w.Code != http.StatusUnauthorized; got != tt.wantAuth {
				t.Errorf("status = %d, authorized = %v, want %v", w.Code, got, tt.wantAuth)
			}
		})
	}
}

func TestRouter_EmptySecretsOpenBothGroups(t *testing.T) {
	env := newTestEnv(t, func(c *HandlerConfig) {
		c.APIKey = ""
		c.CronSecret = ""
	})

	if w := env.request(http.MethodGet, "/api/v1/users/user-1/focus", "", ""); w.Code != http.StatusOK {
		t.Errorf("focus status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := env.request(http.MethodPost, "/api/v1/cron/rescore", "", ""); w.Code != http.StatusOK {
		t.Errorf("rescore status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestRouter_AuthCheckedBeforeUserID(t *testing.T) {
	env := newTestEnv(t)
	path := "/api/v1/users/" + strings.Repeat("u", 129) + "/focus"

	if w := env.request(http.MethodGet, path, "", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("without key: status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if w := env.api(http.MethodGet, path, ""); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("with key: status = %d, want %d", w.Code, http.StatusUnprocessableEntity)
	}
}

func TestLogLevelForStatus(t *testing.T) {
	tests := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusCreated, slog.LevelInfo},
		{http.StatusNotModified, slog.LevelInfo},
		{http.StatusUnauthorized, slog.LevelWarn},
		{http.StatusConflict, slog.LevelWarn},
		{http.StatusUnprocessableEntity, slog.LevelWarn},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusServiceUnavailable, slog.LevelError},
	}
	for _, tt := range tests {
		if got := logLevelForStatus(tt.status); got != tt.want {
			t.Errorf("logLevelForStatus(%d) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestLoggingMiddleware_RequestLine(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantLevel string
	}{
		{"focus served", http.StatusOK, "INFO"},
		{"lead missing", http.StatusNotFound, "WARN"},
		{"sweep failed", http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs := captureLogs(t)
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			handler := chiMiddleware.RequestID(LoggingMiddleware(next))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/user-1/focus", nil)
			req.Header.Set("Authorization", "Bearer "+testAPIKey)
			req.RemoteAddr = "10.0.0.7:5123"
			handler.ServeHTTP(httptest.NewRecorder(), req)

			entry := findLog(logEntries(t, logs), "request completed")
			if entry == nil {
				t.Fatal("expected a request completed log entry")
			}
			if entry["level"] != tt.wantLevel {
				t.Errorf("level = %v, want %s", entry["level"], tt.wantLevel)
			}
			if int(entry["status"].(float64)) != tt.status {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
			if id, _ := entry["request_id"].(string); id == "" || entry["remote_addr"] != "10.0.0.7:5123" {
				t.Errorf("entry = %v", entry)
			}
			for _, k := range []string{"method", "path", "duration_ms"} {
				if _, ok := entry[k]; !ok {
					t.Errorf("missing field %q", k)
				}
			}
			if strings.Contains(logs.String(), testAPIKey) {
				t.Error("log output contains the Authorization header")
			}
		})
	}
}

func TestLoggingMiddleware_FirstStatusWins(t *testing.T) {
	logs := captureLogs(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
		w.WriteHeader(http.StatusTeapot)
	})

	LoggingMiddleware(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	entry := findLog(logEntries(t, logs), "request completed")
	if entry == nil || int(entry["status"].(float64)) != http.StatusOK {
		t.Errorf("entry = %v, want status 200", entry)
	}
}

func TestRecoveryMiddleware_Panic(t *testing.T) {
	logs := captureLogs(t)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("db password is hunter2")
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cron/rescore", nil)
	w := httptest.NewRecorder()

	RecoveryMiddleware(next).ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if strings.Contains(w.Body.String(), "hunter2") {
		t.Error("panic value leaked to the client")
	}
	var p Problem
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
		t.Fatalf("failed to decode problem: %v", err)
	}
	if p.Detail != "Internal Server Error" {
		t.Errorf("detail = %q", p.Detail)
	}
	entry := findLog(logEntries(t, logs), "panic recovered")
	if stack, _ := entry["stack"].(string); stack == "" {
		t.Errorf("expected panic log with stack, got %v", entry)
	}
}

func TestRecoveryMiddleware_NoPanic(t *testing.T) {
	next, called := okHandler()
	w := httptest.NewRecorder()

	RecoveryMiddleware(next).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !*called || w.Code != http.StatusOK {
		t.Errorf("called = %v, status = %d", *called, w.Code)
	}
}

func TestGetRequestID(t *testing.T) {
	var got string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetRequestID(r.Context())
	})

	chiMiddleware.RequestID(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if got == "" {
		t.Error("expected a request ID inside the RequestID middleware")
	}
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("GetRequestID without middleware = %q, want empty", id)
	}
}
