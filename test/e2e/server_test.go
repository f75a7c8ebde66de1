//go:build e2e

package e2e

import (
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hyperengineering/prospector/internal/types"
)

func TestServer_LeadToFocusFlow(t *testing.T) {
	s := startProspector(t)

	// Given: a profile and two leads, one a strong fit
	status := s.do(t, http.MethodPut, "/api/v1/users/rep-1/profile", e2eAPIKey, types.ProfileRequest{
		TargetIndustries: []string{"SaaS"},
		TargetTitles:     []string{"VP Sales"},
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("put profile: status %d", status)
	}

	var strong types.CreateLeadResponse
	status = s.do(t, http.MethodPost, "/api/v1/users/rep-1/leads", e2eAPIKey, types.CreateLeadRequest{
		Name:     "Ada",
		Company:  "Acme",
		Industry: "SaaS",
		Title:    "VP Sales",
		Signals: []types.SignalInput{
			{Type: "funding", Title: "Series B"},
			{Type: "hiring", Title: "Hiring 20 AEs"},
		},
	}, &strong)
	if status != http.StatusCreated {
		t.Fatalf("create lead: status %d", status)
	}
	if !strong.Scored || strong.Lead.Score == nil || strong.Lead.Score.PriorityLevel != types.PriorityHigh {
		t.Fatalf("strong lead = %+v, want scored high", strong)
	}

	var weak types.CreateLeadResponse
	s.do(t, http.MethodPost, "/api/v1/users/rep-1/leads", e2eAPIKey, types.CreateLeadRequest{
		Name:    "Bob",
		Company: "Globex",
	}, &weak)

	// When: today's focus is requested
	var focus types.FocusResponse
	status = s.do(t, http.MethodGet, "/api/v1/users/rep-1/focus", e2eAPIKey, nil, &focus)
	if status != http.StatusOK {
		t.Fatalf("get focus: status %d", status)
	}

	// Then: only the high priority lead is selected
	if focus.Status != types.FocusGenerated {
		t.Errorf("status = %q, want generated", focus.Status)
	}
	if len(focus.LeadIDs) != 1 || focus.LeadIDs[0] != strong.Lead.ID {
		t.Errorf("focus = %v, want [%s]", focus.LeadIDs, strong.Lead.ID)
	}

	// And: a second request returns the stored list
	var again types.FocusResponse
	s.do(t, http.MethodGet, "/api/v1/users/rep-1/focus", e2eAPIKey, nil, &again)
	if again.Status != types.FocusExisting {
		t.Errorf("second status = %q, want existing", again.Status)
	}

	status = s.do(t, http.MethodPost, "/api/v1/users/rep-1/leads/"+strong.Lead.ID+"/contacted", e2eAPIKey, nil, nil)
	if status != http.StatusCreated {
		t.Errorf("mark contacted: status %d", status)
	}
}

func TestServer_CronRoutesRequireSecret(t *testing.T) {
	s := startProspector(t)

	if status := s.do(t, http.MethodPost, "/api/v1/cron/rescore", e2eAPIKey, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("rescore with api key: status %d, want 401", status)
	}

	var summary types.RescoreSummary
	if status := s.do(t, http.MethodPost, "/api/v1/cron/rescore", e2eCronSecret, nil, &summary); status != http.StatusOK {
		t.Fatalf("rescore: status %d", status)
	}
	if summary.TotalUsers != 0 || summary.Failed != 0 {
		t.Errorf("summary = %+v, want empty run", summary)
	}
}

func TestServer_GracefulShutdown(t *testing.T) {
	s := startProspector(t)

	if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
		t.Fatalf("signal: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("exit: %v", err)
		}
	case <-time.After(20 * time.Second):
		t.Fatal("server did not exit after interrupt")
	}

	data, err := os.ReadFile(s.logFile)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "shutdown complete") {
		t.Errorf("log missing shutdown complete:\n%s", data)
	}
}
