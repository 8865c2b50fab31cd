package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daimoniac/cvealert/internal/config"
	"github.com/daimoniac/cvealert/internal/observability"
	"github.com/daimoniac/cvealert/internal/statestore"
	"github.com/daimoniac/cvealert/internal/watcher"
)

type mockPoller struct {
	triggers int
	pending  bool
	report   *watcher.CycleReport
}

func (m *mockPoller) Trigger() bool {
	m.triggers++
	if m.pending {
		return false
	}
	m.pending = true
	return true
}

func (m *mockPoller) LastReport() *watcher.CycleReport { return m.report }

func testSeen() *statestore.Seen {
	seen := statestore.NewSeen()
	seen.AddCVEs("VMware", "CVE-2023-20887", "CVE-2023-20867")
	seen.AddCVEs("Sophos", "CVE-2023-1671")
	seen.AddAdvisory("https://www.gov.br/ctir/rec-02", statestore.AdvisoryEntry{Title: "Rec 02", Description: "Microsoft"})
	seen.AddAdvisory("https://www.gov.br/ctir/rec-01", statestore.AdvisoryEntry{Title: "Rec 01", Description: "VMware"})
	return seen
}

func newTestServer(cfg config.APIConfig, poller Poller) *APIServer {
	return NewAPIServer(&cfg, []string{"VMware", "Sophos", "Lenovo"}, testSeen(), poller,
		observability.NewHealthChecker(observability.NewLogger("error")), observability.NewLogger("error"))
}

func do(t *testing.T, s *APIServer, method, path string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestListCVEs(t *testing.T) {
	s := newTestServer(config.APIConfig{Enabled: true, Port: 8080}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/cves", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp CVEListResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 3 {
		t.Errorf("Total = %d, want 3", resp.Total)
	}
	if got := resp.Vendors["VMware"]; len(got) != 2 || got[0] != "CVE-2023-20867" {
		t.Errorf("VMware CVEs = %v (expected sorted)", got)
	}
}

func TestGetVendorCVEs(t *testing.T) {
	s := newTestServer(config.APIConfig{}, nil)

	tests := []struct {
		path       string
		wantStatus int
		wantVendor string
		wantCount  int
	}{
		{"/api/v1/cves/VMware", http.StatusOK, "VMware", 2},
		{"/api/v1/cves/vmware", http.StatusOK, "VMware", 2},
		{"/api/v1/cves/Lenovo", http.StatusOK, "Lenovo", 0},
		{"/api/v1/cves/Fortinet", http.StatusNotFound, "", 0},
		{"/api/v1/cves/", http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, s, http.MethodGet, tt.path, nil)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var resp VendorCVEsResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatal(err)
			}
			if resp.Vendor != tt.wantVendor || len(resp.CVEs) != tt.wantCount {
				t.Errorf("resp = %+v", resp)
			}
		})
	}
}

func TestListAdvisoriesSorted(t *testing.T) {
	s := newTestServer(config.APIConfig{}, nil)

	rec := do(t, s, http.MethodGet, "/api/v1/advisories", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp []AdvisoryResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp) != 2 || resp[0].Title != "Rec 01" {
		t.Errorf("advisories = %+v", resp)
	}
}

func TestStatus(t *testing.T) {
	poller := &mockPoller{report: &watcher.CycleReport{
		StartedAt:  time.Unix(1688212800, 0),
		FinishedAt: time.Unix(1688212810, 0),
		NewCVEs:    map[string][]string{"VMware": {"CVE-2023-20887"}},
	}}
	s := newTestServer(config.APIConfig{}, poller)

	rec := do(t, s, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.SeenCVEs != 3 || resp.SeenAdvisories != 2 {
		t.Errorf("counts = (%d, %d)", resp.SeenCVEs, resp.SeenAdvisories)
	}
	if resp.LastCycle == nil || len(resp.LastCycle.NewCVEs["VMware"]) != 1 {
		t.Errorf("LastCycle = %+v", resp.LastCycle)
	}
	if !strings.HasSuffix(resp.GeneratedAt, "Z") {
		t.Errorf("GeneratedAt = %q, want UTC", resp.GeneratedAt)
	}
}

func TestTriggerPoll(t *testing.T) {
	poller := &mockPoller{}
	s := newTestServer(config.APIConfig{}, poller)

	rec := do(t, s, http.MethodPost, "/api/v1/poll", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"scheduled"`) {
		t.Errorf("body = %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodPost, "/api/v1/poll", nil)
	if !strings.Contains(rec.Body.String(), `"already_pending"`) {
		t.Errorf("second request should coalesce, body = %s", rec.Body.String())
	}

	rec = do(t, s, http.MethodGet, "/api/v1/poll", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /poll status = %d", rec.Code)
	}
}

func TestTriggerPollReadOnly(t *testing.T) {
	poller := &mockPoller{}
	s := newTestServer(config.APIConfig{ReadOnly: true}, poller)

	rec := do(t, s, http.MethodPost, "/api/v1/poll", nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if poller.triggers != 0 {
		t.Error("read-only mode must not trigger a poll")
	}

	if rec := do(t, s, http.MethodGet, "/api/v1/cves", nil); rec.Code != http.StatusOK {
		t.Errorf("reads should still work in read-only mode, got %d", rec.Code)
	}
}

func TestTriggerPollWithoutPoller(t *testing.T) {
	s := newTestServer(config.APIConfig{}, nil)
	if rec := do(t, s, http.MethodPost, "/api/v1/poll", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(config.APIConfig{APIKey: "secret"}, nil)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing header", nil, http.StatusUnauthorized},
		{"wrong key", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"bearer key", map[string]string{"Authorization": "Bearer secret"}, http.StatusOK},
		{"bare key", map[string]string{"Authorization": "secret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, s, http.MethodGet, "/api/v1/cves", tt.header); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}

	// Health stays unauthenticated
	if rec := do(t, s, http.MethodGet, "/health", nil); rec.Code == http.StatusUnauthorized {
		t.Error("/health should not require auth")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(config.APIConfig{APIKey: "secret"}, nil)
	rec := do(t, s, http.MethodOptions, "/api/v1/cves", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS header")
	}
}

func TestHealthReflectsChecker(t *testing.T) {
	s := newTestServer(config.APIConfig{}, nil)
	s.health.RegisterCritical(observability.ComponentState)

	if rec := do(t, s, http.MethodGet, "/health", nil); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("unknown component should be unhealthy, got %d", rec.Code)
	}

	s.health.UpdateComponentHealth(observability.ComponentState, observability.StatusHealthy, "")
	if rec := do(t, s, http.MethodGet, "/health", nil); rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRootRedirectAndNotFound(t *testing.T) {
	s := newTestServer(config.APIConfig{}, nil)

	rec := do(t, s, http.MethodGet, "/", nil)
	if rec.Code != http.StatusMovedPermanently || rec.Header().Get("Location") != "/swagger/" {
		t.Errorf("root: status = %d, location = %q", rec.Code, rec.Header().Get("Location"))
	}

	if rec := do(t, s, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d", rec.Code)
	}
}

func TestStartDisabled(t *testing.T) {
	s := newTestServer(config.APIConfig{Enabled: false}, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Errorf("Start() on disabled server = %v", err)
	}
}
