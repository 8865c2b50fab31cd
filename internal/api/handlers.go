package api

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/daimoniac/cvealert/internal/observability"
)

// handleListCVEs lists notified CVE IDs grouped by vendor
// @Summary List notified CVEs
// @Description List every CVE identifier already notified, grouped by vendor
// @Tags CVEs
// @Produce json
// @Success 200 {object} api.CVEListResponse
// @Failure 401 {object} api.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /cves [get]
func (s *APIServer) handleListCVEs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	all := s.seen.AllCVEs()
	total := 0
	for _, ids := range all {
		total += len(ids)
	}

	s.respondJSON(w, http.StatusOK, CVEListResponse{Vendors: all, Total: total})
}

// handleGetVendorCVEs lists notified CVE IDs for one vendor
// @Summary Get CVEs for a vendor
// @Description List the CVE identifiers already notified for a vendor (case-insensitive)
// @Tags CVEs
// @Produce json
// @Param vendor path string true "Vendor name (e.g., VMware)"
// @Success 200 {object} api.VendorCVEsResponse
// @Failure 400 {object} api.ErrorResponse "Vendor is required"
// @Failure 401 {object} api.ErrorResponse "Unauthorized"
// @Failure 404 {object} api.ErrorResponse "Unknown vendor"
// @Security BearerAuth
// @Router /cves/{vendor} [get]
func (s *APIServer) handleGetVendorCVEs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	// Path format: /api/v1/cves/{vendor}
	requested := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cves/"), "/")
	if requested == "" {
		s.respondError(w, http.StatusBadRequest, "Vendor is required")
		return
	}

	vendor, ok := s.resolveVendor(requested)
	if !ok {
		s.respondError(w, http.StatusNotFound, "Unknown vendor")
		return
	}

	s.respondJSON(w, http.StatusOK, VendorCVEsResponse{Vendor: vendor, CVEs: s.seen.CVEs(vendor)})
}

// resolveVendor maps a case-insensitive name to a configured or recorded vendor
func (s *APIServer) resolveVendor(name string) (string, bool) {
	for _, v := range s.vendors {
		if strings.EqualFold(v, name) {
			return v, true
		}
	}
	for v := range s.seen.AllCVEs() {
		if strings.EqualFold(v, name) {
			return v, true
		}
	}
	return "", false
}

// handleListAdvisories lists notified advisories
// @Summary List notified advisories
// @Description List every advisory already notified, sorted by URL
// @Tags Advisories
// @Produce json
// @Success 200 {array} api.AdvisoryResponse
// @Failure 401 {object} api.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /advisories [get]
func (s *APIServer) handleListAdvisories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	entries := s.seen.Advisories()
	out := make([]AdvisoryResponse, 0, len(entries))
	for url, entry := range entries {
		out = append(out, AdvisoryResponse{URL: url, Title: entry.Title, Description: entry.Description})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].URL < out[j].URL })

	s.respondJSON(w, http.StatusOK, out)
}

// handleStatus reports the configured vendors and the last cycle
// @Summary Poller status
// @Description Show configured vendors, seen counts and the report of the last polling cycle
// @Tags Status
// @Produce json
// @Success 200 {object} api.StatusResponse
// @Failure 401 {object} api.ErrorResponse "Unauthorized"
// @Security BearerAuth
// @Router /status [get]
func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	cves, advisories := s.seen.Counts()
	resp := StatusResponse{
		Vendors:        s.vendors,
		SeenCVEs:       cves,
		SeenAdvisories: advisories,
		GeneratedAt:    formatTimestamp(time.Now()),
	}
	if s.poller != nil {
		resp.LastCycle = s.poller.LastReport()
	}

	s.respondJSON(w, http.StatusOK, resp)
}

// handleTriggerPoll requests an early polling cycle
// @Summary Trigger a poll
// @Description Request an early polling cycle. Requests made while one is pending are coalesced.
// @Tags Actions
// @Produce json
// @Success 202 {object} api.PollResponse
// @Failure 401 {object} api.ErrorResponse "Unauthorized"
// @Failure 403 {object} api.ErrorResponse "API is in read-only mode"
// @Failure 503 {object} api.ErrorResponse "Poller not available"
// @Security BearerAuth
// @Router /poll [post]
func (s *APIServer) handleTriggerPoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.poller == nil {
		s.respondError(w, http.StatusServiceUnavailable, "Poller not available")
		return
	}

	status := "scheduled"
	if !s.poller.Trigger() {
		status = "already_pending"
	}

	s.logger.Info("poll requested via API", "status", status)
	s.respondJSON(w, http.StatusAccepted, PollResponse{Status: status})
}

// handleHealth provides health check endpoint
// @Summary Health check
// @Description Check the health status of the service components
// @Tags Health
// @Produce json
// @Success 200 {object} observability.HealthStatus
// @Failure 503 {object} observability.HealthStatus
// @Router /health [get]
func (s *APIServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if s.health == nil {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": string(observability.StatusHealthy)})
		return
	}

	health := s.health.GetHealth()
	status := http.StatusOK
	if health.Status != observability.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, health)
}
