package api

import (
	"time"

	"github.com/daimoniac/cvealert/internal/watcher"
)

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// CVEListResponse lists notified CVE IDs for every vendor
type CVEListResponse struct {
	Vendors map[string][]string `json:"vendors"`
	Total   int                 `json:"total"`
}

// VendorCVEsResponse lists notified CVE IDs for one vendor
type VendorCVEsResponse struct {
	Vendor string   `json:"vendor"`
	CVEs   []string `json:"cves"`
}

// AdvisoryResponse is a notified advisory
type AdvisoryResponse struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// StatusResponse describes the poller and its last cycle
type StatusResponse struct {
	Vendors        []string             `json:"vendors"`
	SeenCVEs       int                  `json:"seen_cves"`
	SeenAdvisories int                  `json:"seen_advisories"`
	LastCycle      *watcher.CycleReport `json:"last_cycle"`
	GeneratedAt    string               `json:"generated_at"` // ISO8601
}

// PollResponse acknowledges a poll request
type PollResponse struct {
	Status string `json:"status"`
}

// formatTimestamp renders t as UTC RFC 3339
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
