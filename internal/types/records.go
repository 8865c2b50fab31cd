package types

import (
	"strings"
	"time"
)

// Severity is the CVSS v3 base severity rating of a CVE.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityNone     Severity = "NONE"
	// SeverityUnknown is used when the feed entry carries no CVSS v3 block.
	SeverityUnknown Severity = "unknown"
)

// ParseSeverity normalizes a rating string. Empty input yields SeverityUnknown.
func ParseSeverity(s string) Severity {
	s = strings.TrimSpace(s)
	if s == "" {
		return SeverityUnknown
	}
	switch up := Severity(strings.ToUpper(s)); up {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityNone:
		return up
	}
	return Severity(s)
}

// IsCritical reports whether the rating is the highest tier.
func (s Severity) IsCritical() bool {
	return s == SeverityCritical
}

// VendorRecord is a normalized CVE feed entry found for a vendor keyword.
// References and FixURL are only populated for critical records.
type VendorRecord struct {
	ID              string
	Vendor          string
	Description     string
	Severity        Severity
	LastModified    time.Time
	RawLastModified string // as published by the feed
	References      []string
	FixURL          string // empty when no reference looks like a patch
}

// HasFix reports whether a remediation link was found.
func (r VendorRecord) HasFix() bool {
	return r.FixURL != ""
}

// AgeDays returns the number of whole days elapsed between the last
// modification and now. Partial days are truncated.
func (r VendorRecord) AgeDays(now time.Time) int {
	return int(now.Sub(r.LastModified) / (24 * time.Hour))
}

// AdvisoryRecord is a single article scraped from the advisory page.
// URL is the unique key.
type AdvisoryRecord struct {
	Title       string
	Description string
	URL         string
}
