package nvd

import (
	"fmt"
	"strings"
	"time"

	gocvss30 "github.com/pandatix/go-cvss/30"
	gocvss31 "github.com/pandatix/go-cvss/31"

	"github.com/daimoniac/cvealert/internal/errors"
	"github.com/daimoniac/cvealert/internal/types"
)

// LastModifiedLayout is the minute-precision UTC timestamp used by the feed
const LastModifiedLayout = "2006-01-02T15:04Z"

// Extract normalizes a feed item found for vendor. An item without an ID or
// a parseable last-modified date yields ErrMalformedRecord. Other absent
// fields fall back to empty values.
func Extract(vendor string, item Item) (types.VendorRecord, error) {
	id, ok := itemID(item)
	if !ok {
		return types.VendorRecord{}, fmt.Errorf("%w: missing CVE ID", errors.ErrMalformedRecord)
	}

	lastModified, err := time.Parse(LastModifiedLayout, item.LastModifiedDate)
	if err != nil {
		return types.VendorRecord{}, fmt.Errorf("%w: %s: lastModifiedDate %q", errors.ErrMalformedRecord, id, item.LastModifiedDate)
	}

	record := types.VendorRecord{
		ID:              id,
		Vendor:          vendor,
		Description:     itemDescription(item),
		Severity:        itemSeverity(item),
		LastModified:    lastModified,
		RawLastModified: item.LastModifiedDate,
	}

	if record.Severity.IsCritical() {
		record.References = itemReferences(item)
		record.FixURL = FixURL(record.References)
	}

	return record, nil
}

// FixURL returns the first reference that looks like a patch or fix link
func FixURL(refs []string) string {
	for _, ref := range refs {
		lower := strings.ToLower(ref)
		if strings.Contains(lower, "patch") || strings.Contains(lower, "fix") {
			return ref
		}
	}
	return ""
}

// SeverityFromScore maps a CVSS base score to its qualitative rating
func SeverityFromScore(score float64) types.Severity {
	switch {
	case score == 0:
		return types.SeverityNone
	case score < 4.0:
		return types.SeverityLow
	case score < 7.0:
		return types.SeverityMedium
	case score < 9.0:
		return types.SeverityHigh
	default:
		return types.SeverityCritical
	}
}

func itemID(item Item) (string, bool) {
	if item.CVE == nil || item.CVE.Meta == nil {
		return "", false
	}
	id := strings.TrimSpace(item.CVE.Meta.ID)
	return id, id != ""
}

func itemDescription(item Item) string {
	if item.CVE == nil || item.CVE.Description == nil || len(item.CVE.Description.Data) == 0 {
		return ""
	}
	return item.CVE.Description.Data[0].Value
}

func itemSeverity(item Item) types.Severity {
	if item.Impact == nil || item.Impact.BaseMetricV3 == nil || item.Impact.BaseMetricV3.CVSSV3 == nil {
		return types.SeverityUnknown
	}
	cvss := item.Impact.BaseMetricV3.CVSSV3
	if cvss.BaseSeverity != "" {
		return types.ParseSeverity(cvss.BaseSeverity)
	}
	if score, ok := vectorScore(cvss.VectorString); ok {
		return SeverityFromScore(score)
	}
	return types.SeverityUnknown
}

// vectorScore computes the base score of a CVSS v3.x vector
func vectorScore(vector string) (float64, bool) {
	switch {
	case strings.HasPrefix(vector, "CVSS:3.1/"):
		if cvss, err := gocvss31.ParseVector(vector); err == nil {
			return cvss.BaseScore(), true
		}
	case strings.HasPrefix(vector, "CVSS:3.0/"):
		if cvss, err := gocvss30.ParseVector(vector); err == nil {
			return cvss.BaseScore(), true
		}
	}
	return 0, false
}

func itemReferences(item Item) []string {
	if item.CVE == nil || item.CVE.References == nil {
		return nil
	}
	refs := make([]string, 0, len(item.CVE.References.Data))
	for _, ref := range item.CVE.References.Data {
		if ref.URL != "" {
			refs = append(refs, ref.URL)
		}
	}
	return refs
}
