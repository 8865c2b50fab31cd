package notify

import (
	"fmt"
	"strings"

	"github.com/daimoniac/cvealert/internal/types"
)

// FormatCVEMessage renders the notification for a new vendor CVE. The
// remediation line is only present when a fix link was found.
func FormatCVEMessage(record types.VendorRecord, maxAgeDays int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New critical CVE updated in the last %d days for %s:\n\n", maxAgeDays, record.Vendor)
	fmt.Fprintf(&b, "%s:\n", record.ID)
	fmt.Fprintf(&b, "Description: %s\n", record.Description)
	fmt.Fprintf(&b, "Severity: %s\n", record.Severity)
	fmt.Fprintf(&b, "References: %s\n", strings.Join(record.References, "\n"))
	fmt.Fprintf(&b, "Last modified: %s\n\n", record.RawLastModified)
	if record.HasFix() {
		fmt.Fprintf(&b, "Remediation: %s\n\n", record.FixURL)
	}
	return b.String()
}

// FormatAdvisoryMessage renders the notification for a new advisory
func FormatAdvisoryMessage(record types.AdvisoryRecord) string {
	return fmt.Sprintf("%s\n%s\n%s", record.Title, record.Description, record.URL)
}
