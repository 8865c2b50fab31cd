package config

import (
	"os"
	"strings"
	"time"

	"github.com/daimoniac/cvealert/internal/errors"
	"gopkg.in/yaml.v3"
)

// ParseDefaults reads and parses a cvealert.yml defaults file
func ParseDefaults(path string) (*DefaultsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewTransientf("failed to read defaults file: %w", err)
	}

	var file DefaultsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.NewPermanentf("failed to parse defaults YAML: %w", err)
	}

	return &file, nil
}

// GetVendors returns the configured vendor keywords with blanks and
// case-insensitive duplicates removed, or nil when none are configured.
func (f *DefaultsFile) GetVendors() []string {
	return normalizeVendors(f.Defaults.Vendors)
}

// GetPollInterval returns the poll interval from the defaults file
func (f *DefaultsFile) GetPollInterval() (time.Duration, error) {
	if f.Defaults.PollInterval == "" {
		return 0, nil
	}
	return parseInterval(f.Defaults.PollInterval)
}

func normalizeVendors(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		out = append(out, v)
	}
	return out
}
