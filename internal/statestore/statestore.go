package statestore

import (
	"context"
	"sort"
	"sync"
)

// StateStore persists the sets of already-notified items
type StateStore interface {
	// Load reads both state files. Missing or corrupt files yield empty sets.
	Load() *Seen

	// SaveCVEs overwrites the vendor -> CVE IDs file
	SaveCVEs(seen *Seen) error

	// SaveAdvisories overwrites the advisory URL -> entry file
	SaveAdvisories(seen *Seen) error

	// HealthCheck reports whether the state directory is writable
	HealthCheck(ctx context.Context) error
}

// AdvisoryEntry is what is remembered about a notified advisory
type AdvisoryEntry struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Seen is the in-memory dedup state: per vendor, the CVE IDs already
// notified, and the advisory URLs already notified. Entries are only ever
// added. Seen is safe for concurrent use.
type Seen struct {
	mu         sync.RWMutex
	cves       map[string]map[string]struct{}
	advisories map[string]AdvisoryEntry
}

// NewSeen creates an empty Seen
func NewSeen() *Seen {
	return &Seen{
		cves:       make(map[string]map[string]struct{}),
		advisories: make(map[string]AdvisoryEntry),
	}
}

// NewSeenFrom builds a Seen from the persisted forms
func NewSeenFrom(cves map[string][]string, advisories map[string]AdvisoryEntry) *Seen {
	s := NewSeen()
	for vendor, ids := range cves {
		s.AddCVEs(vendor, ids...)
	}
	for url, entry := range advisories {
		s.AddAdvisory(url, entry)
	}
	return s
}

// HasCVE reports whether id was already notified for vendor
func (s *Seen) HasCVE(vendor, id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cves[vendor][id]
	return ok
}

// AddCVEs records ids for vendor and returns how many were not yet present
func (s *Seen) AddCVEs(vendor string, ids ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.cves[vendor]
	if !ok {
		set = make(map[string]struct{}, len(ids))
		s.cves[vendor] = set
	}

	added := 0
	for _, id := range ids {
		if _, exists := set[id]; exists {
			continue
		}
		set[id] = struct{}{}
		added++
	}
	return added
}

// CVEs returns the sorted IDs recorded for vendor
func (s *Seen) CVEs(vendor string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.cves[vendor])
}

// AllCVEs returns a copy of the vendor -> sorted IDs mapping
func (s *Seen) AllCVEs() map[string][]string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]string, len(s.cves))
	for vendor, set := range s.cves {
		out[vendor] = sortedKeys(set)
	}
	return out
}

// HasAdvisory reports whether the advisory URL was already notified
func (s *Seen) HasAdvisory(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.advisories[url]
	return ok
}

// AddAdvisory records an advisory and reports whether it was new. An existing
// entry is never overwritten.
func (s *Seen) AddAdvisory(url string, entry AdvisoryEntry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.advisories[url]; ok {
		return false
	}
	s.advisories[url] = entry
	return true
}

// Advisories returns a copy of the advisory URL -> entry mapping
func (s *Seen) Advisories() map[string]AdvisoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]AdvisoryEntry, len(s.advisories))
	for url, entry := range s.advisories {
		out[url] = entry
	}
	return out
}

// Counts returns the number of recorded CVE IDs (across vendors) and advisories
func (s *Seen) Counts() (cves, advisories int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, set := range s.cves {
		cves += len(set)
	}
	return cves, len(s.advisories)
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
