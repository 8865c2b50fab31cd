package statestore

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/daimoniac/cvealert/internal/errors"
)

// State file names inside the state directory
const (
	CVEFile      = "last_cves.json"
	AdvisoryFile = "recommendations.json"
)

// FileStore keeps state as two JSON documents in a directory
type FileStore struct {
	dir    string
	logger *slog.Logger
}

// NewFileStore creates the state directory if needed
func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if dir == "" {
		return nil, errors.NewPermanentf("state directory is empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.NewPermanentf("create state directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir, logger: logger}, nil
}

// Dir returns the state directory
func (s *FileStore) Dir() string {
	return s.dir
}

// Load reads both state files
func (s *FileStore) Load() *Seen {
	cves := s.LoadCVEs()
	advisories := s.LoadAdvisories()
	seen := NewSeenFrom(cves, advisories)

	cveCount, advisoryCount := seen.Counts()
	s.logger.Info("state loaded",
		"dir", s.dir,
		"cves", cveCount,
		"advisories", advisoryCount)
	return seen
}

// LoadCVEs reads the vendor -> CVE IDs file. A missing or undecodable file
// yields an empty map.
func (s *FileStore) LoadCVEs() map[string][]string {
	var cves map[string][]string
	if err := s.readJSON(CVEFile, &cves); err != nil {
		s.logLoadError(CVEFile, err)
		return map[string][]string{}
	}
	if cves == nil {
		cves = map[string][]string{}
	}
	return cves
}

// LoadAdvisories reads the advisory URL -> entry file. Values written as a
// JSON list by older releases are accepted with empty title and description.
func (s *FileStore) LoadAdvisories() map[string]AdvisoryEntry {
	var raw map[string]json.RawMessage
	if err := s.readJSON(AdvisoryFile, &raw); err != nil {
		s.logLoadError(AdvisoryFile, err)
		return map[string]AdvisoryEntry{}
	}

	out := make(map[string]AdvisoryEntry, len(raw))
	for url, value := range raw {
		var entry AdvisoryEntry
		if err := json.Unmarshal(value, &entry); err != nil {
			var legacy []string
			if legacyErr := json.Unmarshal(value, &legacy); legacyErr != nil {
				s.logger.Warn("skipping undecodable advisory entry",
					"file", AdvisoryFile,
					"url", url,
					"error", err)
				continue
			}
		}
		out[url] = entry
	}
	return out
}

// SaveCVEs overwrites the CVE state file
func (s *FileStore) SaveCVEs(seen *Seen) error {
	return s.writeJSON(CVEFile, seen.AllCVEs())
}

// SaveAdvisories overwrites the advisory state file
func (s *FileStore) SaveAdvisories(seen *Seen) error {
	return s.writeJSON(AdvisoryFile, seen.Advisories())
}

// HealthCheck verifies the state directory still accepts writes
func (s *FileStore) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.CreateTemp(s.dir, ".health-*")
	if err != nil {
		return errors.NewTransientf("state directory not writable: %w", err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

func (s *FileStore) readJSON(name string, v any) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", errors.ErrCorruptState, name, err)
	}
	return nil
}

// writeJSON replaces the file through a temp file and rename so readers never
// see a partial document.
func (s *FileStore) writeJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.NewPermanentf("encode %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return errors.NewTransientf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewTransientf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewTransientf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		os.Remove(tmpName)
		return errors.NewTransientf("replace %s: %w", name, err)
	}

	s.logger.Debug("state saved", "file", name, "bytes", len(data))
	return nil
}

func (s *FileStore) logLoadError(name string, err error) {
	if stderrors.Is(err, fs.ErrNotExist) {
		s.logger.Info("state file not found, starting empty", "file", name)
		return
	}
	s.logger.Warn("state file unreadable, starting empty",
		"file", name,
		"error", err)
}
