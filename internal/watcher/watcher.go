package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/daimoniac/cvealert/internal/advisory"
	"github.com/daimoniac/cvealert/internal/errors"
	"github.com/daimoniac/cvealert/internal/notify"
	"github.com/daimoniac/cvealert/internal/nvd"
	"github.com/daimoniac/cvealert/internal/observability"
	"github.com/daimoniac/cvealert/internal/policy"
	"github.com/daimoniac/cvealert/internal/statestore"
)

// Watcher periodically polls the CVE feed and the advisory page and notifies
// new findings
type Watcher interface {
	// Start runs a cycle immediately and then one per poll interval until
	// ctx is cancelled
	Start(ctx context.Context) error

	// Cycle performs a single pass: advisories first, then each vendor
	Cycle(ctx context.Context, seen *statestore.Seen) *CycleReport

	// Trigger requests an early cycle. It never blocks; requests made while
	// one is already pending are coalesced.
	Trigger() bool

	// LastReport returns the report of the most recent completed cycle
	LastReport() *CycleReport
}

// Config contains configuration for the watcher
type Config struct {
	Vendors      []string
	PollInterval time.Duration
	MaxAgeDays   int

	// Now is used for the recency computation. Defaults to time.Now.
	Now func() time.Time
}

// Dependencies are the collaborators a watcher drives
type Dependencies struct {
	Feed       nvd.Fetcher
	Advisories advisory.Fetcher
	Filter     policy.NotabilityEngine
	Store      statestore.StateStore
	Notifier   notify.Notifier
	Health     observability.HealthReporter
}

// CycleReport summarizes one cycle
type CycleReport struct {
	StartedAt            time.Time           `json:"startedAt"`
	FinishedAt           time.Time           `json:"finishedAt"`
	NewCVEs              map[string][]string `json:"newCves"`
	NewAdvisories        []string            `json:"newAdvisories"`
	FetchErrors          int                 `json:"fetchErrors"`
	NotificationFailures int                 `json:"notificationFailures"`
	Errors               []string            `json:"errors,omitempty"`
}

// NewFindings returns the total number of items notified in the cycle
func (r *CycleReport) NewFindings() int {
	n := len(r.NewAdvisories)
	for _, ids := range r.NewCVEs {
		n += len(ids)
	}
	return n
}

// watcherImpl implements the Watcher interface
type watcherImpl struct {
	deps    Dependencies
	config  Config
	seen    *statestore.Seen
	trigger chan struct{}
	logger  *slog.Logger
	metrics *observability.Metrics

	mu   sync.RWMutex
	last *CycleReport
}

// NewWatcher creates a new watcher operating on seen. seen is shared with
// readers such as the API and is only written by the watcher.
func NewWatcher(deps Dependencies, seen *statestore.Seen, config Config, logger *slog.Logger) Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.MaxAgeDays <= 0 {
		config.MaxAgeDays = policy.DefaultMaxAgeDays
	}
	if seen == nil {
		seen = statestore.NewSeen()
	}
	return &watcherImpl{
		deps:    deps,
		config:  config,
		seen:    seen,
		trigger: make(chan struct{}, 1),
		logger:  logger,
		metrics: observability.GetMetrics(),
	}
}

// Start begins the polling loop
func (w *watcherImpl) Start(ctx context.Context) error {
	w.logger.Info("starting watcher",
		"poll_interval", w.config.PollInterval.String(),
		"vendors", w.config.Vendors,
		"max_age_days", w.config.MaxAgeDays)

	for {
		w.Cycle(ctx, w.seen)

		timer := time.NewTimer(w.config.PollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			w.logger.Info("watcher shutting down")
			w.setHealth(observability.ComponentWatcher, observability.StatusUnhealthy, "stopped")
			return ctx.Err()
		case <-w.trigger:
			timer.Stop()
			w.logger.Info("early cycle requested")
		case <-timer.C:
		}
	}
}

// Trigger requests an early cycle
func (w *watcherImpl) Trigger() bool {
	select {
	case w.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// LastReport returns the most recent report, nil before the first cycle ends
func (w *watcherImpl) LastReport() *CycleReport {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last
}

// Cycle performs a single pass. Each unit (the advisory page, each vendor)
// is isolated: its failure is logged and recorded in the report while the
// remaining units still run.
func (w *watcherImpl) Cycle(ctx context.Context, seen *statestore.Seen) *CycleReport {
	start := time.Now()
	report := &CycleReport{
		StartedAt:     start,
		NewCVEs:       make(map[string][]string),
		NewAdvisories: []string{},
	}

	w.logger.Info("starting polling cycle", "vendors", len(w.config.Vendors))

	w.runUnit(report, "advisory", func() error {
		return w.processAdvisories(ctx, seen, report)
	})

	for _, vendor := range w.config.Vendors {
		if ctx.Err() != nil {
			w.logger.Info("cycle interrupted", "remaining_from", vendor)
			break
		}
		w.runUnit(report, vendor, func() error {
			return w.processVendor(ctx, seen, vendor, report)
		})
	}

	report.FinishedAt = time.Now()
	duration := report.FinishedAt.Sub(start)

	w.metrics.CyclesTotal.Inc()
	w.metrics.CycleDuration.Observe(duration.Seconds())
	w.metrics.LastCycleTime.Set(float64(report.FinishedAt.Unix()))
	cveCount, advisoryCount := seen.Counts()
	w.metrics.SeenItems.WithLabelValues(nvd.Source).Set(float64(cveCount))
	w.metrics.SeenItems.WithLabelValues(advisory.Source).Set(float64(advisoryCount))

	w.setHealth(observability.ComponentWatcher, observability.StatusHealthy,
		fmt.Sprintf("last cycle at %s", report.FinishedAt.UTC().Format(time.RFC3339)))

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()

	w.logger.Info("polling cycle completed",
		"duration", duration,
		"new_findings", report.NewFindings(),
		"fetch_errors", report.FetchErrors,
		"notification_failures", report.NotificationFailures)

	return report
}

// runUnit runs fn, converting a panic into a logged error
func (w *watcherImpl) runUnit(report *CycleReport, unit string, fn func() error) {
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				w.logger.Error("recovered panic while processing",
					"unit", unit,
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()
		return fn()
	}()

	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("%s: %v", unit, err))
		w.logger.Error("processing failed",
			"unit", unit,
			"error", err.Error(),
			"transient", errors.IsTransient(err))
	}
}

func (w *watcherImpl) processAdvisories(ctx context.Context, seen *statestore.Seen, report *CycleReport) error {
	if w.deps.Advisories == nil {
		return nil
	}

	start := time.Now()
	w.metrics.FetchRequests.WithLabelValues(advisory.Source).Inc()
	result, err := w.deps.Advisories.Fetch(ctx)
	w.metrics.FetchDuration.WithLabelValues(advisory.Source).Observe(time.Since(start).Seconds())
	if err != nil {
		report.FetchErrors++
		w.metrics.FetchErrors.WithLabelValues(advisory.Source).Inc()
		w.setHealth(observability.ComponentAdvisory, observability.StatusUnhealthy, err.Error())
		return err
	}
	w.setHealth(observability.ComponentAdvisory, observability.StatusHealthy, "")

	w.metrics.RecordsFetched.WithLabelValues(advisory.Source, "page").Add(float64(len(result.Records)))
	w.metrics.MalformedRecords.WithLabelValues(advisory.Source).Add(float64(result.Malformed))

	found := 0
	for _, record := range result.Records {
		vendor, ok := policy.MatchVendor(record.Description, w.config.Vendors)
		if !ok || seen.HasAdvisory(record.URL) {
			continue
		}

		if err := w.notify(ctx, notify.FormatAdvisoryMessage(record)); err != nil {
			report.NotificationFailures++
			w.logger.Warn("advisory notification failed, will retry next cycle",
				"url", record.URL,
				"vendor", vendor,
				"error", err.Error())
			continue
		}

		seen.AddAdvisory(record.URL, statestore.AdvisoryEntry{
			Title:       record.Title,
			Description: record.Description,
		})
		report.NewAdvisories = append(report.NewAdvisories, record.URL)
		w.metrics.NewFindings.WithLabelValues(advisory.Source, vendor).Inc()
		found++

		w.logger.Info("new advisory notified",
			"title", record.Title,
			"url", record.URL,
			"vendor", vendor)
	}

	if found == 0 {
		w.logger.Info("no new advisories found")
		return nil
	}

	w.logger.Info("new advisories found and sent", "count", found)
	return w.save(statestore.AdvisoryFile, func() error { return w.deps.Store.SaveAdvisories(seen) })
}

func (w *watcherImpl) processVendor(ctx context.Context, seen *statestore.Seen, vendor string, report *CycleReport) error {
	start := time.Now()
	w.metrics.FetchRequests.WithLabelValues(nvd.Source).Inc()
	result, err := w.deps.Feed.Fetch(ctx, vendor)
	w.metrics.FetchDuration.WithLabelValues(nvd.Source).Observe(time.Since(start).Seconds())
	if err != nil {
		report.FetchErrors++
		w.metrics.FetchErrors.WithLabelValues(nvd.Source).Inc()
		w.setHealth(observability.ComponentNVD, observability.StatusUnhealthy, err.Error())
		return err
	}
	w.setHealth(observability.ComponentNVD, observability.StatusHealthy, "")

	w.metrics.RecordsFetched.WithLabelValues(nvd.Source, vendor).Add(float64(len(result.Records)))
	w.metrics.MalformedRecords.WithLabelValues(nvd.Source).Add(float64(result.Malformed))

	if result.TotalResults == 0 {
		w.logger.Info("no new CVEs", "vendor", vendor)
		return nil
	}

	now := w.config.Now()
	var fresh []string
	for _, record := range result.Records {
		decision, err := w.deps.Filter.Evaluate(record, now)
		if err != nil {
			w.logger.Warn("filter evaluation failed",
				"vendor", vendor,
				"cve_id", record.ID,
				"error", err.Error())
			continue
		}
		if !decision.Notable || seen.HasCVE(vendor, record.ID) {
			continue
		}

		if err := w.notify(ctx, notify.FormatCVEMessage(record, w.config.MaxAgeDays)); err != nil {
			report.NotificationFailures++
			w.logger.Warn("CVE notification failed, will retry next cycle",
				"vendor", vendor,
				"cve_id", record.ID,
				"error", err.Error())
			continue
		}

		seen.AddCVEs(vendor, record.ID)
		fresh = append(fresh, record.ID)
		w.metrics.NewFindings.WithLabelValues(nvd.Source, vendor).Inc()

		w.logger.Info("new CVE notified",
			"vendor", vendor,
			"cve_id", record.ID,
			"severity", record.Severity,
			"age_days", decision.AgeDays,
			"has_fix", record.HasFix())
	}

	if len(fresh) == 0 {
		w.logger.Info("no new critical CVEs within window",
			"vendor", vendor,
			"max_age_days", w.config.MaxAgeDays,
			"total_results", result.TotalResults)
		return nil
	}

	report.NewCVEs[vendor] = fresh
	return w.save(statestore.CVEFile, func() error { return w.deps.Store.SaveCVEs(seen) })
}

func (w *watcherImpl) notify(ctx context.Context, text string) error {
	channel := w.deps.Notifier.Channel()
	if err := w.deps.Notifier.Notify(ctx, text); err != nil {
		w.metrics.NotificationsFailed.WithLabelValues(channel).Inc()
		w.setHealth(observability.ComponentNotifier, observability.StatusUnhealthy, err.Error())
		return err
	}
	w.metrics.NotificationsSent.WithLabelValues(channel).Inc()
	w.setHealth(observability.ComponentNotifier, observability.StatusHealthy, "")
	return nil
}

func (w *watcherImpl) save(file string, fn func() error) error {
	if err := fn(); err != nil {
		w.metrics.StateSaveFailures.WithLabelValues(file).Inc()
		w.setHealth(observability.ComponentState, observability.StatusUnhealthy, err.Error())
		return fmt.Errorf("failed to save %s: %w", file, err)
	}
	w.metrics.StateSaves.WithLabelValues(file).Inc()
	w.setHealth(observability.ComponentState, observability.StatusHealthy, "")
	return nil
}

func (w *watcherImpl) setHealth(component string, status observability.ComponentStatus, message string) {
	if w.deps.Health != nil {
		w.deps.Health.UpdateComponentHealth(component, status, message)
	}
}
