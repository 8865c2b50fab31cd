// Package observability provides structured logging, Prometheus metrics,
// and health checking for cvealert.
//
// Logs are JSON with UTC timestamps and go to stdout and, when a log
// directory is configured, to a size-capped rotating file. Metrics are served
// on /metrics; component health on /health and /ready.
package observability
