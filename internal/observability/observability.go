// Package observability provides structured logging, Prometheus metrics,
// and health checking for swaudit.
//
// Key features:
// - JSON logging with UTC timestamps, optionally rotated to a file
// - Prometheus metrics for matching runs, the match cache, workers and sessions
// - Scrape-time gauges for cache size and live sessions
// - HTTP endpoints for /metrics, /health and /ready
package observability
