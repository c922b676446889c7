package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MatchCounter reports how many names the match cache holds.
type MatchCounter interface {
	CountMatches(ctx context.Context) (int, error)
}

// SessionCounter reports how many audit sessions are live.
type SessionCounter interface {
	Len(ctx context.Context) (int, error)
}

var (
	cacheCollectorOnce     sync.Once
	cacheCollectorInstance *CacheCollector
)

// CacheCollector reads state-store sizes on demand when /metrics is scraped
type CacheCollector struct {
	cache    MatchCounter
	sessions SessionCounter
	logger   *slog.Logger
	timeout  time.Duration

	cacheEntriesDesc   *prometheus.Desc
	activeSessionsDesc *prometheus.Desc
}

// NewCacheCollector creates a collector; sessions may be nil.
func NewCacheCollector(cache MatchCounter, sessions SessionCounter, logger *slog.Logger) *CacheCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheCollector{
		cache:    cache,
		sessions: sessions,
		logger:   logger,
		// a locked SQLite cache must not stall the scrape
		timeout: 3 * time.Second,
		cacheEntriesDesc: prometheus.NewDesc(
			"swaudit_match_cache_entries",
			"Current number of software names held in the match cache",
			nil,
			nil,
		),
		activeSessionsDesc: prometheus.NewDesc(
			"swaudit_active_sessions",
			"Current number of live audit sessions",
			nil,
			nil,
		),
	}
}

// RegisterCacheCollector registers the collector exactly once
func RegisterCacheCollector(cache MatchCounter, sessions SessionCounter, logger *slog.Logger) {
	cacheCollectorOnce.Do(func() {
		cacheCollectorInstance = NewCacheCollector(cache, sessions, logger)
		prometheus.MustRegister(cacheCollectorInstance)
		cacheCollectorInstance.logger.Info("cache metrics collector registered")
	})
}

// Describe sends the metric descriptors to the provided channel
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.cacheEntriesDesc
	ch <- c.activeSessionsDesc
}

// Collect queries the stores and sends current gauges to the provided channel
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if c.cache != nil {
		if n, err := c.cache.CountMatches(ctx); err != nil {
			c.logCollectError(ctx, "match cache", err)
		} else {
			ch <- prometheus.MustNewConstMetric(c.cacheEntriesDesc, prometheus.GaugeValue, float64(n))
		}
	}

	if c.sessions != nil {
		if n, err := c.sessions.Len(ctx); err != nil {
			c.logCollectError(ctx, "sessions", err)
		} else {
			ch <- prometheus.MustNewConstMetric(c.activeSessionsDesc, prometheus.GaugeValue, float64(n))
		}
	}
}

func (c *CacheCollector) logCollectError(ctx context.Context, source string, err error) {
	if ctx.Err() != nil {
		c.logger.Debug("metric collection timed out", "source", source, "error", err)
		return
	}
	c.logger.Error("failed to collect metric", "source", source, "error", err)
}
