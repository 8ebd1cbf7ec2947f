package sheet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/singleflight"

	"github.com/bryan-buckman/syllabus/internal/apperrors"
)

// DefaultTTL is how long a fetched table is reused.
const DefaultTTL = 10 * time.Minute

// cacheSize bounds the number of distinct queries kept.
const cacheSize = 16

// sharedFetchTimeout caps a remote fetch that no longer follows the
// cancellation of the caller that started it.
const sharedFetchTimeout = 2 * time.Minute

var (
	cacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syllabus_sheet_cache_hits_total",
		Help: "Schedule fetches served from the cache.",
	})
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syllabus_sheet_cache_misses_total",
		Help: "Schedule fetches that went to the remote source.",
	})
	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "syllabus_sheet_fetch_duration_seconds",
		Help:    "Latency of remote schedule fetches.",
		Buckets: prometheus.DefBuckets,
	})
	fetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "syllabus_sheet_fetch_errors_total",
		Help: "Remote schedule fetches that failed.",
	})
)

// Cached keeps each query's table for a fixed TTL. Concurrent misses for the
// same query share one remote fetch. Failures are not cached and not retried.
type Cached struct {
	src    Source
	lru    *expirable.LRU[string, []RawRow]
	flight singleflight.Group
	logger *slog.Logger
}

var _ Source = (*Cached)(nil)

// NewCached wraps src. A non-positive ttl means DefaultTTL.
func NewCached(src Source, ttl time.Duration, logger *slog.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cached{
		src:    src,
		lru:    expirable.NewLRU[string, []RawRow](cacheSize, nil, ttl),
		logger: logger,
	}
}

// Fetch returns the cached table for q or fetches it. Every error wraps
// apperrors.ErrSourceFetchFailed.
func (c *Cached) Fetch(ctx context.Context, q Query) ([]RawRow, error) {
	key := q.String()
	if rows, ok := c.lru.Get(key); ok {
		cacheHits.Inc()
		return rows, nil
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		if rows, ok := c.lru.Get(key); ok {
			cacheHits.Inc()
			return rows, nil
		}
		// Other callers may join this fetch, so one caller leaving must not cancel it.
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedFetchTimeout)
		defer cancel()

		cacheMisses.Inc()
		start := time.Now()
		rows, err := c.src.Fetch(fetchCtx, q)
		fetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			fetchErrors.Inc()
			return nil, err
		}
		c.lru.Add(key, rows)
		c.logger.Info("fetched schedule", "rows", len(rows), "duration", time.Since(start))
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSourceFetchFailed, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			c.logger.Error("schedule fetch failed", "query", key, "shared", res.Shared, "error", res.Err)
			return nil, fmt.Errorf("%w: %w", apperrors.ErrSourceFetchFailed, res.Err)
		}
		return res.Val.([]RawRow), nil
	}
}

// Purge drops every cached table.
func (c *Cached) Purge() {
	c.lru.Purge()
}
