package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"gator-course-advisor/internal/domain/ports/adapter"
	"gator-course-advisor/internal/infra/metrics"
)

// PoolStats reports connection pool sizes: total, idle and in use.
type PoolStats func() (total, idle, inUse int32)

// ProbeWorker periodically checks the search backend and refreshes the
// readiness and pool gauges.
type ProbeWorker struct {
	interval time.Duration
	timeout  time.Duration
	search   adapter.CourseSearchAdapter
	stats    PoolStats
	log      *zerolog.Logger

	up *bool
}

// NewProbeWorker builds the worker. stats may be nil when no database is wired.
func NewProbeWorker(interval time.Duration, search adapter.CourseSearchAdapter, stats PoolStats, logger *zerolog.Logger) *ProbeWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	probeLog := logger.With().Str("component", "ProbeWorker").Logger()
	timeout := interval / 2
	if timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &ProbeWorker{
		interval: interval,
		timeout:  timeout,
		search:   search,
		stats:    stats,
		log:      &probeLog,
	}
}

func (w *ProbeWorker) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting probe worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping probe worker")
			return ctx.Err()
		case <-ticker.C:
			w.Probe(ctx)
		}
	}
}

// Probe runs one check and reports whether the backend is up. Transitions
// are logged; steady state is not.
func (w *ProbeWorker) Probe(ctx context.Context) bool {
	pctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	hs, err := w.search.Health(pctx)
	up := err == nil && (hs.Status == "" || hs.Status == "healthy" || hs.Status == "ok")
	metrics.SetSearchBackendUp(up)

	if w.up == nil || *w.up != up {
		ev := w.log.Info()
		if !up {
			ev = w.log.Warn().Err(err).Str("status", hs.Status)
		}
		ev.Bool("up", up).Int("courses_loaded", hs.CoursesLoaded).Msg("search backend state")
	}
	w.up = &up

	if w.stats != nil {
		total, idle, inUse := w.stats()
		metrics.SetDBPoolStats(total, idle, inUse)
	}
	return up
}
