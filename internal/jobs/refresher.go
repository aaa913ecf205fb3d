package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jtlacci/hip3-dashboard/internal/markets"
	"github.com/jtlacci/hip3-dashboard/internal/metrics"
	"github.com/jtlacci/hip3-dashboard/internal/ws"
	"go.uber.org/zap"
)

// Refresher re-aggregates all markets on a fixed interval and holds the
// latest table for the API handlers. A failed cycle keeps the previous table
// in place; an empty table is a valid "no data" state, not a failure.
type Refresher struct {
	svc      *markets.Service
	hub      *ws.Hub
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	interval time.Duration

	mu     sync.RWMutex
	latest *markets.Table
}

func NewRefresher(svc *markets.Service, hub *ws.Hub, logger *zap.SugaredLogger, metrics *metrics.Metrics, interval time.Duration) *Refresher {
	return &Refresher{
		svc:      svc,
		hub:      hub,
		logger:   logger,
		metrics:  metrics,
		interval: interval,
	}
}

// Run refreshes immediately, then on every tick until the context ends.
func (r *Refresher) Run(ctx context.Context) error {
	r.refresh(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Infow("Refresher stopping")
			return ctx.Err()
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// Latest returns the most recent table, or nil before the first successful
// cycle.
func (r *Refresher) Latest() *markets.Table {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

func (r *Refresher) refresh(ctx context.Context) {
	cycle := uuid.NewString()
	start := time.Now()

	table, err := r.svc.Aggregate(ctx)
	if err != nil {
		r.logger.Errorw("Aggregation cycle failed, keeping previous table",
			"cycle", cycle,
			"error", err,
		)
		return
	}

	r.mu.Lock()
	r.latest = table
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordRefresh(ctx, time.Since(start), len(table.Rows))
	}
	r.logger.Infow("Markets refreshed",
		"cycle", cycle,
		"rows", len(table.Rows),
		"dexes", len(table.Dexes),
		"took", time.Since(start),
	)

	if r.hub != nil {
		r.hub.Broadcast("table", table)
	}
}
