package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Resyncable is anything that can refetch its full state from the document store.
type Resyncable interface {
	ResyncAll(ctx context.Context) error
}

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// SnapshotJanitor removes stale cached habit lists.
type SnapshotJanitor interface {
	Cleanup(olderThan time.Time) (int, error)
}

// ResyncConfig controls how often open stores are refetched.
type ResyncConfig struct {
	Interval  time.Duration
	Retention time.Duration
}

// Resyncer periodically reconciles every open habit store, so a change notification lost
// by the feed is still picked up, and prunes the snapshot cache.
type Resyncer struct {
	target  Resyncable
	monitor ConnectionHealth
	janitor SnapshotJanitor
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ResyncConfig
}

func NewResyncer(target Resyncable, monitor ConnectionHealth, janitor SnapshotJanitor, logger *zap.Logger, cfg ResyncConfig) *Resyncer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Retention <= 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Resyncer{
		target:  target,
		monitor: monitor,
		janitor: janitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = r.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("habit resync failed", zap.Error(err))
		}
	})
	_, _ = r.cron.AddFunc("@daily", func() {
		r.prune(time.Now())
	})

	return r
}

// Start launches the cron scheduler.
func (r *Resyncer) Start() {
	if r == nil || r.cron == nil {
		return
	}
	r.cron.Start()
	r.logger.Info("habit resync started", zap.Duration("interval", r.cfg.Interval))
}

// Stop waits for a running job to finish or ctx to end.
func (r *Resyncer) Stop(ctx context.Context) {
	if r == nil || r.cron == nil {
		return
	}
	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	r.logger.Info("habit resync stopped")
}

// RunOnce reconciles every open store now. It is a no-op while the backend is offline.
func (r *Resyncer) RunOnce(ctx context.Context) error {
	if r == nil || r.target == nil {
		return nil
	}
	if r.monitor != nil && !r.monitor.IsOnline() {
		r.logger.Debug("skipping habit resync (offline)")
		return nil
	}
	return r.target.ResyncAll(ctx)
}

func (r *Resyncer) prune(now time.Time) {
	if r.janitor == nil {
		return
	}
	removed, err := r.janitor.Cleanup(now.Add(-r.cfg.Retention))
	if err != nil {
		r.logger.Warn("snapshot cleanup failed", zap.Error(err))
		return
	}
	if removed > 0 {
		r.logger.Info("stale snapshots removed", zap.Int("count", removed))
	}
}
