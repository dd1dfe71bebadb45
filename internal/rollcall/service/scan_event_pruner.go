package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BrandonDHaskell/Rollcall/server/internal/rollcall/store"
)

// ScanEventPruner periodically deletes audit rows older than a configurable
// retention period. A retention of 0 disables pruning entirely.
type ScanEventPruner struct {
	store     store.ScanEventStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

type PrunerConfig struct {
	// RetentionDays is how many days of scan events to keep.
	// 0 means keep everything (pruner will not start).
	RetentionDays int

	// Interval is how often the pruner runs. Defaults to 6h.
	Interval time.Duration
}

// NewScanEventPruner creates a pruner but does not start it.
func NewScanEventPruner(s store.ScanEventStore, cfg PrunerConfig, logger *slog.Logger) *ScanEventPruner {
	interval := cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ScanEventPruner{
		store:     s,
		retention: time.Duration(cfg.RetentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start runs an immediate prune, then repeats on the configured interval
// until ctx is cancelled or Stop is called.
func (p *ScanEventPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info("scan event pruner disabled", "retention_days", 0)
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info("scan event pruner started",
		"retention_days", int(p.retention.Hours()/24), "interval", p.interval.String())
}

// Stop signals the pruner to exit and waits for it. Safe to call more than
// once.
func (p *ScanEventPruner) Stop() {
	p.stopOnce.Do(func() {
		if p.cancel != nil {
			p.cancel()
		}
	})
	<-p.done
}

func (p *ScanEventPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce deletes everything older than the retention period and returns
// the number of rows removed.
func (p *ScanEventPruner) PruneOnce(ctx context.Context) int64 {
	cutoff := time.Now().UTC().Add(-p.retention)
	deleted, err := p.store.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error("scan event prune failed", "error", err)
		return 0
	}
	if deleted > 0 {
		p.logger.Info("scan event prune", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
