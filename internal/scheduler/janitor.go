package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/store"
)

const (
	// DefaultHistoryRetention is the age after which history entries are pruned
	DefaultHistoryRetention = 30 * 24 * time.Hour // 30 days
)

// Housekeeper is the part of the local store the janitor cleans.
type Housekeeper interface {
	PruneHistory(ctx context.Context, before time.Time) (int, error)
	Cleanup(ctx context.Context) (store.CleanupReport, error)
}

// Janitor prunes old history and expired local data
type Janitor struct {
	store     Housekeeper
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
}

// NewJanitor creates a new janitor
func NewJanitor(
	st Housekeeper,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *Janitor {
	if retention == 0 {
		retention = DefaultHistoryRetention
	}

	return &Janitor{
		store:     st,
		logger:    log,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start begins the periodic cleanup process
func (j *Janitor) Start(ctx context.Context) error {
	// Run immediately on start
	if err := j.Collect(ctx); err != nil {
		j.logger.Warn("initial cleanup failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := j.Collect(ctx); err != nil {
					j.logger.Error("cleanup failed",
						logger.Error(err))
				}
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the janitor
func (j *Janitor) Stop() {
	close(j.stopCh)
}

// Collect prunes synced history older than the retention, then runs the storage cleanup
func (j *Janitor) Collect(ctx context.Context) error {
	j.logger.Info("running storage cleanup")

	cutoff := j.now().Add(-j.retention)
	pruned, err := j.store.PruneHistory(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	report, err := j.store.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to clean up storage: %w", err)
	}

	total := pruned + report.CachesRemoved + report.HistoryTrimmed
	if total > 0 || report.BackupRemoved {
		j.logger.Info("storage cleanup completed",
			logger.Int("history_pruned", pruned),
			logger.Int("history_trimmed", report.HistoryTrimmed),
			logger.Int("caches_removed", report.CachesRemoved),
			logger.Bool("backup_removed", report.BackupRemoved),
			logger.String("retention", j.retention.String()))
	} else {
		j.logger.Debug("nothing to clean up")
	}

	return nil
}
