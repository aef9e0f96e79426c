package scheduler

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/syncer"
)

// ResyncRunner replays captures that never reached the remote table.
type ResyncRunner interface {
	Resync(ctx context.Context) (syncer.ResyncReport, error)
}

// Resyncer periodically replays local and failed captures
type Resyncer struct {
	runner        ResyncRunner
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewResyncer creates a new resyncer. manualTrigger may be nil.
func NewResyncer(
	runner ResyncRunner,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *Resyncer {
	return &Resyncer{
		runner:        runner,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start begins the periodic resync process. The first pass runs in the
// background so a slow remote never delays the caller.
func (r *Resyncer) Start(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	go func() {
		defer ticker.Stop()

		// Resync immediately on start, a failure is not fatal
		if _, err := r.Run(ctx); err != nil {
			r.logger.Warn("initial resync failed", logger.Error(err))
		}

		for {
			select {
			case <-ticker.C:
				if _, err := r.Run(ctx); err != nil {
					r.logger.Error("failed to resync captures",
						logger.Error(err))
				}
			case <-r.manualTrigger:
				r.logger.Info("manual resync triggered")
				if _, err := r.Run(ctx); err != nil {
					r.logger.Error("failed to resync captures",
						logger.Error(err))
				}
			case <-r.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the resyncer
func (r *Resyncer) Stop() {
	close(r.stopCh)
}

// Run replays pending captures once
func (r *Resyncer) Run(ctx context.Context) (syncer.ResyncReport, error) {
	report, err := r.runner.Resync(ctx)
	if err != nil {
		return report, err
	}

	if report.Pending == 0 {
		r.logger.Debug("no captures to resync")
		return report, nil
	}

	r.logger.Info("resync completed",
		logger.Int("pending", report.Pending),
		logger.Int("synced", report.Synced),
		logger.Int("failed", report.Failed),
		logger.Int("skipped", report.Skipped))

	return report, nil
}
