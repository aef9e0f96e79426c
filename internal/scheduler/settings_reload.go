package scheduler

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/sources/settingsfile"
)

// SettingsSeeder stores settings coming from outside the UI.
type SettingsSeeder interface {
	Settings(ctx context.Context) (domain.Settings, error)
	Seed(ctx context.Context, s domain.Settings) error
}

// SettingsReloader applies the settings file whenever it changes on disk
type SettingsReloader struct {
	path          string
	loader        *settingsfile.Loader
	seeder        SettingsSeeder
	logger        logger.Logger
	interval      time.Duration
	mu            sync.Mutex
	lastMod       time.Time
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSettingsReloader creates a new settings reloader. A zero interval
// disables periodic checks; manualTrigger may be nil.
func NewSettingsReloader(
	settingsFile string,
	seeder SettingsSeeder,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SettingsReloader {
	return &SettingsReloader{
		path:          settingsFile,
		loader:        settingsfile.NewLoader(settingsFile),
		seeder:        seeder,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start applies the file immediately, then watches for changes
func (sr *SettingsReloader) Start(ctx context.Context) error {
	if _, err := sr.Reload(ctx); err != nil {
		return fmt.Errorf("initial settings load failed: %w", err)
	}

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if sr.interval > 0 {
		ticker = time.NewTicker(sr.interval)
		tick = ticker.C
	}

	go func() {
		if ticker != nil {
			defer ticker.Stop()
		}
		for {
			select {
			case <-tick:
				if _, err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload settings file",
						logger.Error(err))
				}
			case <-sr.manualTrigger:
				sr.logger.Info("manual settings reload triggered")
				if _, err := sr.Reload(ctx); err != nil {
					sr.logger.Error("failed to reload settings file",
						logger.Error(err))
				}
			case <-sr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (sr *SettingsReloader) Stop() {
	close(sr.stopCh)
}

// Reload applies the file if it changed since the last successful load.
// It reports whether settings were written.
func (sr *SettingsReloader) Reload(ctx context.Context) (bool, error) {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	info, err := os.Stat(sr.path)
	if err != nil {
		return false, fmt.Errorf("failed to stat settings file: %w", err)
	}
	if !sr.lastMod.IsZero() && info.ModTime().Equal(sr.lastMod) {
		sr.logger.Debug("settings file unchanged")
		return false, nil
	}

	file, err := sr.loader.Load()
	if err != nil {
		return false, err
	}

	current, err := sr.seeder.Settings(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to read current settings: %w", err)
	}

	next, err := settingsfile.Apply(file, current)
	if err != nil {
		return false, err
	}

	if err := sr.seeder.Seed(ctx, next); err != nil {
		return false, fmt.Errorf("failed to save settings: %w", err)
	}
	sr.lastMod = info.ModTime()

	sr.logger.Info("settings file applied",
		logger.String("path", sr.path),
		logger.Bool("complete", next.IsComplete()))

	return true, nil
}
