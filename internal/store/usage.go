package store

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

const (
	// QuotaBytes is the storage budget reported by Usage.
	QuotaBytes = 5 * 1024 * 1024

	// CleanupHistoryKeep is how many synced history entries Cleanup keeps
	// once usage crosses CleanupTrimPercent.
	CleanupHistoryKeep = 300

	// CleanupTrimPercent is the quota usage from which Cleanup trims history.
	CleanupTrimPercent = 80.0

	// BackupRetention is how long an import backup is kept.
	BackupRetention = 7 * 24 * time.Hour
)

// Usage describes the storage footprint.
type Usage struct {
	Used       int64   `json:"used"`
	Total      int64   `json:"total"`
	Percentage float64 `json:"percentage"`
	Available  int64   `json:"available"`
}

// Usage reports bytes in use against the quota.
func (m *Manager) Usage(ctx context.Context) (Usage, error) {
	used, err := m.backend.BytesInUse(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to measure storage: %w", err)
	}

	available := int64(QuotaBytes) - used
	if available < 0 {
		available = 0
	}
	pct := float64(used) / float64(QuotaBytes) * 100
	return Usage{
		Used:       used,
		Total:      QuotaBytes,
		Percentage: math.Round(pct*100) / 100,
		Available:  available,
	}, nil
}

// CleanupReport counts what Cleanup removed.
type CleanupReport struct {
	CachesRemoved  int  `json:"cachesRemoved"`
	HistoryTrimmed int  `json:"historyTrimmed"`
	BackupRemoved  bool `json:"backupRemoved"`
}

// Cleanup evicts expired caches and drops a stale backup. History is only
// trimmed when storage is close to the quota, and never loses entries that
// still need a sync.
func (m *Manager) Cleanup(ctx context.Context) (CleanupReport, error) {
	var report CleanupReport

	n, err := m.ClearExpiredCache(ctx)
	if err != nil {
		return report, err
	}
	report.CachesRemoved = n

	usage, err := m.Usage(ctx)
	if err != nil {
		return report, err
	}
	if usage.Percentage >= CleanupTrimPercent {
		trimmed, err := m.TrimHistory(ctx, CleanupHistoryKeep)
		if err != nil {
			return report, err
		}
		report.HistoryTrimmed = trimmed
	}

	var backup backupEntry
	ok, err := m.load(ctx, BucketBackup, &backup)
	if err != nil {
		return report, err
	}
	if ok {
		created := time.UnixMilli(backup.Created)
		if m.now().Sub(created) > BackupRetention {
			if err := m.remove(ctx, BucketBackup); err != nil {
				return report, err
			}
			report.BackupRemoved = true
		}
	}

	m.log.Info("storage cleanup done",
		logger.Int("caches_removed", report.CachesRemoved),
		logger.Int("history_trimmed", report.HistoryTrimmed),
		logger.Bool("backup_removed", report.BackupRemoved),
	)
	return report, nil
}
