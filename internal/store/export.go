package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

// ExportDocument is the portable form of every bucket except caches.
type ExportDocument struct {
	Version     string                `json:"version"`
	ExportDate  string                `json:"exportDate"`
	Config      *domain.Settings      `json:"config,omitempty"`
	History     []domain.HistoryEntry `json:"history"`
	Preferences *domain.Preferences   `json:"preferences,omitempty"`
	Stats       *domain.Stats         `json:"stats,omitempty"`
}

// backupEntry is the stored form of the backup bucket.
type backupEntry struct {
	Created int64          `json:"created"`
	Data    ExportDocument `json:"data"`
}

// Export serializes the buckets. Secrets in the config are redacted.
func (m *Manager) Export(ctx context.Context, version string) (ExportDocument, error) {
	settings, err := m.Settings(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	history, err := m.loadHistory(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	prefs, err := m.Preferences(ctx)
	if err != nil {
		return ExportDocument{}, err
	}
	stats, err := m.Stats(ctx)
	if err != nil {
		return ExportDocument{}, err
	}

	redacted := settings.Redacted()
	if history == nil {
		history = []domain.HistoryEntry{}
	}
	return ExportDocument{
		Version:     version,
		ExportDate:  m.now().UTC().Format(time.RFC3339),
		Config:      &redacted,
		History:     history,
		Preferences: &prefs,
		Stats:       &stats,
	}, nil
}

// Validate checks the version and date stamps.
func (d ExportDocument) Validate() error {
	if strings.TrimSpace(d.Version) == "" {
		return fmt.Errorf("%w: missing version", ErrInvalidImport)
	}
	if strings.TrimSpace(d.ExportDate) == "" {
		return fmt.Errorf("%w: missing exportDate", ErrInvalidImport)
	}
	if _, err := time.Parse(time.RFC3339, d.ExportDate); err != nil {
		return fmt.Errorf("%w: exportDate: %v", ErrInvalidImport, err)
	}
	return nil
}

// Import restores a document after backing up the current data. Sections
// absent from the document are left untouched; redacted secrets keep their
// current value.
func (m *Manager) Import(ctx context.Context, doc ExportDocument) error {
	if err := doc.Validate(); err != nil {
		return err
	}

	current, err := m.Export(ctx, doc.Version)
	if err != nil {
		return fmt.Errorf("failed to back up current data: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.save(ctx, BucketBackup, backupEntry{Created: m.now().UnixMilli(), Data: current}); err != nil {
		return fmt.Errorf("failed to back up current data: %w", err)
	}

	if doc.Config != nil {
		existing, err := m.Settings(ctx)
		if err != nil {
			return err
		}
		if err := m.save(ctx, BucketConfig, doc.Config.MergeSecrets(existing)); err != nil {
			return err
		}
	}
	if doc.History != nil {
		if err := m.saveHistory(ctx, normalizeHistory(doc.History)); err != nil {
			return err
		}
	}
	if doc.Preferences != nil {
		if err := m.save(ctx, BucketPreferences, doc.Preferences); err != nil {
			return err
		}
	}
	if doc.Stats != nil {
		if err := m.save(ctx, BucketStats, doc.Stats); err != nil {
			return err
		}
	}

	m.log.Info("data imported",
		logger.String("version", doc.Version),
		logger.String("export_date", doc.ExportDate),
		logger.Int("history", len(doc.History)),
	)
	return nil
}

// normalizeHistory applies imported entries the way AddToHistory would,
// oldest first: one entry per URL, every entry with an id, newest first and
// capped at domain.HistoryCap. Entries without a URL are dropped.
func normalizeHistory(in []domain.HistoryEntry) []domain.HistoryEntry {
	ordered := slices.Clone(in)
	slices.Reverse(ordered)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SavedAt.Before(ordered[j].SavedAt)
	})

	out := make([]domain.HistoryEntry, 0, len(ordered))
	byURL := make(map[string]int, len(ordered))
	for _, e := range ordered {
		e.URL = strings.TrimSpace(e.URL)
		if e.URL == "" {
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if i, ok := byURL[e.URL]; ok {
			out[i] = e.MergeInto(out[i])
			continue
		}
		byURL[e.URL] = len(out)
		out = append(out, e)
	}

	slices.Reverse(out)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].SavedAt.After(out[j].SavedAt)
	})
	if len(out) > domain.HistoryCap {
		out = out[:domain.HistoryCap]
	}
	return out
}
