package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
)

// loadHistory returns the stored list, most recent first. Caller holds m.mu
// when it intends to write the list back.
func (m *Manager) loadHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	var list []domain.HistoryEntry
	if _, err := m.load(ctx, BucketHistory, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) saveHistory(ctx context.Context, list []domain.HistoryEntry) error {
	if list == nil {
		list = []domain.HistoryEntry{}
	}
	return m.save(ctx, BucketHistory, list)
}

// History returns up to limit entries sorted by save time, newest first.
// A limit of zero or less returns everything.
func (m *Manager) History(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	list, err := m.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].SavedAt.After(list[j].SavedAt)
	})

	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// FindHistoryByURL returns the entry stored for url.
func (m *Manager) FindHistoryByURL(ctx context.Context, url string) (domain.HistoryEntry, bool, error) {
	list, err := m.loadHistory(ctx)
	if err != nil {
		return domain.HistoryEntry{}, false, err
	}
	url = strings.TrimSpace(url)
	for _, e := range list {
		if e.URL == url {
			return e, true, nil
		}
	}
	return domain.HistoryEntry{}, false, nil
}

// AddToHistory upserts by URL: an existing entry for the same URL is merged
// in place, otherwise the entry is prepended. The list is then capped at
// domain.HistoryCap, dropping the oldest. It returns the stored entry.
func (m *Manager) AddToHistory(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.loadHistory(ctx)
	if err != nil {
		return domain.HistoryEntry{}, err
	}

	stored := entry
	merged := false
	for i := range list {
		if list[i].URL == entry.URL {
			stored = entry.MergeInto(list[i])
			list[i] = stored
			merged = true
			break
		}
	}
	if !merged {
		list = append([]domain.HistoryEntry{entry}, list...)
	}
	if len(list) > domain.HistoryCap {
		list = list[:domain.HistoryCap]
	}

	if err := m.saveHistory(ctx, list); err != nil {
		return domain.HistoryEntry{}, err
	}
	return stored, nil
}

// DeleteHistory removes one entry by id.
func (m *Manager) DeleteHistory(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.loadHistory(ctx)
	if err != nil {
		return err
	}

	for i := range list {
		if list[i].ID == id {
			list = append(list[:i], list[i+1:]...)
			return m.saveHistory(ctx, list)
		}
	}
	return domain.ErrHistoryNotFound
}

// ClearHistory removes every entry.
func (m *Manager) ClearHistory(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveHistory(ctx, nil)
}

// PruneHistory drops synced entries saved before the cutoff and returns how
// many. Entries that still need a sync are kept whatever their age.
func (m *Manager) PruneHistory(ctx context.Context, before time.Time) (int, error) {
	return m.filterHistory(ctx, func(e domain.HistoryEntry) bool {
		return e.SyncStatus.NeedsSync() || !e.SavedAt.Before(before)
	})
}

// TrimHistory keeps the n most recent synced entries plus every entry that
// still needs a sync, and returns how many were dropped.
func (m *Manager) TrimHistory(ctx context.Context, n int) (int, error) {
	if n < 0 {
		return 0, nil
	}
	kept := 0
	return m.filterHistory(ctx, func(e domain.HistoryEntry) bool {
		if e.SyncStatus.NeedsSync() {
			return true
		}
		kept++
		return kept <= n
	})
}

func (m *Manager) filterHistory(ctx context.Context, keep func(domain.HistoryEntry) bool) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list, err := m.loadHistory(ctx)
	if err != nil {
		return 0, err
	}

	kept := list[:0]
	for _, e := range list {
		if keep(e) {
			kept = append(kept, e)
		}
	}
	dropped := len(list) - len(kept)
	if dropped == 0 {
		return 0, nil
	}
	if err := m.saveHistory(ctx, kept); err != nil {
		return 0, err
	}
	return dropped, nil
}

// PendingHistory returns the entries that still need a remote sync, oldest
// first so a resync replays them in capture order.
func (m *Manager) PendingHistory(ctx context.Context) ([]domain.HistoryEntry, error) {
	list, err := m.loadHistory(ctx)
	if err != nil {
		return nil, err
	}

	var pending []domain.HistoryEntry
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].SyncStatus.NeedsSync() {
			pending = append(pending, list[i])
		}
	}
	return pending, nil
}
