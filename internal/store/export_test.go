package store_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/store"
)

func seedSettings(t *testing.T, m *store.Manager) domain.Settings {
	t.Helper()
	s := domain.DefaultSettings()
	s.AppID = "cli_a1b2c3d4"
	s.AppSecret = "topsecret"
	s.BaseID = "bascnAbCdEfGhIj"
	s.TableID = "tblBookmarks"
	require.NoError(t, m.SaveSettings(context.Background(), s))
	return s
}

func TestExportRedactsSecrets(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()
	seedSettings(t, m)
	_, err := m.AddToHistory(ctx, entry("https://a.com", clk.Now()))
	require.NoError(t, err)

	doc, err := m.Export(ctx, "1.0.0")
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", doc.Version)
	assert.Equal(t, "2024-05-01T12:00:00Z", doc.ExportDate)
	require.NotNil(t, doc.Config)
	assert.Equal(t, "***", doc.Config.AppSecret)
	assert.Equal(t, "cli_a1b2c3d4", doc.Config.AppID)
	assert.Len(t, doc.History, 1)
}

func TestImportValidatesStamps(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	tests := []struct {
		name string
		doc  store.ExportDocument
	}{
		{"missing version", store.ExportDocument{ExportDate: "2024-05-01T12:00:00Z"}},
		{"missing date", store.ExportDocument{Version: "1.0.0"}},
		{"bad date", store.ExportDocument{Version: "1.0.0", ExportDate: "yesterday"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, m.Import(ctx, tt.doc), store.ErrInvalidImport)
		})
	}
}

func TestImportRestoresAndKeepsSecrets(t *testing.T) {
	m, backend, clk := newManager(t)
	ctx := context.Background()
	original := seedSettings(t, m)

	doc, err := m.Export(ctx, "1.0.0")
	require.NoError(t, err)

	doc.Config.TableID = "tblOther"
	doc.History = []domain.HistoryEntry{entry("https://imported.com", clk.Now())}

	require.NoError(t, m.Import(ctx, doc))

	s, err := m.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tblOther", s.TableID)
	assert.Equal(t, original.AppSecret, s.AppSecret, "redacted secret keeps the current value")

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "https://imported.com", list[0].URL)

	items, err := backend.Get(ctx, store.BucketBackup)
	require.NoError(t, err)
	assert.Contains(t, items, store.BucketBackup, "current data is backed up before import")
}

func TestImportMergesHistoryByURL(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()
	now := clk.Now()

	older := entry("https://dup.com", now.Add(-time.Hour))
	older.ID = "keep-me"
	older.RecordID = "rec0042"
	older.SyncStatus = domain.StatusSynced
	newer := entry("https://dup.com", now)
	newer.ID = ""
	newer.Title = "Newer title"
	anonymous := entry("https://anon.com", now.Add(-time.Minute))
	anonymous.ID = ""

	doc := store.ExportDocument{
		Version:    "1.0.0",
		ExportDate: now.Format(time.RFC3339),
		History:    []domain.HistoryEntry{newer, anonymous, older},
	}
	require.NoError(t, m.Import(ctx, doc))

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "https://dup.com", list[0].URL)
	assert.Equal(t, "keep-me", list[0].ID)
	assert.Equal(t, "Newer title", list[0].Title)
	assert.Equal(t, "rec0042", list[0].RecordID)
	assert.Equal(t, domain.StatusLocal, list[0].SyncStatus)

	assert.Equal(t, "https://anon.com", list[1].URL)
	require.NotEmpty(t, list[1].ID)
	require.NoError(t, m.DeleteHistory(ctx, list[1].ID))

	list, err = m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCleanup(t *testing.T) {
	m, backend, clk := newManager(t)
	ctx := context.Background()
	seedSettings(t, m)

	for i := 0; i < store.CleanupHistoryKeep+20; i++ {
		_, err := m.AddToHistory(ctx, entry("https://site/"+time.Duration(i).String(), clk.Now()))
		require.NoError(t, err)
	}
	require.NoError(t, m.SetCache(ctx, "stale", "x", time.Minute))

	doc, err := m.Export(ctx, "1.0.0")
	require.NoError(t, err)
	require.NoError(t, m.Import(ctx, doc))

	clk.Advance(8 * 24 * time.Hour)

	report, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CachesRemoved)
	assert.Equal(t, 0, report.HistoryTrimmed, "history is left alone below the quota threshold")
	assert.True(t, report.BackupRemoved)

	items, _ := backend.Get(ctx, store.BucketBackup)
	assert.Empty(t, items)

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, store.CleanupHistoryKeep+20)
}

func TestCleanupTrimsSyncedHistoryNearQuota(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	for i := 0; i < store.CleanupHistoryKeep+20; i++ {
		e := entry(fmt.Sprintf("https://site/%d", i), clk.Now())
		if i >= 10 {
			e.SyncStatus = domain.StatusSynced
		}
		_, err := m.AddToHistory(ctx, e)
		require.NoError(t, err)
		clk.Advance(time.Second)
	}
	filler := strings.Repeat("x", store.QuotaBytes*9/10)
	require.NoError(t, m.SetCache(ctx, "filler", filler, time.Hour))

	report, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, report.HistoryTrimmed)

	pending, err := m.PendingHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 10, "local entries survive the trim")

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, store.CleanupHistoryKeep+10)
}

func TestUsage(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()
	seedSettings(t, m)

	u, err := m.Usage(ctx)
	require.NoError(t, err)
	assert.Greater(t, u.Used, int64(0))
	assert.Equal(t, int64(store.QuotaBytes), u.Total)
	assert.Equal(t, u.Total-u.Used, u.Available)
	assert.Less(t, u.Percentage, 1.0)
}
