package store_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/store/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T) (*store.Manager, *memory.Store, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	backend := memory.New()
	return store.NewManager(backend, logger.NewNop(), clk.Now), backend, clk
}

func entry(url string, savedAt time.Time) domain.HistoryEntry {
	c := domain.Capture{URL: url, Title: "T " + url, Timestamp: savedAt}
	return domain.NewHistoryEntry(c, domain.StatusLocal, savedAt)
}

func TestHistoryCap(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	for i := 0; i < domain.HistoryCap+1; i++ {
		_, err := m.AddToHistory(ctx, entry(fmt.Sprintf("https://site/%d", i), clk.Now()))
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, domain.HistoryCap)

	assert.Equal(t, fmt.Sprintf("https://site/%d", domain.HistoryCap), list[0].URL, "newest first")
	assert.Equal(t, "https://site/1", list[len(list)-1].URL, "oldest entry dropped")
	for _, e := range list {
		assert.NotEqual(t, "https://site/0", e.URL)
	}
}

func TestAddToHistoryUpsertsByURL(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	first, err := m.AddToHistory(ctx, entry("https://a.com", clk.Now()))
	require.NoError(t, err)
	_, err = m.AddToHistory(ctx, entry("https://b.com", clk.Now()))
	require.NoError(t, err)

	clk.Advance(time.Minute)
	update := entry("https://a.com", clk.Now())
	update.Title = "updated"
	update.SyncStatus = domain.StatusSynced
	update.RecordID = "rec1"

	stored, err := m.AddToHistory(ctx, update)
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID, "merged entry keeps its id")

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)

	found, ok, err := m.FindHistoryByURL(ctx, "https://a.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "updated", found.Title)
	assert.Equal(t, domain.StatusSynced, found.SyncStatus)
	assert.Equal(t, "rec1", found.RecordID)
}

func TestConcurrentHistoryAppendsAreNotLost(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := m.AddToHistory(ctx, entry(fmt.Sprintf("https://c/%d", i), clk.Now()))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, list, 40)
}

func TestDeleteAndClearHistory(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	e, err := m.AddToHistory(ctx, entry("https://a.com", clk.Now()))
	require.NoError(t, err)
	_, err = m.AddToHistory(ctx, entry("https://b.com", clk.Now()))
	require.NoError(t, err)

	require.NoError(t, m.DeleteHistory(ctx, e.ID))
	assert.ErrorIs(t, m.DeleteHistory(ctx, e.ID), domain.ErrHistoryNotFound)

	list, _ := m.History(ctx, 0)
	require.Len(t, list, 1)
	assert.Equal(t, "https://b.com", list[0].URL)

	require.NoError(t, m.ClearHistory(ctx))
	list, _ = m.History(ctx, 0)
	assert.Empty(t, list)
}

func TestPruneAndPendingHistory(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	old := entry("https://old.com", clk.Now())
	_, err := m.AddToHistory(ctx, old)
	require.NoError(t, err)
	oldSynced := entry("https://old-synced.com", clk.Now())
	oldSynced.SyncStatus = domain.StatusSynced
	_, err = m.AddToHistory(ctx, oldSynced)
	require.NoError(t, err)

	clk.Advance(31 * 24 * time.Hour)
	synced := entry("https://synced.com", clk.Now())
	synced.SyncStatus = domain.StatusSynced
	_, err = m.AddToHistory(ctx, synced)
	require.NoError(t, err)
	failed := entry("https://failed.com", clk.Now())
	failed.SyncStatus = domain.StatusFailed
	_, err = m.AddToHistory(ctx, failed)
	require.NoError(t, err)

	pending, err := m.PendingHistory(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "https://old.com", pending[0].URL, "oldest pending first")

	dropped, err := m.PruneHistory(ctx, clk.Now().Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, dropped, "only the old synced entry goes")

	list, _ := m.History(ctx, 0)
	assert.Len(t, list, 3)
	_, found, _ := m.FindHistoryByURL(ctx, "https://old.com")
	assert.True(t, found, "old local entry is kept until it syncs")
}

func TestTrimHistoryKeepsPending(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		e := entry(fmt.Sprintf("https://site/%d", i), clk.Now())
		if i >= 4 {
			e.SyncStatus = domain.StatusSynced
		}
		_, err := m.AddToHistory(ctx, e)
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	dropped, err := m.TrimHistory(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, dropped)

	list, err := m.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 6)
	assert.Equal(t, "https://site/9", list[0].URL)
	assert.Equal(t, "https://site/8", list[1].URL)

	pending, err := m.PendingHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 4)
}

func TestCacheTTL(t *testing.T) {
	m, backend, clk := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetCache(ctx, "fields_tblA", []string{"a", "b"}, time.Hour))

	var got []string
	ok, err := m.GetCache(ctx, "fields_tblA", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, got)

	clk.Advance(time.Hour + time.Second)
	ok, err = m.GetCache(ctx, "fields_tblA", &got)
	require.NoError(t, err)
	assert.False(t, ok)

	items, _ := backend.Get(ctx, store.CacheKey("fields_tblA"))
	assert.Empty(t, items, "expired entry must be evicted")
}

func TestClearExpiredCache(t *testing.T) {
	m, _, clk := newManager(t)
	ctx := context.Background()

	require.NoError(t, m.SetCache(ctx, "short", 1, time.Minute))
	require.NoError(t, m.SetCache(ctx, "long", 2, 2*time.Hour))
	clk.Advance(time.Hour)

	n, err := m.ClearExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var v int
	ok, _ := m.GetCache(ctx, "long", &v)
	assert.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestSettingsKeepClearedDefaults(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	s := domain.DefaultSettings()
	require.NotEmpty(t, s.DefaultTags)
	s.DefaultTags = []string{}
	s.MaxRetries = 0
	require.NoError(t, m.SaveSettings(ctx, s))

	got, err := m.Settings(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.DefaultTags, "cleared tags must not come back as defaults")
	assert.Equal(t, 0, got.MaxRetries)
	assert.Equal(t, 1, got.Attempts())
}

func TestEnsureSettings(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	created, err := m.EnsureSettings(ctx, domain.DefaultSettings())
	require.NoError(t, err)
	assert.True(t, created)

	_, err = m.UpdateSettings(ctx, func(s *domain.Settings) error {
		s.AppID = "cli_custom"
		return nil
	})
	require.NoError(t, err)

	created, err = m.EnsureSettings(ctx, domain.DefaultSettings())
	require.NoError(t, err)
	assert.False(t, created)

	s, err := m.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cli_custom", s.AppID)
	assert.Equal(t, domain.DefaultMaxRetries, s.MaxRetries)

	prefs, err := m.Preferences(ctx)
	require.NoError(t, err)
	assert.Equal(t, "zh-CN", prefs.Language)
}

func TestRecordAttempt(t *testing.T) {
	m, _, _ := newManager(t)
	ctx := context.Background()

	_, err := m.RecordAttempt(ctx, true)
	require.NoError(t, err)
	stats, err := m.RecordAttempt(ctx, false)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalAttempts)
	assert.Equal(t, 1, stats.SuccessfulAttempts)
	assert.Equal(t, 50, stats.SuccessRate)
}
