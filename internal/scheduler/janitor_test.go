package scheduler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
	"github.com/MrSnakeDoc/bitmark/internal/store"
	"github.com/MrSnakeDoc/bitmark/internal/store/memory"
)

func TestJanitor_Collect(t *testing.T) {
	log := logger.New("error", false)
	now := time.Now()
	m := store.NewManager(memory.New(), log, func() time.Time { return now })
	ctx := context.Background()

	entries := []struct {
		url string
		age time.Duration
	}{
		{"https://fresh.example.com", 0},
		{"https://recent.example.com", 10 * 24 * time.Hour}, // 10 days ago
		{"https://old.example.com", 35 * 24 * time.Hour},    // 35 days ago
	}
	for _, e := range entries {
		c := domain.Capture{URL: e.url, Title: e.url}
		if _, err := m.AddToHistory(ctx, domain.NewHistoryEntry(c, domain.StatusSynced, now.Add(-e.age))); err != nil {
			t.Fatalf("AddToHistory failed: %v", err)
		}
	}

	// Create janitor with 30 day retention
	j := NewJanitor(m, log, 24*time.Hour, 30*24*time.Hour)
	j.now = func() time.Time { return now }

	if err := j.Collect(ctx); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	history, err := m.History(ctx, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}

	// Should have 2 entries left (fresh + recent)
	if len(history) != 2 {
		t.Errorf("Expected 2 entries after cleanup, got %d", len(history))
	}
	if _, found, _ := m.FindHistoryByURL(ctx, "https://old.example.com"); found {
		t.Error("Old entry was not pruned")
	}
	if _, found, _ := m.FindHistoryByURL(ctx, "https://recent.example.com"); !found {
		t.Error("Recent entry was incorrectly removed")
	}
}

func TestJanitor_CollectKeepsRecentAndPendingHistory(t *testing.T) {
	log := logger.New("error", false)
	now := time.Now()
	m := store.NewManager(memory.New(), log, func() time.Time { return now })
	ctx := context.Background()

	// 450 entries over the last 8 hours, the oldest 100 never synced
	const total, local = 450, 100
	for i := 0; i < total; i++ {
		status := domain.StatusSynced
		if i < local {
			status = domain.StatusLocal
		}
		c := domain.Capture{URL: fmt.Sprintf("https://site.example.com/%d", i), Title: "page"}
		savedAt := now.Add(-8 * time.Hour).Add(time.Duration(i) * time.Minute)
		if _, err := m.AddToHistory(ctx, domain.NewHistoryEntry(c, status, savedAt)); err != nil {
			t.Fatalf("AddToHistory failed: %v", err)
		}
	}

	j := NewJanitor(m, log, time.Hour, DefaultHistoryRetention)
	j.now = func() time.Time { return now }

	if err := j.Collect(ctx); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	history, err := m.History(ctx, 0)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != total {
		t.Errorf("Expected %d entries after cleanup, got %d", total, len(history))
	}

	pending, err := m.PendingHistory(ctx)
	if err != nil {
		t.Fatalf("PendingHistory failed: %v", err)
	}
	if len(pending) != local {
		t.Errorf("Expected %d pending entries after cleanup, got %d", local, len(pending))
	}
}

func TestJanitor_CollectKeepsOldPendingHistory(t *testing.T) {
	log := logger.New("error", false)
	now := time.Now()
	m := store.NewManager(memory.New(), log, func() time.Time { return now })
	ctx := context.Background()

	c := domain.Capture{URL: "https://offline.example.com", Title: "offline"}
	if _, err := m.AddToHistory(ctx, domain.NewHistoryEntry(c, domain.StatusFailed, now.Add(-60*24*time.Hour))); err != nil {
		t.Fatalf("AddToHistory failed: %v", err)
	}

	j := NewJanitor(m, log, time.Hour, 30*24*time.Hour)
	j.now = func() time.Time { return now }

	if err := j.Collect(ctx); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if _, found, _ := m.FindHistoryByURL(ctx, "https://offline.example.com"); !found {
		t.Error("Failed entry was pruned before it could be resynced")
	}
}

func TestNewJanitor_DefaultRetention(t *testing.T) {
	j := NewJanitor(nil, logger.New("error", false), time.Hour, 0)
	if j.retention != DefaultHistoryRetention {
		t.Errorf("retention = %v, want %v", j.retention, DefaultHistoryRetention)
	}
}
