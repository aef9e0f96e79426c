package store

import (
	"context"

	"github.com/MrSnakeDoc/bitmark/internal/domain"
	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

// Settings returns the stored settings, or the defaults when none exist.
func (m *Manager) Settings(ctx context.Context) (domain.Settings, error) {
	s := domain.DefaultSettings()
	if _, err := m.load(ctx, BucketConfig, &s); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

// SaveSettings replaces the stored settings.
func (m *Manager) SaveSettings(ctx context.Context, s domain.Settings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, BucketConfig, s)
}

// UpdateSettings applies fn to the stored settings and saves the result.
func (m *Manager) UpdateSettings(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := fn(&s); err != nil {
		return domain.Settings{}, err
	}
	if err := m.save(ctx, BucketConfig, s); err != nil {
		return domain.Settings{}, err
	}
	return s, nil
}

// EnsureSettings writes defaults for every bucket that does not exist yet
// (first run). It reports whether the config bucket was created.
func (m *Manager) EnsureSettings(ctx context.Context, defaults domain.Settings) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	items, err := m.backend.Get(ctx, BucketConfig, BucketStats, BucketPreferences)
	if err != nil {
		return false, err
	}

	created := false
	if _, ok := items[BucketConfig]; !ok {
		if err := m.save(ctx, BucketConfig, defaults); err != nil {
			return false, err
		}
		created = true
		m.log.Info("default settings initialized",
			logger.Int("max_retries", defaults.MaxRetries),
			logger.Bool("complete", defaults.IsComplete()),
		)
	}
	if _, ok := items[BucketStats]; !ok {
		if err := m.save(ctx, BucketStats, domain.DefaultStats()); err != nil {
			return created, err
		}
	}
	if _, ok := items[BucketPreferences]; !ok {
		if err := m.save(ctx, BucketPreferences, domain.DefaultPreferences()); err != nil {
			return created, err
		}
	}
	return created, nil
}

// Stats returns the capture counters.
func (m *Manager) Stats(ctx context.Context) (domain.Stats, error) {
	s := domain.DefaultStats()
	if _, err := m.load(ctx, BucketStats, &s); err != nil {
		return domain.Stats{}, err
	}
	return s, nil
}

// RecordAttempt counts one capture outcome.
func (m *Manager) RecordAttempt(ctx context.Context, success bool) (domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.Stats(ctx)
	if err != nil {
		return domain.Stats{}, err
	}
	s = s.Record(success, m.now())
	if err := m.save(ctx, BucketStats, s); err != nil {
		return domain.Stats{}, err
	}
	return s, nil
}

// Preferences returns the UI preferences.
func (m *Manager) Preferences(ctx context.Context) (domain.Preferences, error) {
	p := domain.DefaultPreferences()
	if _, err := m.load(ctx, BucketPreferences, &p); err != nil {
		return domain.Preferences{}, err
	}
	return p, nil
}

// SavePreferences replaces the UI preferences.
func (m *Manager) SavePreferences(ctx context.Context, p domain.Preferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(ctx, BucketPreferences, p)
}
