package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

// Bucket names.
const (
	BucketConfig      = "config"
	BucketHistory     = "history"
	BucketStats       = "stats"
	BucketPreferences = "preferences"
	BucketBackup      = "backup"

	// CachePrefix prefixes every cache bucket (cache_<key>).
	CachePrefix = "cache_"
)

// Backend is the key-value capability the manager persists through. Values
// are JSON documents; keys that do not exist are absent from Get results.
type Backend interface {
	Get(ctx context.Context, keys ...string) (map[string][]byte, error)
	Set(ctx context.Context, items map[string][]byte) error
	Remove(ctx context.Context, keys ...string) error
	Keys(ctx context.Context) ([]string, error)

	// BytesInUse reports the size of the given keys, or of everything when
	// no key is given.
	BytesInUse(ctx context.Context, keys ...string) (int64, error)

	Ping(ctx context.Context) error
}

// Manager implements the typed buckets on top of a Backend.
type Manager struct {
	backend Backend
	log     logger.Logger
	now     func() time.Time

	// mu serializes every read-modify-write (history, settings, stats).
	mu sync.Mutex
}

// NewManager builds a manager. A nil clock means time.Now.
func NewManager(backend Backend, log logger.Logger, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{
		backend: backend,
		log:     log,
		now:     now,
	}
}

// Ping checks the backend.
func (m *Manager) Ping(ctx context.Context) error {
	return m.backend.Ping(ctx)
}

// load decodes a bucket into dst. It reports false when the bucket is absent.
func (m *Manager) load(ctx context.Context, key string, dst any) (bool, error) {
	items, err := m.backend.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	raw, ok := items[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// save encodes v into a bucket.
func (m *Manager) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := m.backend.Set(ctx, map[string][]byte{key: data}); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func (m *Manager) remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := m.backend.Remove(ctx, keys...); err != nil {
		return fmt.Errorf("failed to remove %v: %w", keys, err)
	}
	return nil
}

// ErrInvalidImport is returned when an import document lacks its stamps.
var ErrInvalidImport = errors.New("invalid import document")
