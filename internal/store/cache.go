package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/bitmark/internal/logger"
)

// DefaultCacheTTL applies when SetCache is given no TTL.
const DefaultCacheTTL = time.Hour

// cacheEntry is the stored form of a cache bucket. Times are epoch milliseconds.
type cacheEntry struct {
	Data    json.RawMessage `json:"data"`
	Expiry  int64           `json:"expiry"`
	Created int64           `json:"created"`
}

// CacheKey returns the bucket name for a cache key.
func CacheKey(key string) string {
	return CachePrefix + key
}

// SetCache stores data under key until ttl elapses.
func (m *Manager) SetCache(ctx context.Context, key string, data any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode cache %s: %w", key, err)
	}

	now := m.now()
	return m.save(ctx, CacheKey(key), cacheEntry{
		Data:    raw,
		Expiry:  now.Add(ttl).UnixMilli(),
		Created: now.UnixMilli(),
	})
}

// GetCache decodes the cached value into dst. It reports a miss when the
// key is absent or expired; expired entries are evicted.
func (m *Manager) GetCache(ctx context.Context, key string, dst any) (bool, error) {
	var entry cacheEntry
	ok, err := m.load(ctx, CacheKey(key), &entry)
	if err != nil || !ok {
		return false, err
	}

	if m.now().UnixMilli() > entry.Expiry {
		if err := m.remove(ctx, CacheKey(key)); err != nil {
			m.log.Warn("failed to evict expired cache", logger.String("key", key), logger.Error(err))
		}
		return false, nil
	}

	if err := json.Unmarshal(entry.Data, dst); err != nil {
		return false, fmt.Errorf("failed to decode cache %s: %w", key, err)
	}
	return true, nil
}

// RemoveCache drops a cache key.
func (m *Manager) RemoveCache(ctx context.Context, key string) error {
	return m.remove(ctx, CacheKey(key))
}

// ClearExpiredCache evicts every expired cache bucket and returns how many.
func (m *Manager) ClearExpiredCache(ctx context.Context) (int, error) {
	return m.clearCache(ctx, true)
}

// ClearCache evicts every cache bucket and returns how many.
func (m *Manager) ClearCache(ctx context.Context) (int, error) {
	return m.clearCache(ctx, false)
}

func (m *Manager) clearCache(ctx context.Context, onlyExpired bool) (int, error) {
	keys, err := m.cacheKeys(ctx)
	if err != nil || len(keys) == 0 {
		return 0, err
	}

	victims := keys
	if onlyExpired {
		items, err := m.backend.Get(ctx, keys...)
		if err != nil {
			return 0, fmt.Errorf("failed to read caches: %w", err)
		}
		now := m.now().UnixMilli()
		victims = victims[:0:0]
		for _, k := range keys {
			var entry cacheEntry
			if err := json.Unmarshal(items[k], &entry); err != nil || now > entry.Expiry {
				victims = append(victims, k)
			}
		}
	}

	if err := m.remove(ctx, victims...); err != nil {
		return 0, err
	}
	return len(victims), nil
}

func (m *Manager) cacheKeys(ctx context.Context) ([]string, error) {
	all, err := m.backend.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	var keys []string
	for _, k := range all {
		if strings.HasPrefix(k, CachePrefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}
