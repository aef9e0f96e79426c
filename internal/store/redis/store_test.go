package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStore connects to BITMARK_TEST_REDIS_ADDR and flushes the selected
// database. The tests are skipped when the variable is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	addr := os.Getenv("BITMARK_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("BITMARK_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = client.Close() })

	return NewStore(client)
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, map[string][]byte{
		"config":  []byte(`{"appId":"cli_x"}`),
		"history": []byte(`[]`),
	}))

	got, err := s.Get(ctx, "config", "missing")
	require.NoError(t, err)
	assert.Equal(t, `{"appId":"cli_x"}`, string(got["config"]))
	assert.NotContains(t, got, "missing")

	keys, err := s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"config", "history"}, keys)

	used, err := s.BytesInUse(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len("config")+17+len("history")+2), used)

	require.NoError(t, s.Remove(ctx, "config"))
	keys, err = s.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"history"}, keys)
}
