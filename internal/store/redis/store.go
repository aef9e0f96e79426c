package redis

import (
	"context"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// Store is the Redis backend of the local store. Each bucket is one string
// key holding a JSON document.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

// Get fetches the buckets in one MGET. Missing buckets are absent from the result.
func (s *Store) Get(ctx context.Context, buckets ...string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(buckets))
	if len(buckets) == 0 {
		return out, nil
	}

	values, err := s.client.MGet(ctx, BucketKeys(buckets)...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get buckets: %w", err)
	}

	for i, v := range values {
		switch val := v.(type) {
		case nil:
			// missing
		case string:
			out[buckets[i]] = []byte(val)
		default:
			return nil, fmt.Errorf("unexpected value type %T for bucket %s", v, buckets[i])
		}
	}
	return out, nil
}

// Set writes the buckets in one pipeline. Buckets do not expire; cache
// expiry is carried inside the document.
func (s *Store) Set(ctx context.Context, items map[string][]byte) error {
	if len(items) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for bucket, data := range items {
		pipe.Set(ctx, BucketKey(bucket), data, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save buckets: %w", err)
	}
	return nil
}

// Remove deletes the buckets.
func (s *Store) Remove(ctx context.Context, buckets ...string) error {
	if len(buckets) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, BucketKeys(buckets)...).Err(); err != nil {
		return fmt.Errorf("failed to delete buckets: %w", err)
	}
	return nil
}

// Keys lists every bucket with SCAN, sorted.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var buckets []string

	iter := s.client.Scan(ctx, 0, KeyPrefix+"*", scanBatch).Iterator()
	for iter.Next(ctx) {
		bucket, err := ExtractBucket(iter.Val())
		if err != nil {
			continue
		}
		buckets = append(buckets, bucket)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan buckets: %w", err)
	}

	sort.Strings(buckets)
	return buckets, nil
}

// BytesInUse sums bucket name and value lengths, like the browser storage
// API the buckets mirror.
func (s *Store) BytesInUse(ctx context.Context, buckets ...string) (int64, error) {
	if len(buckets) == 0 {
		all, err := s.Keys(ctx)
		if err != nil {
			return 0, err
		}
		buckets = all
	}
	if len(buckets) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	lens := make([]*redis.IntCmd, len(buckets))
	for i, b := range buckets {
		lens[i] = pipe.StrLen(ctx, BucketKey(b))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to measure buckets: %w", err)
	}

	var total int64
	for i, cmd := range lens {
		if n := cmd.Val(); n > 0 {
			total += n + int64(len(buckets[i]))
		}
	}
	return total, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
