package redis

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every bucket so the store can share a Redis database.
const KeyPrefix = "bitmark:"

// BucketKey returns the Redis key for a bucket.
func BucketKey(bucket string) string {
	return KeyPrefix + bucket
}

// BucketKeys maps bucket names to Redis keys.
func BucketKeys(buckets []string) []string {
	keys := make([]string, len(buckets))
	for i, b := range buckets {
		keys[i] = BucketKey(b)
	}
	return keys
}

// ExtractBucket extracts the bucket name from a Redis key.
func ExtractBucket(key string) (string, error) {
	if len(key) <= len(KeyPrefix) || !strings.HasPrefix(key, KeyPrefix) {
		return "", fmt.Errorf("invalid bucket key: %s", key)
	}
	return key[len(KeyPrefix):], nil
}
