package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/search"
)

// CacheTagCloud stores a computed tag cloud under key
func (s *Store) CacheTagCloud(ctx context.Context, key string, counts []search.TagCount, ttl time.Duration) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return fmt.Errorf("failed to marshal tag cloud: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache tag cloud: %w", err)
	}
	return nil
}

// GetCachedTagCloud retrieves a cached tag cloud. ok is false on a cache miss.
func (s *Store) GetCachedTagCloud(ctx context.Context, key string) (counts []search.TagCount, ok bool, err error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil // Cache miss
		}
		return nil, false, fmt.Errorf("failed to get cached tag cloud: %w", err)
	}
	if err := json.Unmarshal(data, &counts); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal tag cloud: %w", err)
	}
	return counts, true, nil
}

// FlushTagClouds removes all cached tag clouds
func (s *Store) FlushTagClouds(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixTagCloud+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete tag cloud key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush tag clouds: %w", err)
	}
	return nil
}
