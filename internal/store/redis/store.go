package redis

import (
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultBookmarkTTL keeps mirrored bookmarks until they are deleted
	DefaultBookmarkTTL time.Duration = 0
	// DefaultTagCloudTTL is the default TTL for cached tag clouds (10 minutes)
	DefaultTagCloudTTL = 10 * time.Minute
)

// Store mirrors bookmarks to Redis and caches tag clouds
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}
