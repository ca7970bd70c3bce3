package deps

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/library"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/search"
)

// TagCloudCache stores computed tag clouds. Implemented by the redis store.
type TagCloudCache interface {
	CacheTagCloud(ctx context.Context, key string, counts []search.TagCount, ttl time.Duration) error
	GetCachedTagCloud(ctx context.Context, key string) ([]search.TagCount, bool, error)
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	AllowedHosts  []string           // Host headers allowed to access the server
	AllowedCIDRS  []string           // IPs allowed to access admin endpoints
	TrustProxy    bool               // true if running behind a trusted reverse proxy (e.g., cloudflared)
	APISecret     string             // bearer token unlocking private bookmarks and writes
	DatastoreFile string             // Path to the bookmarks.yaml file
	RedisClient   *redis.Client      // nil when redis is disabled
	TagClouds     TagCloudCache      // nil when redis is disabled
	TagCloudTTL   time.Duration      // lifetime of a cached tag cloud
	MemoryIndex   *index.MemoryIndex // In-memory bookmark index
	Engine        *search.Engine     // read side
	Library       *library.Service   // write side
	ReloadTrigger chan struct{}      // Channel to trigger manual datastore reload

	RateLimitBurst  int
	RateLimitRefill int // per client IP, per minute
}
