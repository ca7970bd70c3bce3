package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/metrics"
)

// BookmarkSource lists mirrored bookmarks.
type BookmarkSource interface {
	GetAllBookmarks(ctx context.Context) ([]*domain.Bookmark, error)
}

// RedisSyncer hydrates the memory index from the redis mirror on startup,
// before the datastore is read. The datastore wins as soon as it loads.
type RedisSyncer struct {
	store  BookmarkSource
	index  *index.MemoryIndex
	logger logger.Logger
}

// NewRedisSyncer creates a new Redis syncer
func NewRedisSyncer(
	store BookmarkSource,
	idx *index.MemoryIndex,
	log logger.Logger,
) *RedisSyncer {
	return &RedisSyncer{
		store:  store,
		index:  idx,
		logger: log,
	}
}

// Sync loads bookmarks from Redis and updates memory index
func (rs *RedisSyncer) Sync(ctx context.Context) error {
	rs.logger.Info("syncing bookmarks from redis to memory")

	bookmarks, err := rs.store.GetAllBookmarks(ctx)
	if err != nil {
		return err
	}

	if len(bookmarks) == 0 {
		rs.logger.Info("no bookmarks found in redis")
		return nil
	}

	valid := bookmarks[:0]
	for _, b := range bookmarks {
		if err := b.Validate(); err != nil {
			rs.logger.Warn("skipping invalid mirrored bookmark", logger.Error(err))
			continue
		}
		valid = append(valid, b)
	}

	rs.index.Replace(valid)
	metrics.BookmarksLoaded.Set(float64(len(valid)))

	rs.logger.Info("synced bookmarks from redis",
		logger.Int("count", len(valid)))

	return nil
}
