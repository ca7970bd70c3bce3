package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/search"
)

// SaveBookmark stores a bookmark in Redis
func (s *Store) SaveBookmark(ctx context.Context, bookmark *domain.Bookmark) error {
	data, err := json.Marshal(bookmark)
	if err != nil {
		return fmt.Errorf("failed to marshal bookmark: %w", err)
	}

	key := BookmarkKey(bookmark.ID)

	// Store bookmark data
	if err := s.client.Set(ctx, key, data, DefaultBookmarkTTL).Err(); err != nil {
		return fmt.Errorf("failed to save bookmark: %w", err)
	}

	// Add to set of all bookmarks
	if err := s.client.SAdd(ctx, AllBookmarksKey(), bookmark.ID).Err(); err != nil {
		return fmt.Errorf("failed to add bookmark to set: %w", err)
	}

	return nil
}

// GetBookmark retrieves a bookmark from Redis by ID
func (s *Store) GetBookmark(ctx context.Context, id int) (*domain.Bookmark, error) {
	key := BookmarkKey(id)
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("bookmark %d: %w", id, search.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get bookmark: %w", err)
	}

	var bookmark domain.Bookmark
	if err := json.Unmarshal(data, &bookmark); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bookmark: %w", err)
	}

	return &bookmark, nil
}

// GetAllBookmarks retrieves all bookmarks from Redis, ordered by ID
func (s *Store) GetAllBookmarks(ctx context.Context) ([]*domain.Bookmark, error) {
	// Get all bookmark IDs
	members, err := s.client.SMembers(ctx, AllBookmarksKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmark IDs: %w", err)
	}

	if len(members) == 0 {
		return []*domain.Bookmark{}, nil
	}

	ids := make([]int, 0, len(members))
	for _, m := range members {
		id, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	// Retrieve all bookmarks
	bookmarks := make([]*domain.Bookmark, 0, len(ids))
	for _, id := range ids {
		bookmark, err := s.GetBookmark(ctx, id)
		if err != nil {
			// Skip bookmarks that couldn't be retrieved
			continue
		}
		bookmarks = append(bookmarks, bookmark)
	}

	return bookmarks, nil
}

// DeleteBookmark removes a bookmark from Redis
func (s *Store) DeleteBookmark(ctx context.Context, id int) error {
	key := BookmarkKey(id)

	// Delete bookmark data
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete bookmark: %w", err)
	}

	// Remove from set of all bookmarks
	if err := s.client.SRem(ctx, AllBookmarksKey(), id).Err(); err != nil {
		return fmt.Errorf("failed to remove bookmark from set: %w", err)
	}

	return nil
}

// SaveBookmarksMany stores multiple bookmarks in Redis (bulk operation)
func (s *Store) SaveBookmarksMany(ctx context.Context, bookmarks []*domain.Bookmark) error {
	pipe := s.client.Pipeline()

	for _, bookmark := range bookmarks {
		data, err := json.Marshal(bookmark)
		if err != nil {
			return fmt.Errorf("failed to marshal bookmark %d: %w", bookmark.ID, err)
		}

		key := BookmarkKey(bookmark.ID)
		pipe.Set(ctx, key, data, DefaultBookmarkTTL)
		pipe.SAdd(ctx, AllBookmarksKey(), bookmark.ID)
	}

	_, err := pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to save bookmarks: %w", err)
	}

	return nil
}

// ReplaceBookmarks makes the mirror hold exactly bookmarks: it saves them all
// and removes the bookmark keys of every other ID.
func (s *Store) ReplaceBookmarks(ctx context.Context, bookmarks []*domain.Bookmark) error {
	if err := s.SaveBookmarksMany(ctx, bookmarks); err != nil {
		return err
	}

	keep := make(map[int]struct{}, len(bookmarks))
	for _, b := range bookmarks {
		keep[b.ID] = struct{}{}
	}

	iter := s.client.Scan(ctx, 0, KeyPrefixBookmark+"*", 0).Iterator()
	for iter.Next(ctx) {
		id, err := ExtractBookmarkID(iter.Val())
		if err != nil {
			continue
		}
		if _, ok := keep[id]; ok {
			continue
		}
		if err := s.DeleteBookmark(ctx, id); err != nil {
			return err
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to prune bookmarks: %w", err)
	}
	return nil
}

// CountBookmarks returns the size of the mirrored set
func (s *Store) CountBookmarks(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, AllBookmarksKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count bookmarks: %w", err)
	}
	return n, nil
}
