package redis

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// KeyPrefixBookmark is the prefix for bookmark keys
	KeyPrefixBookmark = "marks:bookmark:"
	// KeyAllBookmarks is the key for the set of all bookmark IDs
	KeyAllBookmarks = "marks:bookmarks:all"
	// KeyPrefixTagCloud is the prefix for cached tag clouds
	KeyPrefixTagCloud = "marks:tagcloud:"
)

// BookmarkKey returns the Redis key for a bookmark by ID
func BookmarkKey(id int) string {
	return KeyPrefixBookmark + strconv.Itoa(id)
}

// AllBookmarksKey returns the key for the set of all bookmark IDs
func AllBookmarksKey() string {
	return KeyAllBookmarks
}

// TagCloudKey returns the cache key of one tag cloud variant.
// The filter is hashed so arbitrary user input never ends up in a key.
// Example: TagCloudKey("usage", "public", false, "web go") -> marks:tagcloud:usage:public:anon:1f0c...
func TagCloudKey(order, visibility string, authenticated bool, filter string) string {
	who := "anon"
	if authenticated {
		who = "auth"
	}
	sum := strconv.FormatUint(xxhash.Sum64String(strings.ToLower(filter)), 16)
	return KeyPrefixTagCloud + order + ":" + visibility + ":" + who + ":" + sum
}

// ExtractBookmarkID extracts the bookmark ID from a Redis key
func ExtractBookmarkID(key string) (int, error) {
	if len(key) <= len(KeyPrefixBookmark) || !strings.HasPrefix(key, KeyPrefixBookmark) {
		return 0, fmt.Errorf("invalid bookmark key: %s", key)
	}
	id, err := strconv.Atoi(key[len(KeyPrefixBookmark):])
	if err != nil {
		return 0, fmt.Errorf("invalid bookmark key: %s", key)
	}
	return id, nil
}
