package index

import (
	"sync"
	"time"

	"github.com/bits-and-blooms/bitset"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// MemoryIndex holds the bookmark collection in memory.
// Bookmarks are treated as immutable once stored: Put replaces the pointer, it
// never edits the stored value, so a Snapshot stays valid after a mutation.
type MemoryIndex struct {
	mu         sync.RWMutex
	byID       map[int]*domain.Bookmark // ID -> Bookmark
	order      []*domain.Bookmark       // insertion order
	snap       *Snapshot                // rebuilt on every mutation
	lastReload time.Time                // Timestamp of last full reload
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	idx := &MemoryIndex{byID: make(map[int]*domain.Bookmark)}
	idx.snap = buildSnapshot(nil)
	return idx
}

// Replace swaps the whole collection, keeping the given order.
// A later duplicate id replaces the earlier one in place.
func (idx *MemoryIndex) Replace(bookmarks []*domain.Bookmark) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	// Clear and rebuild
	idx.byID = make(map[int]*domain.Bookmark, len(bookmarks))
	idx.order = make([]*domain.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		idx.put(b)
	}
	idx.lastReload = time.Now()
	idx.snap = buildSnapshot(idx.order)
}

// Get retrieves a bookmark by ID.
func (idx *MemoryIndex) Get(id int) (*domain.Bookmark, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	b, ok := idx.byID[id]
	return b, ok
}

// Put adds a bookmark or replaces the one with the same ID, keeping its position.
func (idx *MemoryIndex) Put(b *domain.Bookmark) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.put(b)
	idx.snap = buildSnapshot(idx.order)
}

func (idx *MemoryIndex) put(b *domain.Bookmark) {
	if _, ok := idx.byID[b.ID]; ok {
		for i, cur := range idx.order {
			if cur.ID == b.ID {
				idx.order[i] = b
				break
			}
		}
	} else {
		idx.order = append(idx.order, b)
	}
	idx.byID[b.ID] = b
}

// Delete removes a bookmark. It reports whether the ID was present.
func (idx *MemoryIndex) Delete(id int) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, ok := idx.byID[id]; !ok {
		return false
	}
	delete(idx.byID, id)

	order := make([]*domain.Bookmark, 0, len(idx.order)-1)
	for _, b := range idx.order {
		if b.ID != id {
			order = append(order, b)
		}
	}
	idx.order = order
	idx.snap = buildSnapshot(idx.order)
	return true
}

// Snapshot returns the immutable view of the collection at this instant.
func (idx *MemoryIndex) Snapshot() *Snapshot {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.snap
}

// Count returns the number of bookmarks in the index.
func (idx *MemoryIndex) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.byID)
}

// NextID returns the id to give the next new bookmark: max id + 1.
func (idx *MemoryIndex) NextID() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	next := 1
	for id := range idx.byID {
		if id >= next {
			next = id + 1
		}
	}
	return next
}

// GetLastReload returns the timestamp of the last full reload.
func (idx *MemoryIndex) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}

// ─────────────────────────────────────────────────────────────────
// Snapshot
// ─────────────────────────────────────────────────────────────────

// Snapshot is a read-only view of the collection with tag posting lists.
// Positions in the posting lists are indexes into All().
type Snapshot struct {
	bookmarks []*domain.Bookmark
	postings  map[string]*bitset.BitSet // folded tag -> positions
}

func buildSnapshot(order []*domain.Bookmark) *Snapshot {
	bookmarks := make([]*domain.Bookmark, len(order))
	copy(bookmarks, order)

	size := uint(len(bookmarks))
	postings := make(map[string]*bitset.BitSet)
	for i, b := range bookmarks {
		for _, tag := range b.Tags {
			key := domain.FoldTag(tag)
			set, ok := postings[key]
			if !ok {
				set = bitset.New(size)
				postings[key] = set
			}
			set.Set(uint(i))
		}
	}
	return &Snapshot{bookmarks: bookmarks, postings: postings}
}

// All returns the bookmarks in insertion order.
func (s *Snapshot) All() []*domain.Bookmark {
	return s.bookmarks
}

// WithTags intersects the posting lists of tags (matched case-insensitively).
// It returns nil for an empty tag list.
func (s *Snapshot) WithTags(tags []string) *bitset.BitSet {
	if len(tags) == 0 {
		return nil
	}

	var out *bitset.BitSet
	for _, tag := range tags {
		set, ok := s.postings[domain.FoldTag(tag)]
		if !ok {
			return bitset.New(0)
		}
		if out == nil {
			out = set.Clone()
			continue
		}
		out.InPlaceIntersection(set)
	}
	return out
}
