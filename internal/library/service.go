package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/MrSnakeDoc/marks/internal/datastore"
	"github.com/MrSnakeDoc/marks/internal/domain"
	"github.com/MrSnakeDoc/marks/internal/index"
	"github.com/MrSnakeDoc/marks/internal/logger"
	"github.com/MrSnakeDoc/marks/internal/metrics"
	"github.com/MrSnakeDoc/marks/internal/search"
)

var (
	ErrInvalidURL = errors.New("url must be absolute http(s) or empty for a note")
	ErrEmpty      = errors.New("bookmark needs a url, a title or a description")
)

// Mirror receives every persisted change. Implementations are best effort.
type Mirror interface {
	SaveBookmark(ctx context.Context, b *domain.Bookmark) error
	DeleteBookmark(ctx context.Context, id int) error
	FlushTagClouds(ctx context.Context) error
}

// Draft is the user-editable part of a bookmark.
type Draft struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
	Private     bool   `json:"private"`
	Sticky      bool   `json:"sticky"`
}

// Service owns bookmark mutations: datastore first, then the in-memory index,
// then the mirror.
type Service struct {
	mu     sync.Mutex
	store  *datastore.Store
	index  *index.MemoryIndex
	mirror Mirror // optional
	sep    string
	now    func() time.Time
	log    logger.Logger
}

func NewService(store *datastore.Store, idx *index.MemoryIndex, mirror Mirror, tagSeparator string, log logger.Logger) *Service {
	if tagSeparator == "" {
		tagSeparator = domain.DefaultTagSeparator
	}
	return &Service{
		store:  store,
		index:  idx,
		mirror: mirror,
		sep:    tagSeparator,
		now:    time.Now,
		log:    log,
	}
}

// Get returns the stored bookmark with id.
func (s *Service) Get(id int) (*domain.Bookmark, error) {
	b, ok := s.index.Get(id)
	if !ok {
		return nil, fmt.Errorf("bookmark %d: %w", id, search.ErrNotFound)
	}
	return b, nil
}

// Add creates a bookmark with the next free id.
func (s *Service) Add(ctx context.Context, d Draft) (*domain.Bookmark, error) {
	if err := s.check(d); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var created *domain.Bookmark
	next, err := s.store.Update(s.seed, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
		// the index may hold ids a hand-edited file has lost
		id := max(nextID(cur), s.index.NextID())
		b := &domain.Bookmark{
			ID:      id,
			ShortID: domain.ShortIDFor(id),
			Created: s.now(),
		}
		s.apply(b, d)
		created = b
		return append(cur, b), nil
	})
	observe("add", err)
	if err != nil {
		return nil, fmt.Errorf("add bookmark: %w", err)
	}

	s.index.Replace(next)
	metrics.BookmarksLoaded.Set(float64(len(next)))
	s.mirrorSave(ctx, created)
	s.log.Info("bookmark added", logger.Int("id", created.ID), logger.String("shortid", created.ShortID))
	return created, nil
}

// Update replaces the editable fields of bookmark id.
func (s *Service) Update(ctx context.Context, id int, d Draft) (*domain.Bookmark, error) {
	if err := s.check(d); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var updated *domain.Bookmark
	next, err := s.store.Update(s.seed, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
		for i, b := range cur {
			if b.ID != id {
				continue
			}
			cp := b.Clone()
			s.apply(cp, d)
			cp.Touch(s.now())
			cur[i] = cp
			updated = cp
			return cur, nil
		}
		return nil, fmt.Errorf("bookmark %d: %w", id, search.ErrNotFound)
	})
	observe("update", err)
	if err != nil {
		return nil, fmt.Errorf("update bookmark: %w", err)
	}

	s.index.Replace(next)
	metrics.BookmarksLoaded.Set(float64(len(next)))
	s.mirrorSave(ctx, updated)
	s.log.Info("bookmark updated", logger.Int("id", id))
	return updated, nil
}

// Delete removes bookmark id.
func (s *Service) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.store.Update(s.seed, func(cur []*domain.Bookmark) ([]*domain.Bookmark, error) {
		out := make([]*domain.Bookmark, 0, len(cur))
		for _, b := range cur {
			if b.ID != id {
				out = append(out, b)
			}
		}
		if len(out) == len(cur) {
			return nil, fmt.Errorf("bookmark %d: %w", id, search.ErrNotFound)
		}
		return out, nil
	})
	observe("delete", err)
	if err != nil {
		return fmt.Errorf("delete bookmark: %w", err)
	}

	s.index.Replace(next)
	metrics.BookmarksLoaded.Set(float64(len(next)))
	if s.mirror != nil {
		if err := s.mirror.DeleteBookmark(ctx, id); err != nil {
			s.log.Warn("mirror delete failed", logger.Int("id", id), logger.Error(err))
		}
		s.flushTagClouds(ctx)
	}
	s.log.Info("bookmark deleted", logger.Int("id", id))
	return nil
}

// seed lets a first write start from what the index holds, e.g. after a
// hydration from redis with no datastore file on disk.
func (s *Service) seed() []*domain.Bookmark {
	all := s.index.Snapshot().All()
	out := make([]*domain.Bookmark, len(all))
	copy(out, all)
	return out
}

func (s *Service) check(d Draft) error {
	u := strings.TrimSpace(d.URL)
	if u == "" && strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Description) == "" {
		return ErrEmpty
	}
	if u != "" && !strings.HasPrefix(u, domain.NotePrefix) &&
		!strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return fmt.Errorf("%w: %q", ErrInvalidURL, u)
	}
	return nil
}

func (s *Service) apply(b *domain.Bookmark, d Draft) {
	b.URL = strings.TrimSpace(d.URL)
	if b.URL == "" {
		b.URL = domain.NoteURL(b.ShortID)
	}
	b.Title = strings.TrimSpace(d.Title)
	if b.Title == "" {
		b.Title = b.URL
	}
	b.Description = d.Description
	b.Tags = domain.ParseTags(d.Tags, s.sep)
	b.Private = d.Private
	b.Sticky = d.Sticky
}

func (s *Service) mirrorSave(ctx context.Context, b *domain.Bookmark) {
	if s.mirror == nil {
		return
	}
	if err := s.mirror.SaveBookmark(ctx, b); err != nil {
		s.log.Warn("mirror save failed", logger.Int("id", b.ID), logger.Error(err))
	}
	s.flushTagClouds(ctx)
}

func (s *Service) flushTagClouds(ctx context.Context) {
	if err := s.mirror.FlushTagClouds(ctx); err != nil {
		s.log.Warn("tag cloud flush failed", logger.Error(err))
	}
}

func observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.MutationsTotal.WithLabelValues(op, result).Inc()
}

func nextID(bookmarks []*domain.Bookmark) int {
	next := 1
	for _, b := range bookmarks {
		if b.ID >= next {
			next = b.ID + 1
		}
	}
	return next
}
