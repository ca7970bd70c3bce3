package search

import (
	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Engine binds the search operations to a collection source and its configured
// defaults. Each call reads the source once, so an operation never sees two
// versions of the collection.
type Engine struct {
	source         func() Collection
	tagSeparator   string
	defaultPerPage int
}

// NewEngine returns an Engine over source. Zero values fall back to
// domain.DefaultTagSeparator and DefaultPerPage.
func NewEngine(source func() Collection, tagSeparator string, defaultPerPage int) *Engine {
	if tagSeparator == "" {
		tagSeparator = domain.DefaultTagSeparator
	}
	if defaultPerPage == 0 {
		defaultPerPage = DefaultPerPage
	}
	return &Engine{source: source, tagSeparator: tagSeparator, defaultPerPage: defaultPerPage}
}

// TagSeparator returns the configured tag separator.
func (e *Engine) TagSeparator() string { return e.tagSeparator }

// DefaultPerPage returns the page size used when a search does not set one.
func (e *Engine) DefaultPerPage() int { return e.defaultPerPage }

func (e *Engine) Search(c Criteria) (*Result, error) {
	if c.TagSeparator == "" {
		c.TagSeparator = e.tagSeparator
	}
	if c.Pagination.PerPage == 0 {
		c.Pagination.PerPage = e.defaultPerPage
	}
	return SearchCollection(c, e.source())
}

func (e *Engine) CountPerTag(opts AggregateOptions) []TagCount {
	return CountPerTag(e.source().All(), opts)
}

func (e *Engine) ListTags(opts AggregateOptions) []TagCount {
	return ListTags(e.source().All(), opts)
}

func (e *Engine) FindByShortID(shortID string, authenticated bool) (*domain.Bookmark, error) {
	return FindByShortID(e.source().All(), shortID, authenticated)
}

func (e *Engine) FilterDay(day string, v domain.Visibility, authenticated bool) ([]*domain.Bookmark, error) {
	return FilterDay(e.source().All(), day, v, authenticated)
}

func (e *Engine) Days(v domain.Visibility, authenticated bool) []string {
	return Days(e.source().All(), v, authenticated)
}

// Slice adapts a plain slice to Collection.
type Slice []*domain.Bookmark

func (s Slice) All() []*domain.Bookmark { return s }
