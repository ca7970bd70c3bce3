package search

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// HighlightKey is the AdditionalContent key holding the Highlights of a result.
const HighlightKey = "search_highlight"

const (
	// PerPageAll disables pagination.
	PerPageAll = -1

	// DefaultPerPage is used when Pagination.PerPage is zero.
	DefaultPerPage = 20
)

// Pagination selects one page of the sorted result set. Page is 1-based.
type Pagination struct {
	Page    int
	PerPage int
}

// Criteria is the complete, explicit input of a search.
type Criteria struct {
	SearchTags    string
	SearchTerms   string
	Visibility    domain.Visibility
	UntaggedOnly  bool
	CaseSensitive bool

	// Authenticated unlocks private bookmarks and hidden tags.
	Authenticated bool

	// TagSeparator defaults to domain.DefaultTagSeparator.
	TagSeparator string

	Pagination Pagination
}

// Result is one page of a search.
type Result struct {
	Bookmarks  []*domain.Bookmark
	TotalCount int
	Page       int
	PerPage    int
	LastPage   int
}

// Collection is a read-only, fully loaded set of bookmarks in insertion order.
type Collection interface {
	All() []*domain.Bookmark
}

// TagIndexed is a Collection with tag posting lists. WithTags returns the
// positions within All() of bookmarks carrying every given tag (case-insensitive),
// or nil when the index cannot answer.
type TagIndexed interface {
	Collection
	WithTags(tags []string) *bitset.BitSet
}

// normalize applies the defaults and the anonymous-caller restrictions.
func (c Criteria) normalize() Criteria {
	if c.TagSeparator == "" {
		c.TagSeparator = domain.DefaultTagSeparator
	}
	if !c.Authenticated {
		c.Visibility = domain.VisibilityPublic
	}
	return c
}

// pipeline builds the Visibility -> Tag -> FullText predicate chain.
func (c Criteria) pipeline() (Pipeline, *TextMatcher) {
	text := NewTextMatcher(Tokenize(c.SearchTerms), c.Authenticated, c.TagSeparator)
	p := Pipeline{
		VisibilityFilter{Visibility: c.Visibility, UntaggedOnly: c.UntaggedOnly, Authenticated: c.Authenticated},
	}
	if tokens := ParseTagTokens(c.SearchTags, c.TagSeparator); len(tokens) > 0 {
		p = append(p, TagFilter{Tokens: tokens, CaseSensitive: c.CaseSensitive, Authenticated: c.Authenticated})
	}
	if text.Active() {
		p = append(p, text)
	}
	return p, text
}

// Search filters, sorts and paginates bookmarks. The input slice and its
// bookmarks are never modified; the result holds copies.
func Search(c Criteria, bookmarks []*domain.Bookmark) (*Result, error) {
	c = c.normalize()
	pipe, text := c.pipeline()

	matched := make([]*domain.Bookmark, 0, len(bookmarks))
	for _, b := range bookmarks {
		if pipe.Match(b) {
			matched = append(matched, b)
		}
	}

	if err := sortResults(matched); err != nil {
		return nil, err
	}

	res := paginate(matched, c.Pagination)
	for i, b := range res.Bookmarks {
		res.Bookmarks[i] = decorate(b, text, c.Authenticated)
	}
	return res, nil
}

// SearchCollection runs Search on a collection, narrowing the scan with the tag
// index when the collection has one. The result is the same either way.
func SearchCollection(c Criteria, coll Collection) (*Result, error) {
	all := coll.All()
	idx, ok := coll.(TagIndexed)
	if !ok {
		return Search(c, all)
	}

	plain := plainTags(ParseTagTokens(c.SearchTags, c.TagSeparator))
	if len(plain) == 0 {
		return Search(c, all)
	}

	set := idx.WithTags(plain)
	if set == nil {
		return Search(c, all)
	}

	candidates := make([]*domain.Bookmark, 0, set.Count())
	for i, ok := set.NextSet(0); ok; i, ok = set.NextSet(i + 1) {
		if int(i) < len(all) {
			candidates = append(candidates, all[i])
		}
	}
	return Search(c, candidates)
}

// plainTags keeps included tokens without wildcards: the ones a posting list can answer.
func plainTags(tokens []TagToken) []string {
	var out []string
	for _, t := range tokens {
		if t.Excluded || t.Wildcard() {
			continue
		}
		out = append(out, t.Text)
	}
	return out
}

// sortResults orders sticky bookmarks first in collection order, then the rest
// by created desc, id desc.
func sortResults(bookmarks []*domain.Bookmark) error {
	for _, b := range bookmarks {
		if b.Created.IsZero() {
			return fmt.Errorf("sort bookmark %d: %w", b.ID, ErrInvariant)
		}
	}

	sort.SliceStable(bookmarks, func(i, j int) bool {
		a, b := bookmarks[i], bookmarks[j]
		if a.Sticky != b.Sticky {
			return a.Sticky
		}
		if a.Sticky {
			return false
		}
		if !a.Created.Equal(b.Created) {
			return a.Created.After(b.Created)
		}
		return a.ID > b.ID
	})
	return nil
}

func paginate(sorted []*domain.Bookmark, p Pagination) *Result {
	total := len(sorted)

	perPage := p.PerPage
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if perPage < 0 {
		out := make([]*domain.Bookmark, total)
		copy(out, sorted)
		return &Result{Bookmarks: out, TotalCount: total, Page: 1, PerPage: PerPageAll, LastPage: 1}
	}

	lastPage := (total + perPage - 1) / perPage
	if lastPage < 1 {
		lastPage = 1
	}
	page := p.Page
	if page < 1 {
		page = 1
	}
	if page > lastPage {
		page = lastPage
	}

	start := (page - 1) * perPage
	end := min(start+perPage, total)
	out := make([]*domain.Bookmark, end-start)
	copy(out, sorted[start:end])

	return &Result{Bookmarks: out, TotalCount: total, Page: page, PerPage: perPage, LastPage: lastPage}
}

// decorate copies b for output: hidden tags stripped for anonymous callers and
// highlights attached when a text filter ran.
func decorate(b *domain.Bookmark, text *TextMatcher, authenticated bool) *domain.Bookmark {
	cp := b.Clone()
	if !authenticated {
		cp.Tags = cp.EffectiveTags(false)
	}
	if text.Active() {
		_, hl := text.Evaluate(b)
		cp.AdditionalContent = map[string]any{HighlightKey: hl}
	}
	return cp
}
