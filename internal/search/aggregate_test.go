package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

func TestCountPerTagHiddenTags(t *testing.T) {
	bookmarks := []*domain.Bookmark{
		{ID: 1, Tags: []string{".hidden"}, Created: day(1)},
	}

	anon := CountPerTag(bookmarks, AggregateOptions{})
	assert.Empty(t, anon)

	auth := CountPerTag(bookmarks, AggregateOptions{Authenticated: true})
	assert.Equal(t, []TagCount{{Tag: ".hidden", Count: 1}}, auth)
}

func TestCountPerTagOrdering(t *testing.T) {
	bookmarks := []*domain.Bookmark{
		{ID: 1, Tags: []string{"Zeta", "beta"}},
		{ID: 2, Tags: []string{"alpha", "zeta"}},
		{ID: 3, Tags: []string{"Beta", "Alpha"}},
		{ID: 4, Tags: []string{"gamma"}},
	}

	got := CountPerTag(bookmarks, AggregateOptions{Authenticated: true})
	assert.Equal(t, []TagCount{
		{Tag: "alpha", Count: 2},
		{Tag: "beta", Count: 2},
		{Tag: "Zeta", Count: 2}, // first spelling in collection order
		{Tag: "gamma", Count: 1},
	}, got)
}

func TestCountPerTagFilter(t *testing.T) {
	bookmarks := fixture()

	got := CountPerTag(bookmarks, AggregateOptions{FilterTags: []string{"Cartoon"}, Authenticated: true})
	require.NotEmpty(t, got)
	assert.Equal(t, TagCount{Tag: "cartoon", Count: 3}, got[0])
	assert.Contains(t, got, TagCount{Tag: "web", Count: 2})
	assert.Contains(t, got, TagCount{Tag: "humor", Count: 1})

	// filter tags are literal
	got = CountPerTag(bookmarks, AggregateOptions{FilterTags: []string{"c*"}, Authenticated: true})
	assert.Empty(t, got)
}

func TestCountPerTagExcludedFilter(t *testing.T) {
	bookmarks := []*domain.Bookmark{
		{ID: 1, Tags: []string{"go", "web"}},
		{ID: 2, Tags: []string{"web", "css"}},
		{ID: 3, Tags: []string{"css"}},
	}

	got := CountPerTag(bookmarks, AggregateOptions{FilterTags: []string{"-CSS"}, Authenticated: true})
	assert.Equal(t, []TagCount{{Tag: "go", Count: 1}, {Tag: "web", Count: 1}}, got)

	got = CountPerTag(bookmarks, AggregateOptions{FilterTags: []string{"web", "-go"}, Authenticated: true})
	assert.Equal(t, []TagCount{{Tag: "css", Count: 1}, {Tag: "web", Count: 1}}, got)

	// a lone '-' is a literal tag, and no bookmark carries it
	got = CountPerTag(bookmarks, AggregateOptions{FilterTags: []string{"-"}, Authenticated: true})
	assert.Empty(t, got)
}

func TestCountPerTagAnonymousIsPublic(t *testing.T) {
	got := CountPerTag(fixture(), AggregateOptions{Visibility: domain.VisibilityPrivate})
	assert.Contains(t, got, TagCount{Tag: "cartoon", Count: 2})
	assert.NotContains(t, got, TagCount{Tag: "humor", Count: 1})
}

func TestListTags(t *testing.T) {
	got := ListTags(fixture(), AggregateOptions{Authenticated: true})

	names := make([]string, 0, len(got))
	for _, tc := range got {
		names = append(names, tc.Tag)
	}
	assert.Equal(t, []string{
		".hidden", ".secret", "cartoon", "css", "free", "gnu", "humor", "meta", "science", "software", "web",
	}, names)
}
