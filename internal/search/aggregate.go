package search

import (
	"sort"
	"strings"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// TagCount is one entry of a tag cloud.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// AggregateOptions selects the bookmarks whose tags are counted.
type AggregateOptions struct {
	// FilterTags restricts the count to bookmarks carrying all of these tags.
	// A leading '-' excludes bookmarks carrying the tag instead. Tags are
	// matched literally: '*' has no special meaning here.
	FilterTags    []string
	Visibility    domain.Visibility
	Authenticated bool
}

// CountPerTag tallies tags over the selected bookmarks. Each tag is reported
// under the first spelling met in collection order. The result is sorted by
// count desc, then case-insensitively, then by raw string.
func CountPerTag(bookmarks []*domain.Bookmark, opts AggregateOptions) []TagCount {
	counts := tally(bookmarks, opts)
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return alphaLess(counts[i].Tag, counts[j].Tag)
	})
	return counts
}

// ListTags is CountPerTag sorted alphabetically instead of by usage.
func ListTags(bookmarks []*domain.Bookmark, opts AggregateOptions) []TagCount {
	counts := tally(bookmarks, opts)
	sort.Slice(counts, func(i, j int) bool {
		return alphaLess(counts[i].Tag, counts[j].Tag)
	})
	return counts
}

func tally(bookmarks []*domain.Bookmark, opts AggregateOptions) []TagCount {
	if !opts.Authenticated {
		opts.Visibility = domain.VisibilityPublic
	}

	var want, without []string
	for _, t := range opts.FilterTags {
		t = strings.TrimSpace(t)
		switch {
		case t == "":
		case len(t) > 1 && t[0] == exclusionMarker:
			without = append(without, domain.FoldTag(t[1:]))
		default:
			want = append(want, domain.FoldTag(t))
		}
	}

	pos := make(map[string]int)
	var counts []TagCount

	for _, b := range bookmarks {
		if !Qualifies(b, opts.Visibility, false, opts.Authenticated) {
			continue
		}
		tags := b.EffectiveTags(opts.Authenticated)
		if !hasAll(tags, want) || hasAny(tags, without) {
			continue
		}
		for _, tag := range tags {
			key := domain.FoldTag(tag)
			if i, ok := pos[key]; ok {
				counts[i].Count++
				continue
			}
			pos[key] = len(counts)
			counts = append(counts, TagCount{Tag: tag, Count: 1})
		}
	}

	if counts == nil {
		counts = []TagCount{}
	}
	return counts
}

// hasAll reports whether tags covers every folded key of want.
func hasAll(tags, want []string) bool {
	for _, w := range want {
		found := false
		for _, t := range tags {
			if domain.FoldTag(t) == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// hasAny reports whether tags covers at least one folded key of keys.
func hasAny(tags, keys []string) bool {
	for _, k := range keys {
		for _, t := range tags {
			if domain.FoldTag(t) == k {
				return true
			}
		}
	}
	return false
}

func alphaLess(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	if la != lb {
		return la < lb
	}
	return a < b
}
