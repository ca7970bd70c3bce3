package search

import (
	"sort"
	"time"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// DayLayout is the wire format of a calendar day.
const DayLayout = "20060102"

// FindByShortID returns a copy of the bookmark behind a permalink hash.
// Private bookmarks do not exist for anonymous callers.
func FindByShortID(bookmarks []*domain.Bookmark, shortID string, authenticated bool) (*domain.Bookmark, error) {
	if shortID == "" {
		return nil, ErrNotFound
	}
	for _, b := range bookmarks {
		if b.ShortID != shortID {
			continue
		}
		if b.Private && !authenticated {
			return nil, ErrNotFound
		}
		cp := b.Clone()
		if !authenticated {
			cp.Tags = cp.EffectiveTags(false)
		}
		return cp, nil
	}
	return nil, ErrNotFound
}

// FilterDay returns the bookmarks created on day (DayLayout, in each bookmark's
// own location), newest first. Sticky bookmarks get no precedence here.
func FilterDay(bookmarks []*domain.Bookmark, day string, v domain.Visibility, authenticated bool) ([]*domain.Bookmark, error) {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return nil, &QueryError{Field: "day", Value: day, Reason: "expected YYYYMMDD"}
	}
	if !authenticated {
		v = domain.VisibilityPublic
	}

	var out []*domain.Bookmark
	for _, b := range bookmarks {
		if !Qualifies(b, v, false, authenticated) {
			continue
		}
		if b.Created.Format(DayLayout) != day {
			continue
		}
		cp := b.Clone()
		if !authenticated {
			cp.Tags = cp.EffectiveTags(false)
		}
		out = append(out, cp)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.After(out[j].Created)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// Days lists the distinct days holding at least one visible bookmark, ascending.
func Days(bookmarks []*domain.Bookmark, v domain.Visibility, authenticated bool) []string {
	if !authenticated {
		v = domain.VisibilityPublic
	}
	seen := make(map[string]struct{})
	days := []string{}
	for _, b := range bookmarks {
		if b.Created.IsZero() || !Qualifies(b, v, false, authenticated) {
			continue
		}
		d := b.Created.Format(DayLayout)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Strings(days)
	return days
}
