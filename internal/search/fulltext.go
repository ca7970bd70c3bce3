package search

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Searchable fields, in highlight bookkeeping order.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldURL         = "url"
	FieldTags        = "tags"
)

// SearchableFields lists the fields scanned by the full-text matcher.
var SearchableFields = [...]string{FieldTitle, FieldDescription, FieldURL, FieldTags}

// Span is a [Start, End) range in runes (not bytes) within a field.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Highlights maps a field name to its matched spans, ascending by Start.
type Highlights map[string][]Span

// TextMatcher evaluates free-text terms against a bookmark.
type TextMatcher struct {
	Terms         []Term
	Authenticated bool
	TagSeparator  string
}

// NewTextMatcher drops zero-length terms: they never match nor exclude.
func NewTextMatcher(terms []Term, authenticated bool, sep string) *TextMatcher {
	kept := make([]Term, 0, len(terms))
	for _, t := range terms {
		if t.Text != "" {
			kept = append(kept, t)
		}
	}
	if sep == "" {
		sep = domain.DefaultTagSeparator
	}
	return &TextMatcher{Terms: kept, Authenticated: authenticated, TagSeparator: sep}
}

// Active reports whether the matcher filters anything at all.
func (m *TextMatcher) Active() bool {
	return len(m.Terms) > 0
}

// Match implements Predicate.
func (m *TextMatcher) Match(b *domain.Bookmark) bool {
	ok, _ := m.evaluate(b, false)
	return ok
}

// Evaluate returns the match outcome and, on a match, every span of every
// included term in every field.
func (m *TextMatcher) Evaluate(b *domain.Bookmark) (bool, Highlights) {
	return m.evaluate(b, true)
}

// MatchText is the stateless form of TextMatcher.Evaluate for an authenticated
// caller with the default tag separator.
func MatchText(b *domain.Bookmark, terms []Term) (bool, Highlights) {
	return NewTextMatcher(terms, true, "").Evaluate(b)
}

func (m *TextMatcher) evaluate(b *domain.Bookmark, wantSpans bool) (bool, Highlights) {
	if len(m.Terms) == 0 {
		return true, Highlights{}
	}

	fields := m.lowerFields(b)

	// exclusions first: one hit anywhere disqualifies
	for _, t := range m.Terms {
		if !t.Excluded {
			continue
		}
		needle := lowerRunes(t.Text)
		for _, f := range fields {
			if strings.Contains(f, needle) {
				return false, nil
			}
		}
	}

	var hl Highlights
	if wantSpans {
		hl = make(Highlights)
	}

	for _, t := range m.Terms {
		if t.Excluded {
			continue
		}
		needle := lowerRunes(t.Text)
		found := false
		for i, f := range fields {
			if !wantSpans {
				if strings.Contains(f, needle) {
					found = true
					break
				}
				continue
			}
			spans := occurrences(f, needle)
			if len(spans) == 0 {
				continue
			}
			found = true
			name := SearchableFields[i]
			hl[name] = append(hl[name], spans...)
		}
		if !found {
			return false, nil
		}
	}

	for name, spans := range hl {
		sort.SliceStable(spans, func(i, j int) bool {
			if spans[i].Start != spans[j].Start {
				return spans[i].Start < spans[j].Start
			}
			return spans[i].End < spans[j].End
		})
		hl[name] = spans
	}

	return true, hl
}

func (m *TextMatcher) lowerFields(b *domain.Bookmark) [len(SearchableFields)]string {
	return [len(SearchableFields)]string{
		lowerRunes(b.Title),
		lowerRunes(b.Description),
		lowerRunes(b.URL),
		lowerRunes(strings.Join(b.EffectiveTags(m.Authenticated), m.TagSeparator)),
	}
}

// lowerRunes lower-cases rune by rune so rune offsets line up with the original text.
func lowerRunes(s string) string {
	return strings.Map(unicode.ToLower, s)
}

// occurrences lists every (possibly overlapping) occurrence of needle in haystack
// as rune spans.
func occurrences(haystack, needle string) []Span {
	var spans []Span
	width := utf8.RuneCountInString(needle)

	offset := 0     // byte offset in haystack
	runeOffset := 0 // rune offset matching offset
	for offset <= len(haystack) {
		idx := strings.Index(haystack[offset:], needle)
		if idx < 0 {
			break
		}
		runeOffset += utf8.RuneCountInString(haystack[offset : offset+idx])
		spans = append(spans, Span{Start: runeOffset, End: runeOffset + width})

		// step one rune forward to catch overlapping occurrences
		_, size := utf8.DecodeRuneInString(haystack[offset+idx:])
		if size == 0 {
			break
		}
		offset += idx + size
		runeOffset++
	}
	return spans
}
