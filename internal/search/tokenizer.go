package search

import (
	"strings"
	"unicode"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

const (
	exclusionMarker = '-'
	quoteMark       = '"'
)

// Term is one unit of a free-text query.
type Term struct {
	Text     string
	Exact    bool // came from a quoted phrase
	Excluded bool // prefixed with '-'
}

// TagToken is one unit of a tag query.
type TagToken struct {
	Text     string
	Excluded bool
}

// Wildcard reports whether the token contains a '*'.
func (t TagToken) Wildcard() bool {
	return strings.Contains(t.Text, Wildcard)
}

// Tokenize splits a raw search string into terms.
//
// Examples:
//   - `free -gnu`         -> [free] [excluded gnu]
//   - `"free software"`   -> [exact "free software"]
//   - `-"non free" linux` -> [excluded exact "non free"] [linux]
//   - `"unterminated x`   -> ["unterminated] [x]   (quote kept literally)
//   - `- @user`           -> [-] [@user]           (lone '-' and '@' are literal)
func Tokenize(raw string) []Term {
	runes := []rune(raw)
	n := len(runes)
	terms := make([]Term, 0, 4)

	i := 0
	for i < n {
		if unicode.IsSpace(runes[i]) {
			i++
			continue
		}

		term := Term{}
		start := i
		if runes[i] == exclusionMarker && i+1 < n && !unicode.IsSpace(runes[i+1]) {
			term.Excluded = true
			start = i + 1
		}

		if runes[start] == quoteMark {
			if end := indexRune(runes, quoteMark, start+1); end >= 0 {
				term.Text = string(runes[start+1 : end])
				term.Exact = true
				i = end + 1
				if term.Text != "" {
					terms = append(terms, term)
				}
				continue
			}
			// unterminated: fall through and read the quote as a literal character
		}

		end := start
		for end < n && !unicode.IsSpace(runes[end]) {
			end++
		}
		term.Text = string(runes[start:end])
		terms = append(terms, term)
		i = end
	}

	return terms
}

// ParseTagTokens splits a tag query on the tag separator and whitespace.
// A leading '-' excludes the token; '*' is kept for MatchTag. There is no quoting.
func ParseTagTokens(raw, sep string) []TagToken {
	parts := domain.SplitTags(raw, sep)
	tokens := make([]TagToken, 0, len(parts))
	for _, p := range parts {
		if len(p) > 1 && p[0] == exclusionMarker {
			tokens = append(tokens, TagToken{Text: p[1:], Excluded: true})
			continue
		}
		tokens = append(tokens, TagToken{Text: p})
	}
	return tokens
}

func indexRune(runes []rune, r rune, from int) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
