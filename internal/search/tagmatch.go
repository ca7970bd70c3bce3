package search

import (
	"strings"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Wildcard matches zero or more characters inside a tag token.
const Wildcard = "*"

// MatchTag reports whether a single tag satisfies a single query token.
//
//   - no '*' in token: whole-tag equality (case-insensitive unless caseSensitive)
//   - '*' anywhere, any number of times: glob over runes
//   - "*" alone: every tag, the empty tag included
//   - "" never matches
func MatchTag(candidate, token string, caseSensitive bool) bool {
	if token == "" {
		return false
	}
	if token == Wildcard {
		return true
	}
	if !caseSensitive {
		candidate = domain.FoldTag(candidate)
		token = domain.FoldTag(token)
	}
	if !strings.Contains(token, Wildcard) {
		return candidate == token
	}
	return globMatch([]rune(token), []rune(candidate))
}

// globMatch matches s against a pattern where '*' is the only metacharacter.
// Backtracks to the last star only, so it runs in O(len(pattern)*len(s)).
func globMatch(pattern, s []rune) bool {
	p, i := 0, 0
	star, mark := -1, 0

	for i < len(s) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			star = p
			mark = i
			p++
		case p < len(pattern) && pattern[p] == s[i]:
			p++
			i++
		case star >= 0:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}

	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
