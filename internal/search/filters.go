package search

import (
	"github.com/MrSnakeDoc/marks/internal/domain"
)

// Predicate decides whether a bookmark stays in the result set.
type Predicate interface {
	Match(b *domain.Bookmark) bool
}

// PredicateFunc adapts a function to Predicate.
type PredicateFunc func(b *domain.Bookmark) bool

func (f PredicateFunc) Match(b *domain.Bookmark) bool { return f(b) }

// Pipeline AND-composes predicates, evaluated in order.
type Pipeline []Predicate

func (p Pipeline) Match(b *domain.Bookmark) bool {
	for _, pred := range p {
		if !pred.Match(b) {
			return false
		}
	}
	return true
}

// ─────────────────────────────────────────────────────────────────
// Visibility
// ─────────────────────────────────────────────────────────────────

// VisibilityFilter applies the privacy mode and the untagged-only flag.
type VisibilityFilter struct {
	Visibility    domain.Visibility
	UntaggedOnly  bool
	Authenticated bool
}

func (f VisibilityFilter) Match(b *domain.Bookmark) bool {
	return Qualifies(b, f.Visibility, f.UntaggedOnly, f.Authenticated)
}

// Qualifies reports whether b passes the visibility mode and, when untaggedOnly is
// set, has no tag visible to the caller.
func Qualifies(b *domain.Bookmark, v domain.Visibility, untaggedOnly, authenticated bool) bool {
	switch v {
	case domain.VisibilityPublic:
		if b.Private {
			return false
		}
	case domain.VisibilityPrivate:
		if !b.Private {
			return false
		}
	}
	if untaggedOnly && len(b.EffectiveTags(authenticated)) > 0 {
		return false
	}
	return true
}

// ─────────────────────────────────────────────────────────────────
// Tags
// ─────────────────────────────────────────────────────────────────

// TagFilter evaluates a boolean tag expression.
type TagFilter struct {
	Tokens        []TagToken
	CaseSensitive bool
	Authenticated bool
}

func (f TagFilter) Match(b *domain.Bookmark) bool {
	return MatchTags(b, f.Tokens, f.CaseSensitive, f.Authenticated)
}

// MatchTags reports whether the bookmark's visible tags satisfy every token:
// an included token needs at least one matching tag, an excluded token needs none.
// A lone "*" matches every bookmark, tagged or not.
func MatchTags(b *domain.Bookmark, tokens []TagToken, caseSensitive, authenticated bool) bool {
	if len(tokens) == 0 {
		return true
	}

	tags := b.EffectiveTags(authenticated)
	for _, tok := range tokens {
		if tok.Text == "" {
			continue
		}
		if tok.Text == Wildcard && !tok.Excluded {
			continue
		}

		hit := anyTagMatches(tags, tok.Text, caseSensitive)
		if hit == tok.Excluded {
			return false
		}
	}
	return true
}

func anyTagMatches(tags []string, token string, caseSensitive bool) bool {
	for _, tag := range tags {
		if MatchTag(tag, token, caseSensitive) {
			return true
		}
	}
	return false
}
