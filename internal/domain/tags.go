package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// DefaultTagSeparator separates tags in their string form.
const DefaultTagSeparator = " "

// HiddenTagPrefix marks tags only visible to authenticated callers.
const HiddenTagPrefix = "."

// IsHiddenTag reports whether tag is a hidden tag.
func IsHiddenTag(tag string) bool {
	return strings.HasPrefix(tag, HiddenTagPrefix)
}

// FoldTag returns the case-insensitive key of a tag. Two spellings of the same
// tag share one key.
func FoldTag(tag string) string {
	// a Caser keeps state between calls and cannot be shared across goroutines
	return cases.Fold().String(tag)
}

// SplitTags splits a raw tag string on sep and on whitespace, dropping empty parts.
func SplitTags(raw, sep string) []string {
	if sep == "" {
		sep = DefaultTagSeparator
	}
	return strings.FieldsFunc(raw, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(sep, r)
	})
}

// ParseTags turns a raw tag string into the canonical tag set: first-seen order,
// duplicates collapsed case-insensitively (first spelling wins), no leading '-'.
func ParseTags(raw, sep string) []string {
	return NormalizeTags(SplitTags(raw, sep))
}

// NormalizeTags canonicalises an already split tag list.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimLeft(strings.TrimSpace(t), "-")
		if t == "" {
			continue
		}
		key := FoldTag(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}
