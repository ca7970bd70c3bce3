package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// NotePrefix is the pseudo-URL prefix of notes (bookmarks without an external link).
const NotePrefix = "/shaare/"

// Bookmark represents a saved link or note.
type Bookmark struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is unique within the collection and never reused.
	ID int `json:"id" yaml:"id"`

	// ShortID is the permalink hash derived from ID.
	ShortID string `json:"shortid" yaml:"shortid"`

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// URL is empty or NotePrefix+ShortID for notes.
	URL         string `json:"url" yaml:"url"`
	Title       string `json:"title" yaml:"title"`
	Description string `json:"description" yaml:"description"`

	// Tags is the canonical tag set in first-seen order.
	Tags []string `json:"tags" yaml:"tags"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	// Created is set once at creation.
	Created time.Time `json:"created" yaml:"created"`

	// Updated is set on every mutation after creation.
	Updated *time.Time `json:"updated,omitempty" yaml:"updated,omitempty"`

	Private bool `json:"private" yaml:"private"`

	// Sticky pins the bookmark before every other result.
	Sticky bool `json:"sticky" yaml:"sticky"`

	// AdditionalContent carries transient extension data. It is never persisted.
	AdditionalContent map[string]any `json:"-" yaml:"-"`
}

var (
	ErrInvalidID      = errors.New("bookmark id must be positive")
	ErrMissingCreated = errors.New("bookmark has no creation date")
	ErrUpdatedBefore  = errors.New("bookmark updated before it was created")
)

// Validate checks the record invariants.
func (b *Bookmark) Validate() error {
	if b.ID <= 0 {
		return fmt.Errorf("bookmark %d: %w", b.ID, ErrInvalidID)
	}
	if b.Created.IsZero() {
		return fmt.Errorf("bookmark %d: %w", b.ID, ErrMissingCreated)
	}
	if b.Updated != nil && b.Updated.Before(b.Created) {
		return fmt.Errorf("bookmark %d: %w", b.ID, ErrUpdatedBefore)
	}
	return nil
}

// IsNote reports whether the bookmark points to itself rather than an external URL.
func (b *Bookmark) IsNote() bool {
	return b.URL == "" || strings.HasPrefix(b.URL, NotePrefix)
}

// EffectiveTags returns the tags visible to the caller. Hidden tags are dropped
// for anonymous callers.
func (b *Bookmark) EffectiveTags(authenticated bool) []string {
	if authenticated {
		return b.Tags
	}
	var hidden bool
	for _, t := range b.Tags {
		if IsHiddenTag(t) {
			hidden = true
			break
		}
	}
	if !hidden {
		return b.Tags
	}
	visible := make([]string, 0, len(b.Tags))
	for _, t := range b.Tags {
		if !IsHiddenTag(t) {
			visible = append(visible, t)
		}
	}
	return visible
}

// TagsString joins the canonical tags with sep.
func (b *Bookmark) TagsString(sep string) string {
	if sep == "" {
		sep = DefaultTagSeparator
	}
	return strings.Join(b.Tags, sep)
}

// Touch stamps the update date, keeping it at or after the creation date.
func (b *Bookmark) Touch(now time.Time) {
	if now.Before(b.Created) {
		now = b.Created
	}
	b.Updated = &now
}

// Clone returns a shallow copy with its own tag slice and no additional content.
func (b *Bookmark) Clone() *Bookmark {
	c := *b
	c.Tags = append([]string(nil), b.Tags...)
	c.AdditionalContent = nil
	return &c
}
