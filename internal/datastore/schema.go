package datastore

import (
	"github.com/MrSnakeDoc/marks/internal/domain"
)

// FormatVersion is the datastore layout written by this version.
const FormatVersion = 1

// File is the root structure of the datastore file.
//
//	version: 1
//	bookmarks:
//	  - id: 1
//	    shortid: Xy3_a0Zq
//	    url: https://go.dev
//	    title: The Go Programming Language
//	    tags: [go, lang]
//	    created: 2024-03-01T09:00:00Z
type File struct {
	Version   int                `yaml:"version"`
	Bookmarks []*domain.Bookmark `yaml:"bookmarks"`
}
