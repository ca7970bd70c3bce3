package domain

import (
	"fmt"
	"strings"
)

// Visibility restricts results by the bookmark privacy flag.
type Visibility int

const (
	VisibilityAll Visibility = iota
	VisibilityPublic
	VisibilityPrivate
)

func (v Visibility) String() string {
	switch v {
	case VisibilityPublic:
		return "public"
	case VisibilityPrivate:
		return "private"
	default:
		return "all"
	}
}

// ParseVisibility maps a request value to a Visibility. Empty means all.
func ParseVisibility(s string) (Visibility, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return VisibilityAll, nil
	case "public":
		return VisibilityPublic, nil
	case "private":
		return VisibilityPrivate, nil
	default:
		return VisibilityAll, fmt.Errorf("unknown visibility %q", s)
	}
}
