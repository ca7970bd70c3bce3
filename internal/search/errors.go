package search

import (
	"errors"
	"fmt"

	"github.com/MrSnakeDoc/marks/internal/domain"
)

var (
	// ErrNotFound is returned by identity lookups (short id) that match nothing.
	ErrNotFound = errors.New("bookmark not found")

	// ErrInvariant flags a collection that breaks a record invariant the engine
	// relies on. It is a defect in the caller, not a query problem.
	ErrInvariant = errors.New("bookmark invariant violated")
)

// QueryError reports malformed query input that cannot be defaulted.
type QueryError struct {
	Field  string
	Value  string
	Reason string
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// ParseVisibility wraps domain.ParseVisibility into a QueryError.
func ParseVisibility(s string) (domain.Visibility, error) {
	v, err := domain.ParseVisibility(s)
	if err != nil {
		return v, &QueryError{Field: "visibility", Value: s, Reason: "expected all, public or private"}
	}
	return v, nil
}
