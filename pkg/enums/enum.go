// Package enums holds the closed string vocabularies stored in Postgres enum
// columns and exchanged over the API.
package enums

import (
	"fmt"
	"slices"
)

// values is the ordered set of members of one enum type.
type values[T ~string] []T

func (v values[T]) has(x T) bool { return slices.Contains(v, x) }

// parse matches raw exactly; label names the type in the error.
func (v values[T]) parse(label, raw string) (T, error) {
	if x := T(raw); v.has(x) {
		return x, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", label, raw)
}
