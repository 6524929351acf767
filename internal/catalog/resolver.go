package catalog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxAttempts bounds the number of suffixes tried for one file.
const DefaultMaxAttempts = 10

var collisionSuffix = regexp.MustCompile(`-\d+$`)

// TooManyAttemptsError is returned when no free name was found within the
// attempt bound.
type TooManyAttemptsError struct {
	Name     string
	Attempts int
}

func (e *TooManyAttemptsError) Error() string {
	return fmt.Sprintf("too many rename attempts: %s %d", e.Name, e.Attempts)
}

// Resolver makes destination names unique.
type Resolver struct {
	// Avoid enables numeric suffixing. When false a collision flags the
	// entry instead.
	Avoid       bool
	MaxAttempts int
	// exact disables keeping a source that is already a suffixed form of
	// its candidate.
	exact bool
}

// NewResolver returns a Resolver bounded by DefaultMaxAttempts.
func NewResolver(avoid bool) Resolver {
	return Resolver{Avoid: avoid, MaxAttempts: DefaultMaxAttempts}
}

// Resolve tries candidate against taken until it finds a free name. source is
// the file's current basename; landing on it is not a collision, and a source
// that is candidate with a -N suffix keeps its name when candidate is taken.
// The second result is true when a collision was found and Avoid is off, in
// which case candidate is returned unchanged.
func (r Resolver) Resolve(source, candidate string, taken func(string) bool) (string, bool, error) {
	limit := r.MaxAttempts
	if limit <= 0 {
		limit = DefaultMaxAttempts
	}
	name := candidate
	for counter := 1; taken(name); counter++ {
		if name == source {
			break
		}
		if counter == 1 && !r.exact && suffixedFrom(source, candidate) {
			return source, false, nil
		}
		if !r.Avoid {
			return candidate, true, nil
		}
		if counter > limit {
			return name, false, &TooManyAttemptsError{Name: name, Attempts: counter - 1}
		}
		name = WithSuffix(candidate, counter)
	}
	return name, false, nil
}

// ResolveEntry runs Resolve for e and records the outcome on it. Fixed
// entries are only checked, never suffixed.
func (r Resolver) ResolveEntry(e *Entry, taken func(string) bool) error {
	if e.Fixed {
		r.Avoid = false
		r.exact = true
	}
	name, collision, err := r.Resolve(e.SourceName(), e.Destination, taken)
	if err != nil {
		return err
	}
	e.Destination = name
	e.Collision = collision
	return nil
}

// WithSuffix sets the collision counter of name: an existing trailing -N
// before the extension is replaced, otherwise -N is appended.
func WithSuffix(name string, counter int) string {
	stem, ext := splitExt(name)
	stem = collisionSuffix.ReplaceAllString(stem, "")
	return stem + "-" + strconv.Itoa(counter) + ext
}

// suffixedFrom reports whether name is candidate carrying a collision suffix.
func suffixedFrom(name, candidate string) bool {
	stem, _ := splitExt(name)
	m := collisionSuffix.FindString(stem)
	if m == "" {
		return false
	}
	n, err := strconv.Atoi(m[1:])
	return err == nil && n > 0 && WithSuffix(candidate, n) == name
}

// splitExt splits at the last dot of a basename; a leading dot does not count.
func splitExt(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	return name[:i], name[i:]
}
