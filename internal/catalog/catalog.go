// Package catalog keeps the planned renames of one run in destination order
// and makes their destination names unique.
package catalog

import (
	"fmt"
	"iter"
	"regexp"
	"strings"

	"github.com/maruel/natural"
)

// SuffixOrder selects how two suffixed names with the same timestamp compare.
type SuffixOrder string

const (
	// SuffixLexical compares suffixes as strings, so -10 sorts before -2.
	SuffixLexical SuffixOrder = "lexical"
	// SuffixNatural compares the numeric part of suffixes.
	SuffixNatural SuffixOrder = "natural"
)

// ParseSuffixOrder validates a configured order. The empty string selects
// SuffixLexical.
func ParseSuffixOrder(s string) (SuffixOrder, error) {
	switch SuffixOrder(strings.ToLower(s)) {
	case "", SuffixLexical:
		return SuffixLexical, nil
	case SuffixNatural:
		return SuffixNatural, nil
	}
	return "", fmt.Errorf("unknown suffix order %q", s)
}

var (
	timestampPrefix = regexp.MustCompile(`^\d{8}_\d{6}`)
	suffixedName    = regexp.MustCompile(`^\d{8}_\d{6}-\d+(\.|$)`)
)

// Less orders destination names. Names are compared lexically except when
// both start with the same YYYYMMDD_HHMMSS prefix: then a name without a
// collision suffix comes first, and two suffixed names compare by order.
func Less(a, b string, order SuffixOrder) bool {
	pa := timestampPrefix.FindString(a)
	if pa == "" || pa != timestampPrefix.FindString(b) {
		return a < b
	}
	sa, sb := suffixedName.MatchString(a), suffixedName.MatchString(b)
	switch {
	case !sa && sb:
		return true
	case sa && !sb:
		return false
	case sa && sb && order == SuffixNatural:
		return natural.Less(a, b)
	}
	return a < b
}

// Catalog is an ordered list of entries. It is not safe for concurrent use.
type Catalog struct {
	order   SuffixOrder
	entries []*Entry
	held    map[string]bool
}

// New returns an empty catalog.
func New(order SuffixOrder) *Catalog {
	if order == "" {
		order = SuffixLexical
	}
	return &Catalog{order: order, held: map[string]bool{}}
}

// Hold marks names that files of the batch carry right now. A held name is
// taken for every entry except the file that carries it, whatever order the
// entries are placed in.
func (c *Catalog) Hold(names ...string) {
	for _, n := range names {
		c.held[n] = true
	}
}

// Add inserts e before the first entry it sorts ahead of. Entries that compare
// equal keep insertion order.
func (c *Catalog) Add(e *Entry) {
	i := 0
	for ; i < len(c.entries); i++ {
		if Less(e.Destination, c.entries[i].Destination, c.order) {
			break
		}
	}
	c.entries = append(c.entries, nil)
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = e
}

// Place resolves e against the entries already in the catalog and inserts it.
// On error e is not inserted.
func (c *Catalog) Place(e *Entry, r Resolver) error {
	if err := r.ResolveEntry(e, c.Taken); err != nil {
		return err
	}
	c.Add(e)
	return nil
}

// Taken reports whether name is held or is the destination of a placed,
// unflagged entry.
func (c *Catalog) Taken(name string) bool {
	if c.held[name] {
		return true
	}
	for _, e := range c.entries {
		if !e.Collision && e.Destination == name {
			return true
		}
	}
	return false
}

// Get yields the entries in order.
func (c *Catalog) Get() iter.Seq[*Entry] {
	return func(yield func(*Entry) bool) {
		for _, e := range c.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Len returns the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }
