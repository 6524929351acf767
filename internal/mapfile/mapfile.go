// Package mapfile reads rename maps: delimited text files that assign a new
// name prefix to each source name prefix, overriding metadata-derived names.
//
//	# source<TAB>destination
//	IMG_0001<TAB>2014_trip_001
//	IMG_0002<TAB>2014_trip_002
//
// Lines starting with '#' and blank lines are ignored. All lines must use the
// same terminator. A destination may appear only once; when a source repeats
// the last line wins.
package mapfile

import (
	"bytes"
	"fmt"
	"os"
	"strings"
)

// DefaultDelimiter separates source and destination.
const DefaultDelimiter = "\t"

// ValidationError reports a map file that must not be applied.
type ValidationError struct {
	Path   string
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("map file %s line %d: %s", e.Path, e.Line, e.Reason)
	}
	return fmt.Sprintf("map file %s: %s", e.Path, e.Reason)
}

// Pair is one source → destination mapping.
type Pair struct {
	Source      string
	Destination string
}

// Map holds the parsed pairs in file order, with duplicate sources collapsed.
type Map struct {
	pairs []Pair
	index map[string]int
}

// Len reports the number of distinct sources.
func (m *Map) Len() int { return len(m.pairs) }

// Pairs returns the mappings in the order their sources first appeared.
func (m *Map) Pairs() []Pair {
	return append([]Pair(nil), m.pairs...)
}

// Lookup returns the destination prefix for a source prefix.
func (m *Map) Lookup(source string) (string, bool) {
	i, ok := m.index[source]
	if !ok {
		return "", false
	}
	return m.pairs[i].Destination, true
}

// Match finds the mapping for a file named <source>.<anything> and returns
// the new name, <destination>.<extension of name in lower case>. When several sources
// match, the longest wins.
func (m *Map) Match(name string) (string, bool) {
	best := -1
	for i, p := range m.pairs {
		if !matchesPrefix(name, p.Source) {
			continue
		}
		if best < 0 || len(p.Source) > len(m.pairs[best].Source) {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return m.pairs[best].Destination + strings.ToLower(extension(name)), true
}

// ReadFile parses the map at path.
func ReadFile(path, delimiter string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read map file: %w", err)
	}
	return Parse(path, data, delimiter)
}

// Parse parses map file contents. path is only used in errors.
func Parse(path string, data []byte, delimiter string) (*Map, error) {
	if delimiter == "" {
		delimiter = DefaultDelimiter
	}
	if err := checkTerminators(path, data); err != nil {
		return nil, err
	}

	m := &Map{index: map[string]int{}}
	seenDest := map[string]int{}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	for i, line := range strings.Split(text, "\n") {
		lineNo := i + 1
		if strings.HasPrefix(line, "#") || strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Split(line, delimiter)
		if len(fields) != 2 || fields[0] == "" || fields[1] == "" {
			return nil, &ValidationError{Path: path, Line: lineNo, Reason: fmt.Sprintf("expected two fields separated by %q", delimiter)}
		}
		src, dst := fields[0], fields[1]
		if strings.ContainsRune(dst, '/') {
			return nil, &ValidationError{Path: path, Line: lineNo, Reason: fmt.Sprintf("destination %q contains a path separator", dst)}
		}
		if first, dup := seenDest[dst]; dup {
			return nil, &ValidationError{Path: path, Line: lineNo, Reason: fmt.Sprintf("duplicate destination %q (first on line %d)", dst, first)}
		}
		seenDest[dst] = lineNo

		if j, ok := m.index[src]; ok {
			m.pairs[j].Destination = dst
			continue
		}
		m.index[src] = len(m.pairs)
		m.pairs = append(m.pairs, Pair{Source: src, Destination: dst})
	}
	return m, nil
}

// checkTerminators requires every terminated line to end the same way.
func checkTerminators(path string, data []byte) error {
	crlf, lf := 0, 0
	for i, line := range bytes.SplitAfter(data, []byte("\n")) {
		if !bytes.HasSuffix(line, []byte("\n")) {
			continue
		}
		if bytes.HasSuffix(line, []byte("\r\n")) {
			crlf++
		} else {
			lf++
		}
		if crlf > 0 && lf > 0 {
			return &ValidationError{Path: path, Line: i + 1, Reason: "inconsistent line termination"}
		}
	}
	return nil
}

func matchesPrefix(name, prefix string) bool {
	return len(name) > len(prefix)+1 && strings.HasPrefix(name, prefix) && name[len(prefix)] == '.'
}

func extension(name string) string {
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		return name[i:]
	}
	return ""
}
