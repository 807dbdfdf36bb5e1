// Package dimension evaluates SAM dataset dimension queries as set
// algebra over completed file sets. Queries are tokenized into
// reverse polish notation and evaluated bottom-up, with sub-query
// results memoized so that repeated clauses hit the catalog once.
package dimension

import "sort"

// Set is an unordered collection of file names.
type Set map[string]struct{}

// NewSet builds a set from the given file names.
func NewSet(files ...string) Set {
	s := make(Set, len(files))
	for _, f := range files {
		s[f] = struct{}{}
	}
	return s
}

// Contains reports whether the set holds the given file name.
func (s Set) Contains(file string) bool {
	_, ok := s[file]
	return ok
}

// Union returns a new set holding the members of both sets.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for f := range s {
		out[f] = struct{}{}
	}
	for f := range other {
		out[f] = struct{}{}
	}
	return out
}

// Minus returns a new set holding the members of s not in other.
func (s Set) Minus(other Set) Set {
	out := make(Set)
	for f := range s {
		if _, ok := other[f]; !ok {
			out[f] = struct{}{}
		}
	}
	return out
}

// Truncate returns a new set of at most n members. Members are kept
// in lexicographic order so truncation is deterministic.
func (s Set) Truncate(n int) Set {
	if n < 0 {
		n = 0
	}
	if len(s) <= n {
		return s
	}
	sorted := s.Sorted()
	return NewSet(sorted[:n]...)
}

// Sorted returns the members in lexicographic order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
