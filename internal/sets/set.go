// Package sets provides an unordered set keyed by comparable values.
package sets

import (
	"cmp"
	"iter"
	"maps"
	"slices"
)

// An unordered set with O(1) lookup, insertion, and deletion.
//
// The zero value is an empty, read-only set. Use [New] or make to obtain a
// writable one.
type Set[T comparable] map[T]struct{}

// Returns a new set containing the given elements.
func New[T comparable](elem ...T) Set[T] {
	s := make(Set[T], len(elem))
	s.Add(elem...)
	return s
}

// Adds the arguments to the set.
func (s Set[T]) Add(elem ...T) {
	for _, x := range elem {
		s[x] = struct{}{}
	}
}

// Adds every element of other to the set.
func (s Set[T]) AddSet(other Set[T]) {
	for x := range other {
		s[x] = struct{}{}
	}
}

// Reports whether the set contains x.
func (s Set[T]) Has(x T) bool {
	_, ok := s[x]
	return ok
}

// Removes x from the set if present.
func (s Set[T]) Delete(x T) {
	delete(s, x)
}

// Returns the number of elements in the set.
func (s Set[T]) Len() int {
	return len(s)
}

// Returns an iterator over the elements of the set in unspecified order.
func (s Set[T]) All() iter.Seq[T] {
	return maps.Keys(s)
}

// Returns the elements of the set in ascending order.
func Sorted[T cmp.Ordered](s Set[T]) []T {
	return slices.Sorted(maps.Keys(s))
}
