// Package set provides a minimal generic set type.
package set

// Set is an unordered collection of comparable values.
type Set[T comparable] map[T]struct{}

// New returns an empty set.
func New[T comparable]() Set[T] {
	return Set[T]{}
}

// FromSlice returns a set containing the values in vals.
func FromSlice[T comparable](vals []T) Set[T] {
	s := make(Set[T], len(vals))
	for _, v := range vals {
		s[v] = struct{}{}
	}
	return s
}

// Contains reports whether v is in the set.
func (s Set[T]) Contains(v T) bool {
	_, ok := s[v]
	return ok
}

// Insert adds v to the set.
func (s Set[T]) Insert(v T) {
	s[v] = struct{}{}
}

// Remove deletes v from the set.
func (s Set[T]) Remove(v T) {
	delete(s, v)
}

// ToSlice returns the set's values in unspecified order.
func (s Set[T]) ToSlice() []T {
	out := make([]T, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	return out
}
