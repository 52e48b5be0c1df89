// Package ptrs is the "&x" you always wanted for literals and temporaries.
package ptrs

import "time"

// Ptr returns a pointer to its argument.
func Ptr[T any](val T) *T {
	return &val
}

// TimePtr is the &time.Now().UTC() you always wanted.
func TimePtr(val time.Time) *time.Time {
	return &val
}
