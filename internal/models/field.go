package models

// Field is a tri-state value for PATCH-style updates. The zero value means
// "leave unchanged"; Set carries a new value; Clear resets the target to
// its empty state. This replaces the undefined-vs-null ambiguity of loosely
// typed update payloads.
type Field[T any] struct {
	set   bool
	clear bool
	value T
}

// Set returns a Field carrying a new value
func Set[T any](v T) Field[T] {
	return Field[T]{set: true, value: v}
}

// Clear returns a Field that resets the target
func Clear[T any]() Field[T] {
	return Field[T]{clear: true}
}

// Unchanged reports whether the field should be left as-is
func (f Field[T]) Unchanged() bool {
	return !f.set && !f.clear
}

// IsSet reports whether the field carries a new value
func (f Field[T]) IsSet() bool {
	return f.set
}

// IsClear reports whether the field resets the target
func (f Field[T]) IsClear() bool {
	return f.clear
}

// Value returns the carried value; meaningful only when IsSet reports true
func (f Field[T]) Value() T {
	return f.value
}
