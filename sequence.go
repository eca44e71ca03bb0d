package dynarray

import "reflect"

// Sequence is an ordered, indexable collection that can be spliced into an Array.
type Sequence[T any] interface {
	Len() int
	At(index int) T
}

// Slice adapts a Go slice to Sequence.
type Slice[T any] []T

func (s Slice[T]) Len() int {
	return len(s)
}

func (s Slice[T]) At(index int) T {
	return s[index]
}

// valueSequence exposes a reflected slice or array whose elements are
// assignable to T, e.g. a []int stored in an Array[any].
type valueSequence[T any] struct {
	v reflect.Value
}

func (s valueSequence[T]) Len() int {
	return s.v.Len()
}

func (s valueSequence[T]) At(index int) T {
	// nil interface elements fail the assertion and stay the zero T
	v, _ := s.v.Index(index).Interface().(T)
	return v
}

// asSequence reports whether v can be unpacked element by element into an Array[T].
func asSequence[T any](v T) (Sequence[T], bool) {
	switch s := any(v).(type) {
	case Sequence[T]:
		return s, true
	case []T:
		return Slice[T](s), true
	}

	rv := reflect.ValueOf(any(v))
	if !rv.IsValid() {
		return nil, false
	}
	if k := rv.Kind(); k != reflect.Slice && k != reflect.Array {
		return nil, false
	}
	if !rv.Type().Elem().AssignableTo(reflect.TypeFor[T]()) {
		return nil, false
	}
	return valueSequence[T]{v: rv}, true
}
