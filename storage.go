package dynarray

import (
	"reflect"
	"unsafe"

	"github.com/juju/errors"
)

// allocator hands out and takes back backing blocks for an Array.
type allocator[T any] interface {
	alloc(n int) ([]T, error)
	free(block []T)
}

// heapStorage allocates blocks on the Go heap.
type heapStorage[T any] struct{}

func (heapStorage[T]) alloc(n int) ([]T, error) {
	if n < 0 {
		return nil, errors.NotValidf("capacity %d", n)
	}
	return make([]T, n), nil
}

func (heapStorage[T]) free(block []T) {
	// drop references so released elements can be collected
	clear(block)
}

// arenaStorage carves blocks out of an Arena. The GC does not scan arena
// memory, so T must be free of pointers.
type arenaStorage[T any] struct {
	arena *Arena
}

func newArenaStorage[T any](ar *Arena) (*arenaStorage[T], error) {
	if t := reflect.TypeFor[T](); hasPointers(t) {
		return nil, errors.Annotatef(ErrUnsupportedElement, "%s holds pointers and cannot live in an arena", t)
	}
	return &arenaStorage[T]{arena: ar}, nil
}

func (s *arenaStorage[T]) alloc(n int) ([]T, error) {
	if n < 0 {
		return nil, errors.NotValidf("capacity %d", n)
	}
	elemSize := Sizeof[T]()
	if n == 0 || elemSize == 0 {
		return make([]T, n), nil
	}
	ptr, err := s.arena.Alloc(elemSize * uintptr(n))
	if err != nil {
		return nil, errors.Trace(err)
	}
	block := unsafe.Slice((*T)(ptr), n)
	// chunks come back from the free list dirty
	clear(block)
	return block, nil
}

func (s *arenaStorage[T]) free(block []T) {
	if len(block) == 0 || Sizeof[T]() == 0 {
		return
	}
	s.arena.Free(unsafe.Pointer(unsafe.SliceData(block)))
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return false
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
