package dynarray

import "github.com/juju/errors"

const (
	// ErrIndexOutOfRange is returned when a read or positional mutation
	// addresses a slot outside the valid bound.
	ErrIndexOutOfRange = errors.ConstError("index out of range")

	// ErrEmptyContainer is returned when popping from an empty array.
	ErrEmptyContainer = errors.ConstError("empty container")

	// ErrAllocationFailure is returned when backing storage cannot be allocated.
	ErrAllocationFailure = errors.ConstError("allocation failure")

	// ErrUnsupportedElement is returned when arena storage is requested for
	// an element type holding pointers.
	ErrUnsupportedElement = errors.ConstError("unsupported element type")
)

func indexError(index, bound int) error {
	return errors.Annotatef(ErrIndexOutOfRange, "index %d, bound %d", index, bound)
}
