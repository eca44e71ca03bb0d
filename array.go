/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *      https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package dynarray implements a dynamic array that manages its backing
// storage by hand: every structural change allocates an exactly sized block,
// copies the elements forward and releases the previous block.
package dynarray

import (
	"fmt"
	"iter"
	"strings"
	"sync"

	"github.com/juju/errors"
	"go.uber.org/zap"
)

var _ Sequence[int] = (*Array[int])(nil)

// Array is a growable, indexable sequence of T.
//
// Slots [0, Len()) hold elements; slots [Len(), Cap()) are unspecified and
// never reachable by index. Blocks come from the Go heap or, with WithArena,
// from an Arena.
type Array[T any] struct {
	storage allocator[T]
	growth  Growth
	logger  *zap.Logger
	locker  sync.Locker
	data    []T
	length  int
}

func newArray[T any](ops []Option) (*Array[T], error) {
	opts := newOptions(ops)
	a := &Array[T]{
		storage: heapStorage[T]{},
		growth:  opts.growth,
		logger:  opts.logger,
		locker:  opts.locker,
	}
	if opts.arena != nil {
		s, err := newArenaStorage[T](opts.arena)
		if err != nil {
			return nil, errors.Trace(err)
		}
		a.storage = s
	}
	return a, nil
}

// New creates an empty Array with room for one element.
func New[T any](ops ...Option) (*Array[T], error) {
	a, err := newArray[T](ops)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = a.resize(1); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

// From creates an Array holding a copy of every element of seq, in order,
// with capacity exactly seq.Len().
func From[T any](seq Sequence[T], ops ...Option) (*Array[T], error) {
	a, err := newArray[T](ops)
	if err != nil {
		return nil, errors.Trace(err)
	}
	n := seq.Len()
	if err = a.resize(n); err != nil {
		return nil, errors.Trace(err)
	}
	for i := 0; i < n; i++ {
		a.data[i] = seq.At(i)
	}
	a.length = n
	return a, nil
}

// FromSlice is From over a Go slice.
func FromSlice[T any](values []T, ops ...Option) (*Array[T], error) {
	return From[T](Slice[T](values), ops...)
}

// Of creates an Array from a single initial element. When unpack is set and
// element is a sequence (a Sequence[T], a []T, or any slice whose elements are
// assignable to T) its elements are copied in; otherwise element is stored as
// the sole element.
func Of[T any](element T, unpack bool, ops ...Option) (*Array[T], error) {
	if unpack {
		if seq, ok := asSequence(element); ok {
			return From(seq, ops...)
		}
	}
	a, err := New[T](ops...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if err = a.Append(element); err != nil {
		return nil, errors.Trace(err)
	}
	return a, nil
}

// Len returns the number of elements.
func (a *Array[T]) Len() int {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.length
}

// Cap returns the number of allocated slots.
func (a *Array[T]) Cap() int {
	a.locker.Lock()
	defer a.locker.Unlock()
	return len(a.data)
}

// Get returns the element at index, or ErrIndexOutOfRange unless 0 <= index < Len().
func (a *Array[T]) Get(index int) (T, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if index < 0 || index >= a.length {
		var zero T
		return zero, indexError(index, a.length)
	}
	return a.data[index], nil
}

// At is Get panicking on a bad index.
func (a *Array[T]) At(index int) T {
	v, err := a.Get(index)
	if err != nil {
		panic(err)
	}
	return v
}

// Append adds element after the last element. A sequence element is stored
// as one opaque element; use Extend or AppendValue to splice it.
func (a *Array[T]) Append(element T) error {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.insert(a.length, element)
}

// Extend appends every element of seq in order with a single resize.
func (a *Array[T]) Extend(seq Sequence[T]) error {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.insertSeq(a.length, seq)
}

// AppendValue appends element, splicing it when unpack is set and element is a sequence.
func (a *Array[T]) AppendValue(element T, unpack bool) error {
	if unpack {
		if seq, ok := asSequence(element); ok {
			return a.Extend(seq)
		}
	}
	return a.Append(element)
}

// Insert places element at index, shifting the elements at and after index
// one slot right. index must be within [0, Len()].
func (a *Array[T]) Insert(index int, element T) error {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.insert(index, element)
}

// InsertSeq splices the elements of seq in at index.
func (a *Array[T]) InsertSeq(index int, seq Sequence[T]) error {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.insertSeq(index, seq)
}

// InsertValue inserts element at index, splicing it when unpack is set and
// element is a sequence.
func (a *Array[T]) InsertValue(index int, element T, unpack bool) error {
	if unpack {
		if seq, ok := asSequence(element); ok {
			return a.InsertSeq(index, seq)
		}
	}
	return a.Insert(index, element)
}

// Pop removes and returns the last element.
func (a *Array[T]) Pop() (T, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	if a.length == 0 {
		var zero T
		return zero, errors.Annotate(ErrEmptyContainer, "pop")
	}
	return a.remove(a.length - 1)
}

// PopAt removes and returns the element at index; later elements shift one slot left.
func (a *Array[T]) PopAt(index int) (T, error) {
	a.locker.Lock()
	defer a.locker.Unlock()

	var zero T
	if a.length == 0 {
		return zero, errors.Annotatef(ErrEmptyContainer, "pop index %d", index)
	}
	if index < 0 || index >= a.length {
		return zero, indexError(index, a.length)
	}
	return a.remove(index)
}

// Range calls fn for each element in order until fn returns false.
// fn must not call back into the array when locking is enabled.
func (a *Array[T]) Range(fn func(index int, v T) bool) {
	a.locker.Lock()
	defer a.locker.Unlock()

	for i := 0; i < a.length; i++ {
		if !fn(i, a.data[i]) {
			return
		}
	}
}

// Iter provides an iterator compatible with range loops.
// The loop body must not call back into the array when locking is enabled.
//
// Example:
//
//	for index, v := range arr.Iter() {
//		// do something
//	}
func (a *Array[T]) Iter() iter.Seq2[int, T] {
	return a.Range
}

// Slice returns a copy of the elements.
func (a *Array[T]) Slice() []T {
	a.locker.Lock()
	defer a.locker.Unlock()
	return a.slice()
}

// Release hands the backing storage back to its allocator. The array is left
// empty with capacity 0 and may be reused.
func (a *Array[T]) Release() {
	a.locker.Lock()
	defer a.locker.Unlock()

	if a.data != nil {
		a.storage.free(a.data)
	}
	a.data = nil
	a.length = 0
}

// String renders the elements as "[e0, e1, ...]".
func (a *Array[T]) String() string {
	a.locker.Lock()
	defer a.locker.Unlock()

	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < a.length; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%v", a.data[i])
	}
	sb.WriteByte(']')
	return sb.String()
}

func (a *Array[T]) slice() []T {
	out := make([]T, a.length)
	copy(out, a.data[:a.length])
	return out
}

func (a *Array[T]) insert(index int, element T) error {
	if index < 0 || index > a.length {
		return indexError(index, a.length)
	}
	if err := a.fit(a.length + 1); err != nil {
		return errors.Trace(err)
	}
	copy(a.data[index+1:a.length+1], a.data[index:a.length])
	a.data[index] = element
	a.length++
	return nil
}

func (a *Array[T]) insertSeq(index int, seq Sequence[T]) error {
	if index < 0 || index > a.length {
		return indexError(index, a.length)
	}
	// splicing an array into itself reads from a snapshot
	if self, ok := seq.(*Array[T]); ok && self == a {
		seq = Slice[T](a.slice())
	}
	n := seq.Len()
	if n == 0 {
		return nil
	}
	if err := a.fit(a.length + n); err != nil {
		return errors.Trace(err)
	}
	copy(a.data[index+n:a.length+n], a.data[index:a.length])
	for i := 0; i < n; i++ {
		a.data[index+i] = seq.At(i)
	}
	a.length += n
	return nil
}

func (a *Array[T]) remove(index int) (T, error) {
	removed := a.data[index]
	copy(a.data[index:a.length-1], a.data[index+1:a.length])
	a.length--
	if err := a.fit(a.length); err != nil {
		// undo the shift so a failed pop leaves the array untouched
		a.length++
		copy(a.data[index+1:a.length], a.data[index:a.length-1])
		a.data[index] = removed
		var zero T
		return zero, errors.Trace(err)
	}
	// a kept block still holds the vacated slot; drop it so it can be collected
	if a.length < len(a.data) {
		var zero T
		a.data[a.length] = zero
	}
	return removed, nil
}

// fit sizes storage for required elements according to the growth policy.
func (a *Array[T]) fit(required int) error {
	capacity := required
	if a.growth == GrowDoubling {
		current := len(a.data)
		switch {
		case required > current:
			capacity = max(required, 2*current)
		case required <= current/4:
			capacity = current / 2
		default:
			return nil
		}
	}
	return a.resize(capacity)
}

// resize replaces the backing block with one of exactly capacity slots,
// keeping the first min(Len(), capacity) elements. It never changes Len().
func (a *Array[T]) resize(capacity int) error {
	block, err := a.storage.alloc(capacity)
	if err != nil {
		a.logger.Warn("allocate backing storage",
			zap.Int("capacity", capacity), zap.Error(err))
		return errors.Annotatef(err, "resize %d -> %d", len(a.data), capacity)
	}
	copy(block, a.data[:min(a.length, capacity)])
	previous := a.data
	a.data = block
	if previous != nil {
		a.storage.free(previous)
	}
	a.logger.Debug("resize",
		zap.Int("from", len(previous)), zap.Int("to", capacity), zap.Int("length", a.length))
	return nil
}
