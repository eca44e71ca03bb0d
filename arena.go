package dynarray

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/juju/errors"

	"github.com/limpo1989/dynarray/internal"
)

const __align = unsafe.Sizeof(uintptr(0))

// chunkBlock represents a contiguous memory block managed by the Arena.
type chunkBlock struct {
	ptr uintptr
	len int
	cap int
	ref int64
	mem []byte
}

// arenaOptions holds configuration settings for the Arena allocator
type arenaOptions struct {
	chunkSize uintptr
	poolSize  int
	limit     uintptr
	locker    sync.Locker
	memory    Memory
}

// ArenaOption defines a function type for configuring Arena parameters
type ArenaOption func(*arenaOptions)

// WithChunkSize sets the base allocation size for memory chunks.
// Larger values reduce allocation frequency but may increase waste.
// Minimum size is automatically aligned to system pointer size.
func WithChunkSize(chunkSize uintptr) ArenaOption {
	return func(o *arenaOptions) {
		o.chunkSize = chunkSize
	}
}

// WithPoolSize configures the maximum number of reusable chunks retained in the free list.
func WithPoolSize(poolSize int) ArenaOption {
	return func(o *arenaOptions) {
		o.poolSize = poolSize
	}
}

// WithEnableLock guards the Arena with a spinlock so it can be shared between goroutines.
func WithEnableLock(enableLock bool) ArenaOption {
	return func(o *arenaOptions) {
		if enableLock {
			o.locker = new(internal.SpinLock)
		} else {
			o.locker = nopLocker{}
		}
	}
}

// WithMemory specifies a custom memory source implementing the Memory interface
// (e.g. mmap, cgo, shm). Default: Go heap.
func WithMemory(memory Memory) ArenaOption {
	return func(o *arenaOptions) {
		o.memory = memory
	}
}

// WithMemoryLimit caps the number of bytes the Arena may hold from its Memory.
// Allocations beyond the cap fail with ErrAllocationFailure. Zero means unlimited.
func WithMemoryLimit(limit uintptr) ArenaOption {
	return func(o *arenaOptions) {
		o.limit = limit
	}
}

// Memory is the raw byte source of an Arena. Alloc returns nil when the
// request cannot be satisfied.
type Memory interface {
	Alloc(size uintptr) []byte
	Free(m []byte)
}

// Arena manages memory chunks and carves aligned blocks out of them.
// Freed chunks are kept on a free list and reused by later requests.
type Arena struct {
	locker      sync.Locker
	memory      Memory
	chunkSize   uintptr
	minHoleSize uintptr
	poolSize    int
	live        int
	chunkBlocks map[uintptr]*chunkBlock
	current     *chunkBlock
	freelist    []*chunkBlock
}

// NewArena creates a new Arena instance with customizable options.
func NewArena(ops ...ArenaOption) *Arena {
	var opts = arenaOptions{
		chunkSize: 1024,
		poolSize:  64,
		locker:    nopLocker{},
		memory:    heapMemory{},
	}
	for _, op := range ops {
		op(&opts)
	}
	if opts.limit > 0 {
		opts.memory = &limitedMemory{Memory: opts.memory, limit: opts.limit}
	}

	ar := &Arena{}
	ar.locker = opts.locker
	ar.memory = opts.memory
	ar.chunkSize = fixSize(max(512, opts.chunkSize+__align))
	ar.minHoleSize = fixSize(max(256, ar.chunkSize/5))
	ar.poolSize = opts.poolSize
	ar.chunkBlocks = make(map[uintptr]*chunkBlock, 8)
	// 首个块按需分配，受限内存下可能为nil
	ar.current = ar.malloc(ar.chunkSize)
	return ar
}

// Reset returns every chunk to the underlying Memory and resets the Arena to
// its initial state. Existing pointers become invalid after this operation.
func (ar *Arena) Reset() {
	ar.locker.Lock()
	defer ar.locker.Unlock()

	for _, block := range ar.chunkBlocks {
		ar.memory.Free(block.mem)
	}
	for _, block := range ar.freelist {
		ar.memory.Free(block.mem)
	}
	if ar.current != nil {
		ar.memory.Free(ar.current.mem)
	}

	ar.chunkBlocks = make(map[uintptr]*chunkBlock)
	ar.freelist = nil
	ar.current = nil
	ar.live = 0
}

// Live returns the number of allocations that have not been freed yet.
func (ar *Arena) Live() int {
	ar.locker.Lock()
	defer ar.locker.Unlock()
	return ar.live
}

// Free releases a previously allocated memory block.
// The pointer must belong to this Arena.
func (ar *Arena) Free(ptr unsafe.Pointer) {
	if !ar.isManaged(uintptr(ptr)) {
		panic("ptr must be managed by arena")
	}

	ar.locker.Lock()
	defer ar.locker.Unlock()

	ptr = unsafe.Pointer(uintptr(ptr) - __align) // 后退一个指针大小
	chunkPtr := *(*uintptr)(ptr)                 // 获取存储的源地址
	block := ar.current
	if block == nil || block.ptr != chunkPtr {
		var ok bool
		if block, ok = ar.chunkBlocks[chunkPtr]; !ok {
			panic(fmt.Errorf("pointer not malloc from Arena: %p", ptr))
		}
	}

	ar.live--
	if block.ref--; block.ref <= 0 {
		block.len = 0
		block.ref = 0
		if ar.current != block {
			delete(ar.chunkBlocks, chunkPtr)
			ar.recycle(block)
		}
	}
}

// Malloc allocates an aligned memory block of the given size.
// Panics if size is zero or the Memory cannot supply a chunk.
func (ar *Arena) Malloc(sz uintptr) unsafe.Pointer {
	if sz == 0 {
		panic("malloc size must be positive")
	}
	ptr, err := ar.Alloc(sz)
	if err != nil {
		panic(err)
	}
	return ptr
}

// Alloc is Malloc reporting exhaustion as ErrAllocationFailure instead of panicking.
func (ar *Arena) Alloc(sz uintptr) (unsafe.Pointer, error) {
	if sz == 0 {
		return nil, errors.NotValidf("allocation size 0")
	}

	ar.locker.Lock()
	defer ar.locker.Unlock()

	var availableBytes uintptr
	if ar.current != nil {
		availableBytes = uintptr(ar.current.cap - ar.current.len)
	}
	requiredBytes := fixSize(sz + __align)

	// 请求大小超过块大小的直接分配；当前块剩余空间仍然可观时也单独分配，保留当前块
	if requiredBytes > ar.chunkSize || (availableBytes < requiredBytes && availableBytes >= ar.minHoleSize) {
		block := ar.malloc(requiredBytes)
		if block == nil {
			return nil, errors.Annotatef(ErrAllocationFailure, "arena: %d bytes", requiredBytes)
		}
		block.ref = 1
		ptr := unsafe.Pointer(block.ptr)
		*(*uintptr)(ptr) = block.ptr
		ar.chunkBlocks[block.ptr] = block
		ar.live++
		return unsafe.Add(ptr, __align), nil
	}

	if availableBytes < requiredBytes {
		block := ar.malloc(ar.chunkSize)
		if block == nil {
			return nil, errors.Annotatef(ErrAllocationFailure, "arena: chunk of %d bytes", ar.chunkSize)
		}
		if retired := ar.current; retired != nil {
			if retired.ref > 0 {
				ar.chunkBlocks[retired.ptr] = retired
			} else {
				retired.len = 0
				ar.recycle(retired)
			}
		}
		ar.current = block
	}

	offset := ar.current.len
	ar.current.len += int(requiredBytes)
	ar.current.ref++
	ar.live++

	ptr := unsafe.Add(unsafe.Pointer(ar.current.ptr), offset)
	*(*uintptr)(ptr) = ar.current.ptr
	return unsafe.Add(ptr, __align), nil
}

// recycle keeps an unreferenced block for reuse, or hands it back to Memory
// once the free list is full.
func (ar *Arena) recycle(block *chunkBlock) {
	if len(ar.freelist) < ar.poolSize {
		ar.freelist = append(ar.freelist, block)
		return
	}
	ar.memory.Free(block.mem)
	block.cap = 0
	block.ptr = 0
	block.mem = nil
}

func (ar *Arena) malloc(sz uintptr) *chunkBlock {
	// 优先复用内存
	if len(ar.freelist) > 0 {
		if chunk := ar.selectChunk(sz); nil != chunk {
			return chunk
		}
	}

	m := ar.memory.Alloc(sz)
	if nil == m || 0 == cap(m) {
		return nil
	}
	ptr := unsafe.Pointer(unsafe.SliceData(m))
	return &chunkBlock{ptr: uintptr(ptr), cap: int(sz), ref: 0, mem: m}
}

// selectChunk removes and returns the smallest free block that fits sz.
func (ar *Arena) selectChunk(sz uintptr) *chunkBlock {
	var selected *chunkBlock
	var idx = -1
	for i, block := range ar.freelist {
		if block.cap >= int(sz) && (nil == selected || block.cap < selected.cap) {
			selected = block
			idx = i
		}
	}

	if -1 == idx {
		return nil
	}

	// fast-remove
	var lastIdx = len(ar.freelist) - 1
	ar.freelist[idx], ar.freelist[lastIdx] = ar.freelist[lastIdx], ar.freelist[idx]
	ar.freelist[lastIdx] = nil
	ar.freelist = ar.freelist[:lastIdx]
	return selected
}

func (ar *Arena) isManaged(ptr uintptr) bool {
	ar.locker.Lock()
	defer ar.locker.Unlock()

	if ar.current != nil && ar.current.ptr <= ptr && ptr < ar.current.ptr+uintptr(ar.current.cap) {
		return true
	}

	for _, chunk := range ar.chunkBlocks {
		if chunk.ptr <= ptr && ptr < chunk.ptr+uintptr(chunk.cap) {
			return true
		}
	}
	return false
}

// Sizeof returns the in-memory size of T.
func Sizeof[T any]() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

func fixSize(sz uintptr) uintptr {
	return (sz + __align - 1) &^ (__align - 1)
}

type heapMemory struct{}

func (h heapMemory) Alloc(size uintptr) []byte {
	return make([]byte, size)
}

func (h heapMemory) Free(m []byte) {
}

// limitedMemory refuses allocations once the bytes held reach limit.
type limitedMemory struct {
	Memory
	limit uintptr
	used  uintptr
}

func (m *limitedMemory) Alloc(size uintptr) []byte {
	if m.used+size > m.limit {
		return nil
	}
	b := m.Memory.Alloc(size)
	if b != nil {
		m.used += uintptr(cap(b))
	}
	return b
}

func (m *limitedMemory) Free(b []byte) {
	m.used -= uintptr(cap(b))
	m.Memory.Free(b)
}

type nopLocker struct{}

func (n nopLocker) Lock() {
}

func (n nopLocker) Unlock() {
}
