package dynarray

import (
	"sync"

	"go.uber.org/zap"

	"github.com/limpo1989/dynarray/internal"
)

// Growth selects how an Array sizes its backing storage on mutation.
type Growth int

const (
	// GrowExact resizes to exactly the required length on every mutation.
	GrowExact Growth = iota
	// GrowDoubling at least doubles capacity when growing and halves it
	// once the array is a quarter full.
	GrowDoubling
)

func (g Growth) String() string {
	switch g {
	case GrowExact:
		return "exact"
	case GrowDoubling:
		return "doubling"
	default:
		return "unknown"
	}
}

// options holds configuration settings for an Array
type options struct {
	arena  *Arena
	growth Growth
	logger *zap.Logger
	locker sync.Locker
}

// Option defines a function type for configuring an Array
type Option func(*options)

// WithArena stores the array's backing blocks in ar instead of the Go heap.
// Only element types without pointers are accepted.
func WithArena(ar *Arena) Option {
	return func(o *options) {
		o.arena = ar
	}
}

// WithGrowth sets the resize policy. Default: GrowExact.
func WithGrowth(growth Growth) Option {
	return func(o *options) {
		o.growth = growth
	}
}

// WithLogger sets the logger receiving resize and allocation events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithLocking guards every operation with a spinlock so the array can be
// shared between goroutines.
func WithLocking(enable bool) Option {
	return func(o *options) {
		if enable {
			o.locker = new(internal.SpinLock)
		} else {
			o.locker = nopLocker{}
		}
	}
}

func newOptions(ops []Option) options {
	opts := options{
		growth: GrowExact,
		logger: zap.NewNop(),
		locker: nopLocker{},
	}
	for _, op := range ops {
		op(&opts)
	}
	return opts
}
