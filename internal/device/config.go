// Package device hosts the data-parallel matching engine: a simulated
// SIMT compute device, the host driver that owns its buffers, and the
// automaton plus compaction kernels. The driver mirrors the classic
// OpenCL shape (engine owns the queue-equivalent, a runner owns the
// buffers of one compiled graph, Run dispatches the kernel sequence and
// blocks on phase boundaries); the device itself is a goroutine workgroup
// scheduler with cooperative barriers standing in for an OpenCL runtime.
package device

import "github.com/crepererum/oclgrep/internal/oclerr"

// Engine flag indices and the per-position failure sentinel.
const (
	flagStackFull = 0 // thread-local stack was too small
	flagIterMax   = 1 // reached too many iterations
	flagsN        = 2

	// ResultFail marks a start offset with no match in the output buffer.
	ResultFail = 0xffffffff
)

// cacheMask aligns the local text cache base, base 128.
const cacheMask = ^uint32(1<<7 - 1)

// Config carries the device-independent tunables of the matching engine.
type Config struct {
	// GroupSize is the workgroup width: the number of work-items that
	// cooperate through one barrier.
	GroupSize int

	// MaxIterCount limits automaton iterations per start offset to prevent
	// timeouts.
	MaxIterCount int

	// MaxStackSize limits the thread-local walk stack.
	MaxStackSize int

	// MultiInputN is the number of start offsets one work-item processes
	// serially (load balancing).
	MultiInputN int

	// SyncCount controls after how many iterations group threads sync.
	SyncCount int

	// OversizeCache scales the local text cache: cache size is
	// GroupSize*OversizeCache characters.
	OversizeCache int

	// UseCache mirrors a window of the text into workgroup-local memory
	// before the walk.
	UseCache bool
}

// DefaultConfig returns the device-independent defaults.
func DefaultConfig() Config {
	return Config{
		GroupSize:     64,
		MaxIterCount:  2048,
		MaxStackSize:  128,
		MultiInputN:   64,
		SyncCount:     128,
		OversizeCache: 4,
		UseCache:      false,
	}
}

// Validate checks the configuration for values no kernel can be built with.
func (c Config) Validate() error {
	if c.GroupSize < 1 {
		return oclerr.NewUser("invalid engine config: GroupSize must be at least 1")
	}
	if c.MaxIterCount < 1 {
		return oclerr.NewUser("invalid engine config: MaxIterCount must be at least 1")
	}
	if c.MaxStackSize < 1 {
		return oclerr.NewUser("invalid engine config: MaxStackSize must be at least 1")
	}
	if c.MultiInputN < 1 {
		return oclerr.NewUser("invalid engine config: MultiInputN must be at least 1")
	}
	if c.SyncCount < 1 {
		return oclerr.NewUser("invalid engine config: SyncCount must be at least 1")
	}
	if c.UseCache && c.OversizeCache < 1 {
		return oclerr.NewUser("invalid engine config: OversizeCache must be at least 1 when the cache is enabled")
	}
	return nil
}
