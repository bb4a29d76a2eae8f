package ringproto

// Fence exposes the three ordering primitives the protocol is specified
// against: Release before a publish, Acquire after a peer-index read, and
// Sync after a register write that gates peer action. On real hardware
// these are DMB/DSB/ISB; under the Go memory model, sync/atomic loads and
// stores on the register file already carry the happens-before edge, so
// these are placement markers rather than emitted instructions — call
// sites keep the same shape the barrier placement in the protocol calls
// for, which matters when porting to a target where they do emit code.
type Fence struct{}

// Release must be called after all data-buffer stores for an index
// advance are complete and before the new index is published.
func (Fence) Release() {}

// Acquire must be called after reading the peer's published index and
// before any data-buffer loads governed by that index.
func (Fence) Acquire() {}

// Sync must be called after a register write that gates peer action, so
// the write is globally visible before the local side proceeds.
func (Fence) Sync() {}

// CacheOps models cache maintenance against the shared ring region for
// systems where it is not DMA-coherent with a data cache.
type CacheOps interface {
	// Clean writes back the given segments (as returned alongside a
	// frame write) before the corresponding index is published.
	Clean(segs ...[]byte)
	// Invalidate discards cached lines covering [offset, offset+length)
	// of the ring before a subsequent load, so the load goes to memory.
	Invalidate(offset, length int)
}

// NoCacheOps is a no-op CacheOps for coherent or simulated targets; the
// memory barriers in Fence still run.
type NoCacheOps struct{}

func (NoCacheOps) Clean(segs ...[]byte)        {}
func (NoCacheOps) Invalidate(offset, length int) {}
