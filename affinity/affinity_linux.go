//go:build linux

// Package affinity pins the calling goroutine's OS thread to a
// specific CPU core, for a bus-transfer loop that wants predictable
// cache behavior while draining the TX engine.
package affinity

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/unix"
)

// PinCurrentThread locks the calling goroutine to its current OS
// thread and restricts that thread to the given CPU core. Adapted
// from the pack's fixed 64-entry cpuMasks/SYS_SCHED_SETAFFINITY
// approach (ring24/setaffinity_linux.go); this driver has no
// sub-10ns budget to justify a precomputed mask table, so it builds
// the CPUSet through golang.org/x/sys/unix instead of a raw syscall.
func PinCurrentThread(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpu)
	}
	runtime.LockOSThread()

	var set unix.CPUSet
	set.Zero()
	set.Set(cpu)
	return unix.SchedSetaffinity(0, &set)
}

// ThreadID returns the calling OS thread's TID, for handing to a
// engine.SignalKicker once the bus loop has pinned itself.
func ThreadID() uint32 {
	return uint32(unix.Gettid())
}
