//go:build !linux

package affinity

import (
	"fmt"
	"runtime"
)

// PinCurrentThread is a no-op outside Linux: sched_setaffinity has no
// portable equivalent, so callers on other platforms just get thread
// locking without core pinning.
func PinCurrentThread(cpu int) error {
	if cpu < 0 {
		return fmt.Errorf("affinity: invalid cpu %d", cpu)
	}
	runtime.LockOSThread()
	return nil
}

// ThreadID returns 0 on platforms without a usable TID concept here.
func ThreadID() uint32 {
	return 0
}
