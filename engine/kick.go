package engine

import "golang.org/x/sys/unix"

// Kicker is the contract the engine calls after releasing its lock to
// give the bus layer a best-effort nudge that there may be new data
// (spec.md §6). Implementations must be idempotent and must never
// call back into the engine while the engine's own lock could still
// be held by the kicking goroutine — callers only ever see Kick after
// the lock has already been released.
type Kicker interface {
	Kick()
}

// ChanKicker is the default Kicker: a non-blocking send on a buffered
// channel of capacity 1. A bus loop selects on Chan() and drains it
// before each take/send cycle.
type ChanKicker struct {
	ch chan struct{}
}

// NewChanKicker returns a ready-to-use ChanKicker.
func NewChanKicker() *ChanKicker {
	return &ChanKicker{ch: make(chan struct{}, 1)}
}

// Kick performs a non-blocking send; a pending, undrained kick already
// in the channel makes this a no-op, which is fine — the bus loop only
// needs to know "there might be work", not how many times it was told.
func (k *ChanKicker) Kick() {
	select {
	case k.ch <- struct{}{}:
	default:
	}
}

// Chan exposes the notification channel for a bus loop to select on.
func (k *ChanKicker) Chan() <-chan struct{} {
	return k.ch
}

// SignalKicker wakes a specific OS thread with SIGUSR2 via tgkill,
// adapted from the teacher's C.thread_signal helper. It's meant for a
// bus-transfer goroutine that has called runtime.LockOSThread and
// registered its TID with SetThreadID, matching the cross-thread wake
// pattern real bus drivers need when the transfer loop parks in a
// blocking syscall instead of selecting on a channel.
type SignalKicker struct {
	tid uint32
}

// NewSignalKicker targets the given OS thread ID (as returned by
// unix.Gettid on the thread that should be signaled).
func NewSignalKicker(tid uint32) *SignalKicker {
	return &SignalKicker{tid: tid}
}

// SetThreadID updates the target thread, e.g. after the bus loop has
// pinned itself with affinity.PinCurrentThread and learned its own
// TID.
func (k *SignalKicker) SetThreadID(tid uint32) {
	k.tid = tid
}

func (k *SignalKicker) Kick() {
	if k.tid == 0 {
		return
	}
	_ = unix.Tgkill(unix.Getpid(), int(k.tid), unix.SIGUSR2)
}

// killFallback sends SIGUSR2 with unix.Kill instead of tgkill; it
// mirrors the teacher's unix.Kill fallback in subscriber.go.
// SignalKicker.Kick does not call it; only tests do.
func killFallback(tid uint32) error {
	return unix.Kill(int(tid), unix.SIGUSR2)
}
