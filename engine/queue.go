package engine

// QueueControl lets the engine halt and resume an upper-layer packet
// queue, mirroring the original driver's netif_stop_queue/
// netif_start_queue calls (spec.md §5, "Backpressure"). Submit calls
// Stop when it returns ErrNoSpace; MarkSent calls Start unconditionally
// once it has freed space, even if the corresponding bus transfer
// failed.
type QueueControl interface {
	Stop()
	Start()
}

// noopQueueControl is installed by default so callers that don't care
// about backpressure signaling don't have to provide a stub.
type noopQueueControl struct{}

func (noopQueueControl) Stop()  {}
func (noopQueueControl) Start() {}
