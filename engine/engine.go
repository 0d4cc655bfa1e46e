// Package engine implements the transmit batching core of a
// host-to-device framing driver: a single software FIFO that
// coalesces variable-length payloads into aligned, padded TX messages
// and hands linear byte runs to a bus driver.
package engine

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// BufSize is the fixed ring buffer capacity (spec.md §3).
const BufSize = 32 * 1024

// PldMax is the maximum number of payload descriptors in one TX
// message (spec.md §3).
const PldMax = pldMax

// defaultOversizeGuard caps any single message at half the ring, so
// the bus can always have one message in flight while another is
// being built (spec.md §4.4, step 3).
const defaultOversizeGuard = BufSize / 2

// Engine is the per-device TX batching core. One Engine serves one
// device; multiple devices need independent Engines (spec.md §9).
type Engine struct {
	mu sync.Mutex

	ring *ring

	hasOpen    bool
	openOffset uint32

	msgSizeInFlight uint32
	sequence        uint32

	busBlockSize  uint32
	oversizeGuard uint32
	bufSize       uint32

	stats txStats

	kicker   Kicker
	queueCtl QueueControl
	log      *logrus.Logger
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithOversizeGuard overrides the default BufSize/2 threshold past
// which Submit closes the open message early rather than growing it
// further (spec.md §9, Open Questions).
func WithOversizeGuard(n uint32) Option {
	return func(e *Engine) { e.oversizeGuard = n }
}

// WithKicker installs a custom Kicker. The default is a ChanKicker.
func WithKicker(k Kicker) Option {
	return func(e *Engine) { e.kicker = k }
}

// WithQueueControl installs a QueueControl for backpressure signaling.
// The default is a no-op.
func WithQueueControl(q QueueControl) Option {
	return func(e *Engine) { e.queueCtl = q }
}

// WithLogger installs a custom logrus.Logger for diagnostic trace
// points. The default logger discards output.
func WithLogger(l *logrus.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// withBufSize overrides BufSize; exported only to tests, which need a
// smaller ring to exercise wraparound without allocating 32 KiB runs
// of payload data.
func withBufSize(n uint32) Option {
	return func(e *Engine) { e.bufSize = n }
}

// NewEngine allocates the ring and initializes engine state for a bus
// whose block size is busBlockSize. busBlockSize must be nonzero
// (spec.md §7, InvariantViolation).
func NewEngine(busBlockSize uint32, opts ...Option) (*Engine, error) {
	if busBlockSize == 0 {
		return nil, ErrInvariantViolation
	}

	e := &Engine{
		busBlockSize:  busBlockSize,
		oversizeGuard: defaultOversizeGuard,
		bufSize:       BufSize,
		stats:         newTXStats(),
		kicker:        NewChanKicker(),
		queueCtl:      noopQueueControl{},
		log:           discardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}

	r, err := newRing(e.bufSize, e.log)
	if err != nil {
		return nil, err
	}
	e.ring = r
	return e, nil
}

// Close releases the ring storage. The Engine must not be used again
// afterward.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ring.release()
}

// Stats returns a snapshot of the accumulated TX statistics.
func (e *Engine) Stats() TXStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats.snapshot()
}

// Collector returns a prometheus.Collector bound to this engine's
// statistics, ready to register with a prometheus.Registry.
func (e *Engine) Collector(namespace string) *StatsCollector {
	return NewStatsCollector(namespace, e.Stats)
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
