package engine

import (
	"github.com/edsrzf/mmap-go"
	"github.com/sirupsen/logrus"
)

// reserveResult distinguishes "nothing fit anywhere" from "the tail
// didn't fit but the head might" so the caller can recycle the tail
// with a sentinel and retry exactly once.
type reserveResult int

const (
	reserveOK reserveResult = iota
	reserveNoSpace
	reserveTailFull
)

// ring is the contiguous-reservation FIFO described in spec.md §4.1.
// in and out are monotonically increasing 64-bit cursors; physical
// positions are always in%bufSize / out%bufSize. It holds no lock of
// its own — callers (the engine) serialize access.
type ring struct {
	buf  mmap.MMap
	size uint32
	in   uint64
	out  uint64
	log  *logrus.Logger
}

func newRing(size uint32, log *logrus.Logger) (*ring, error) {
	m, err := mmap.MapRegion(nil, int(size), mmap.RDWR, mmap.ANON, 0)
	if err != nil {
		return nil, ErrOutOfMemory
	}
	return &ring{buf: m, size: size, log: log}, nil
}

func (r *ring) release() error {
	if r.buf == nil {
		return nil
	}
	err := r.buf.Unmap()
	r.buf = nil
	return err
}

// free reports how many bytes are available across the whole ring,
// ignoring contiguity.
func (r *ring) free() uint32 {
	return r.size - uint32(r.in-r.out)
}

func (r *ring) inPos() uint32  { return uint32(r.in % uint64(r.size)) }
func (r *ring) outPos() uint32 { return uint32(r.out % uint64(r.size)) }

// reserve allocates size contiguous bytes at the current in cursor,
// additionally requiring paddingReserve bytes of contiguous free
// space immediately after the returned run (so a later close can pad
// without ever failing — see spec.md §9 "padding_reserve contract").
// On success it advances in by size (never by paddingReserve) and
// returns the byte offset of the reserved run.
func (r *ring) reserve(size, paddingReserve uint32) (offset uint32, result reserveResult) {
	needed := size + paddingReserve
	if r.free() < needed {
		r.log.WithFields(logrus.Fields{"size": size, "padding_reserve": paddingReserve, "free": r.free()}).
			Trace("reserve: no space")
		return 0, reserveNoSpace
	}

	inPos := r.inPos()
	tailFree := r.size - inPos
	if tailFree >= needed {
		offset = inPos
		r.in += uint64(size)
		r.log.WithFields(logrus.Fields{"offset": offset, "size": size, "padding_reserve": paddingReserve}).
			Trace("reserve: ok")
		return offset, reserveOK
	}

	if r.outPos() < inPos {
		r.log.WithFields(logrus.Fields{"in_pos": inPos, "tail_free": tailFree, "needed": needed}).
			Trace("reserve: tail full, head may fit")
		return 0, reserveTailFull
	}
	r.log.WithFields(logrus.Fields{"in_pos": inPos, "tail_free": tailFree, "needed": needed}).
		Trace("reserve: no space (wrapped)")
	return 0, reserveNoSpace
}

// skipTail writes a SKIP-tagged sentinel header covering the unusable
// tail remainder and advances in past it. Precondition: the remainder
// is at least hdrSize bytes (guaranteed because every reservation and
// padding run is 16-aligned).
func (r *ring) skipTail() {
	inPos := r.inPos()
	remainder := r.size - inPos
	h := r.recordPrefix(inPos)
	for i := range h {
		h[i] = 0
	}
	h.SetSkip(remainder)
	r.in += uint64(remainder)
	r.log.WithFields(logrus.Fields{"offset": inPos, "remainder": remainder}).Debug("skipTail: sentinel written")
}

// normalizeEmpty resets both cursors to zero; valid only when the
// FIFO is logically empty (in == out).
func (r *ring) normalizeEmpty() {
	r.in = 0
	r.out = 0
}

// normalizeAfterAdvance subtracts whole multiples of size from both
// cursors, preserving in-out and every modular position. Called after
// MarkSent advances out.
func (r *ring) normalizeAfterAdvance() {
	n := r.out / uint64(r.size)
	if n == 0 {
		return
	}
	r.out -= n * uint64(r.size)
	r.in -= n * uint64(r.size)
}

// recordPrefix gives a 16-byte view of the fixed header fields
// starting at offset. Safe on any record start in the ring: every
// record (open message, closed message, or sentinel) is at least
// hdrSize bytes, by construction of reserve/skipTail.
func (r *ring) recordPrefix(offset uint32) header {
	return header(r.buf[offset : offset+hdrSize])
}

// openHeaderWindow gives the full hdrBlock-byte (64) view needed while
// a message is being built and its descriptor table is still growing.
// Only valid for an offset returned by a reservation of at least
// hdrBlock bytes (i.e. openNewMessage's own reservation).
func (r *ring) openHeaderWindow(offset uint32) header {
	return header(r.buf[offset : offset+hdrBlock])
}

// movedHeaderWindow gives a view of exactly n bytes (16, 32, 48, or
// 64) starting at offset, covering the relocated header's fixed
// prefix plus its trimmed descriptor table.
func (r *ring) movedHeaderWindow(offset, n uint32) header {
	return header(r.buf[offset : offset+n])
}
