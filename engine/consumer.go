package engine

import "github.com/sirupsen/logrus"

// TXMessage is a linear, aligned byte run ready for the bus driver —
// the Go analogue of the (ptr, bus_size) pair the original C driver
// hands to its bus-specific backend. Bytes is a direct view into the
// ring; it is valid until the matching MarkSent call and must not be
// retained past it.
type TXMessage struct {
	bytes []byte
}

// Bytes returns the transmittable message: header, relocated
// descriptor table, payloads, and trailing padding, bit-exact per
// spec.md §6.
func (m *TXMessage) Bytes() []byte { return m.bytes }

// TakeNext walks the FIFO from out, skipping sentinel runs, and
// returns the first deliverable message. If the record at out is the
// currently open message, it is closed first — this is the
// serialization point that lets the consumer ship a message the
// producer is still building (spec.md §4.5). Returns (nil, false) on
// an empty FIFO or when the only record left is the still-open,
// still-empty message.
func (e *Engine) TakeNext() (*TXMessage, bool) {
	e.mu.Lock()
	for {
		if e.ring.in == e.ring.out {
			e.ring.normalizeEmpty()
			e.mu.Unlock()
			return nil, false
		}

		outPos := e.ring.outPos()
		h := e.ring.recordPrefix(outPos)

		if h.IsSkip() {
			e.ring.out += uint64(h.Size())
			continue
		}

		isOpen := e.hasOpen && outPos == e.openOffset

		if h.NumPls() == 0 {
			if isOpen {
				e.mu.Unlock()
				return nil, false
			}
			e.ring.out += uint64(h.Size())
			continue
		}

		if isOpen {
			e.closeOpenMessage()
			h = e.ring.recordPrefix(outPos)
		}

		offset := h.Offset()
		movedOffset := outPos + uint32(offset)
		numPls := h.NumPls()
		hdrReal := alignUp(hdrSize+uint32(numPls)*pldSize, alignBytes)
		moved := e.ring.movedHeaderWindow(movedOffset, hdrReal)

		e.msgSizeInFlight = h.Size()
		busSize := moved.Size()

		moved.SetBarker(barkerConst)
		moved.SetSequence(e.sequence)
		e.sequence++

		e.stats.record(numPls, busSize)

		e.log.WithFields(logrus.Fields{
			"sequence": moved.Sequence(), "barker": moved.Barker(),
			"num_pls": numPls, "bus_size": busSize,
		}).Trace("TakeNext: delivering message")

		msg := &TXMessage{bytes: e.ring.buf[movedOffset : movedOffset+busSize]}
		e.mu.Unlock()
		return msg, true
	}
}

// MarkSent advances out past the message most recently returned by
// TakeNext and normalizes the cursors. Must be called exactly once
// per successful TakeNext, even if the bus reported a transfer
// failure — the message is then simply dropped (spec.md §4.5, §7).
func (e *Engine) MarkSent() {
	e.mu.Lock()
	e.ring.out += uint64(e.msgSizeInFlight)
	e.msgSizeInFlight = 0
	e.ring.normalizeAfterAdvance()
	e.mu.Unlock()

	e.queueCtl.Start()
}
