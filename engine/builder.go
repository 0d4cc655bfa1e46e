package engine

import "github.com/sirupsen/logrus"

// padFillByte is written into padding regions (both per-payload
// 16-byte alignment padding and whole-message bus-block padding) to
// aid debugging, per spec.md §4.3 step 6. Zero-fill would also be
// correct; the source uses 0xAD and so do we.
const padFillByte = 0xad

// openNewMessage reserves HDR_BLOCK (64) bytes for a new message
// header plus its full descriptor table, recycling the tail with a
// sentinel and retrying once if necessary. Leaves hasOpen false if
// there's truly no space.
func (e *Engine) openNewMessage() {
	offset, result := e.ring.reserve(hdrBlock, 0)
	if result == reserveTailFull {
		e.ring.skipTail()
		offset, result = e.ring.reserve(hdrBlock, 0)
	}
	if result != reserveOK {
		e.log.Debug("openNewMessage: no space for header block")
		e.hasOpen = false
		return
	}

	h := e.ring.openHeaderWindow(offset)
	for i := range h {
		h[i] = 0
	}
	h.SetSize(hdrBlock)
	e.hasOpen = true
	e.openOffset = offset
	e.log.WithField("offset", offset).Trace("openNewMessage: opened")
}

// fits reports whether the open message still has a free descriptor
// slot.
func (e *Engine) fits() bool {
	if !e.hasOpen {
		return false
	}
	h := e.ring.openHeaderWindow(e.openOffset)
	return h.NumPls() < pldMax
}

// closeOpenMessage relocates the open message's header flush against
// its payloads, pads the whole record to busBlockSize, and clears
// hasOpen. Idempotent if the slot somehow already carries SKIP
// (defensive; should not occur in normal operation per spec.md §4.3).
func (e *Engine) closeOpenMessage() {
	if !e.hasOpen {
		return
	}
	original := e.ring.openHeaderWindow(e.openOffset)
	if original.IsSkip() {
		e.hasOpen = false
		return
	}
	log := e.log.WithField("offset", e.openOffset)

	numPls := original.NumPls()
	hdrReal := alignUp(hdrSize+uint32(numPls)*pldSize, alignBytes)
	offset16 := uint16(hdrBlock - hdrReal)
	original.SetOffset(offset16)

	movedOffset := e.openOffset + uint32(offset16)
	copy(e.ring.buf[movedOffset:movedOffset+hdrReal], e.ring.buf[e.openOffset:e.openOffset+hdrReal])
	moved := e.ring.movedHeaderWindow(movedOffset, hdrReal)
	moved.SetSize(moved.Size() - uint32(offset16))

	aligned := alignUp(moved.Size(), e.busBlockSize)
	pad := aligned - moved.Size()
	if pad > 0 {
		padOffset, result := e.ring.reserve(pad, 0)
		invariant(result == reserveOK, "padding reservation failed despite padding_reserve contract")
		for i := uint32(0); i < pad; i++ {
			e.ring.buf[padOffset+i] = padFillByte
		}
	}
	// Bytes 6-7 of moved and original alias when offset16 == 0 (no
	// room to relocate into, hdrReal == hdrBlock): in that case moved
	// IS original, and the Offset value TakeNext still needs to read
	// (0, meaning "don't jump") must survive. Stamping Padding there
	// would overwrite it with the padding count. Skip the stamp in
	// that case; nothing reads Padding() at runtime, so there is
	// nothing to preserve on the other side of the alias.
	if movedOffset != e.openOffset {
		moved.SetPadding(uint16(pad))
		original.SetSize(original.Size() + pad)
	}
	moved.SetSize(moved.Size() + pad)

	log.WithFields(logrus.Fields{
		"num_pls": numPls,
		"offset":  offset16,
		"padding": pad,
		"size":    moved.Size(),
	}).Debug("closeOpenMessage: relocated and padded")

	e.hasOpen = false
}
