package engine

import "github.com/sirupsen/logrus"

// Submit appends buf to the TX FIFO as a payload of the given kind,
// coalescing it into the currently open message where possible
// (spec.md §4.4). Once Submit returns, buf has been fully copied and
// the caller may reuse it. The bus layer is kicked unconditionally,
// even on failure, since a kick may have freed space for someone
// else.
func (e *Engine) Submit(buf []byte, kind PayloadType) error {
	e.mu.Lock()

	padded := alignUp(uint32(len(buf)), alignBytes)
	singleton := kind.isSingleton()

	e.log.WithFields(logrus.Fields{
		"len": len(buf), "padded": padded, "kind": kind, "in_pos": e.ring.inPos(),
	}).Trace("Submit: requested")

	for {
		if !e.hasOpen {
			e.openNewMessage()
		} else {
			open := e.ring.openHeaderWindow(e.openOffset)
			if !e.fits() || (singleton && open.NumPls() > 0) {
				e.closeOpenMessage()
				e.openNewMessage()
			}
		}

		if e.hasOpen {
			open := e.ring.openHeaderWindow(e.openOffset)
			if open.Size()+padded > e.oversizeGuard {
				e.closeOpenMessage()
				e.openNewMessage()
			}
		}

		if !e.hasOpen {
			e.log.Debug("Submit: no space to open a message, stopping queue")
			e.mu.Unlock()
			e.queueCtl.Stop()
			e.kicker.Kick()
			return ErrNoSpace
		}

		offset, result := e.ring.reserve(padded, e.busBlockSize)
		if result == reserveTailFull {
			e.closeOpenMessage()
			e.ring.skipTail()
			continue
		}
		if result == reserveNoSpace {
			e.log.Debug("Submit: no space for payload, stopping queue")
			e.mu.Unlock()
			e.queueCtl.Stop()
			e.kicker.Kick()
			return ErrNoSpace
		}

		copy(e.ring.buf[offset:offset+uint32(len(buf))], buf)
		for i := uint32(len(buf)); i < padded; i++ {
			e.ring.buf[offset+i] = padFillByte
		}

		open := e.ring.openHeaderWindow(e.openOffset)
		numPls := open.NumPls()
		open.setPld(int(numPls), uint16(len(buf)), kind)
		open.SetNumPls(numPls + 1)
		open.SetSize(open.Size() + padded)

		e.log.WithFields(logrus.Fields{
			"offset": offset, "num_pls": numPls + 1, "singleton": singleton,
		}).Trace("Submit: payload appended")

		if singleton {
			e.closeOpenMessage()
		}
		break
	}

	e.mu.Unlock()
	e.kicker.Kick()
	return nil
}
