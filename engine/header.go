package engine

import "encoding/binary"

// Wire layout constants for a TX message header plus its payload
// descriptor table. All fields are little-endian.
const (
	hdrSize  = 16              // fixed prefix: size, numPls, offset/padding, barker, sequence
	pldSize  = 4                // one descriptor: length + type
	pldMax   = 12                // PLD_MAX
	hdrBlock = hdrSize + pldMax*pldSize // 64, reserved at open time

	skipFlag = uint32(0x8000_0000)

	alignBytes = 16 // payload and header-record alignment
)

// barkerConst is the framing constant stamped into every message at
// take time. Its exact value is device-specific; callers that need to
// match a particular device's expectation should treat it as part of
// engine configuration rather than hardcode around this one.
const barkerConst = uint32(0x5AFE900D)

// header wraps whatever byte window the caller hands it — never
// copies, all accessors read/write straight through the backing
// slice. Reading the fixed prefix (size/numPls/offset-or-padding/
// barker/sequence) only ever needs the first 16 bytes and is safe on
// any record; indexing into pld(i) requires the caller to have handed
// over a window wide enough to cover that descriptor (guaranteed by
// construction — see ring.go's recordPrefix vs openHeaderWindow).
//
// Bytes 6-7 carry two different meanings depending on which copy of
// the header you're looking at: in the original (un-relocated) record
// it is the "offset" to the moved header; in the moved header itself
// it is the "padding" byte count appended at close time. Both
// accessors below address the same two bytes — never call both
// Offset and Padding as if they were independent fields on the one
// view.
type header []byte

func (h header) rawSize() uint32          { return binary.LittleEndian.Uint32(h[0:4]) }
func (h header) setRawSize(v uint32)      { binary.LittleEndian.PutUint32(h[0:4], v) }
func (h header) Size() uint32             { return h.rawSize() &^ skipFlag }
func (h header) SetSize(v uint32)         { h.setRawSize(v | (h.rawSize() & skipFlag)) }
func (h header) IsSkip() bool             { return h.rawSize()&skipFlag != 0 }
func (h header) SetSkip(size uint32)      { h.setRawSize(size | skipFlag) }

func (h header) NumPls() uint16     { return binary.LittleEndian.Uint16(h[4:6]) }
func (h header) SetNumPls(n uint16) { binary.LittleEndian.PutUint16(h[4:6], n) }

func (h header) Offset() uint16      { return binary.LittleEndian.Uint16(h[6:8]) }
func (h header) SetOffset(off uint16) { binary.LittleEndian.PutUint16(h[6:8], off) }
func (h header) Padding() uint16      { return binary.LittleEndian.Uint16(h[6:8]) }
func (h header) SetPadding(p uint16)  { binary.LittleEndian.PutUint16(h[6:8], p) }

func (h header) Barker() uint32      { return binary.LittleEndian.Uint32(h[8:12]) }
func (h header) SetBarker(v uint32)  { binary.LittleEndian.PutUint32(h[8:12], v) }

func (h header) Sequence() uint32     { return binary.LittleEndian.Uint32(h[12:16]) }
func (h header) SetSequence(v uint32) { binary.LittleEndian.PutUint32(h[12:16], v) }

// pld returns the i'th payload descriptor slot (4 bytes, starting
// right after the fixed 16-byte prefix).
func (h header) pld(i int) []byte {
	off := hdrSize + i*pldSize
	return h[off : off+pldSize]
}

func (h header) setPld(i int, length uint16, kind PayloadType) {
	b := h.pld(i)
	binary.LittleEndian.PutUint16(b[0:2], length)
	binary.LittleEndian.PutUint16(b[2:4], uint16(kind))
}

func (h header) pldAt(i int) (length uint16, kind PayloadType) {
	b := h.pld(i)
	length = binary.LittleEndian.Uint16(b[0:2])
	kind = PayloadType(binary.LittleEndian.Uint16(b[2:4]))
	return
}

// PayloadType identifies the kind of payload carried by one
// descriptor. Only the two reset types are meaningful to the engine;
// every other value is opaque application data.
type PayloadType uint16

const (
	PayloadData      PayloadType = 0
	PayloadResetCold PayloadType = 1
	PayloadResetWarm PayloadType = 2
)

func (t PayloadType) isSingleton() bool {
	return t == PayloadResetCold || t == PayloadResetWarm
}

func alignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}
