package shm

import (
	"sync/atomic"
	"unicode/utf16"
)

// Flag states shared by both buffer kinds.
const (
	flagEmpty     uint32 = 0 // nothing written yet
	flagReady     uint32 = 1 // writer published, contents valid
	flagAbandoned uint32 = 2 // reader gave up, writer must discard
)

// signal is the three-state publication flag embedded in both buffers.
type signal struct {
	flag atomic.Uint32
}

// publish transitions empty -> ready. It returns false when the reader
// already abandoned the buffer, in which case the contents must be treated
// as discarded.
func (s *signal) publish() bool {
	return s.flag.CompareAndSwap(flagEmpty, flagReady)
}

// Abandoned reports whether the reader gave up on this buffer.
func (s *signal) Abandoned() bool {
	return s.flag.Load() == flagAbandoned
}

// SizeBuffer is the fixed-size handshake buffer of the prologue phase. The
// worker stores the UTF-16 code-unit count of the pending payload and
// publishes the flag; the host polls the flag and then reads the length.
type SizeBuffer struct {
	length atomic.Uint32
	signal
}

// NewSizeBuffer allocates a size buffer for one blocking round trip.
func NewSizeBuffer() *SizeBuffer {
	return &SizeBuffer{}
}

// Publish stores the payload length and signals the waiting reader.
// It returns false if the reader abandoned the handshake first.
func (b *SizeBuffer) Publish(length uint32) bool {
	b.length.Store(length)
	return b.publish()
}

// Length returns the published payload length in UTF-16 code units.
// Valid only after Wait returned Signalled.
func (b *SizeBuffer) Length() uint32 {
	return b.length.Load()
}

// PayloadBuffer is the variable-size buffer of the epilogue phase, sized for
// exactly the number of UTF-16 code units announced by the prologue.
type PayloadBuffer struct {
	units []uint16
	signal
}

// NewPayloadBuffer allocates a payload buffer holding length code units.
func NewPayloadBuffer(length uint32) *PayloadBuffer {
	return &PayloadBuffer{units: make([]uint16, length)}
}

// Publish writes the code units and signals the waiting reader. units must
// hold exactly the allocated length. It returns false if the reader abandoned
// the transfer first; the write is discarded in that case.
func (b *PayloadBuffer) Publish(units []uint16) bool {
	copy(b.units, units)
	return b.publish()
}

// Len returns the buffer's capacity in UTF-16 code units.
func (b *PayloadBuffer) Len() int {
	return len(b.units)
}

// String decodes the buffer contents back into a string. Valid only after
// Wait returned Signalled.
func (b *PayloadBuffer) String() string {
	return string(utf16.Decode(b.units))
}

// EncodeUTF16 converts s to UTF-16 code units, encoding characters outside
// the basic multilingual plane as surrogate pairs.
func EncodeUTF16(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// UTF16Length returns the number of UTF-16 code units needed to encode s.
func UTF16Length(s string) uint32 {
	var n uint32
	for _, r := range s {
		if r >= 0x10000 {
			n += 2 // surrogate pair
		} else {
			n++
		}
	}
	return n
}
