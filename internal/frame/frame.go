package frame

import "encoding/binary"

// Frame is a serialized template frame. It is never modified after Build and
// may be shared between goroutines.
type Frame struct {
	data []byte
	seq  uint32
}

// Bytes returns the frame bytes. The caller must not modify them.
func (f *Frame) Bytes() []byte { return f.data }

// Len returns the frame length in bytes.
func (f *Frame) Len() int { return len(f.data) }

// Sequence returns the TCP sequence number carried by the template.
func (f *Frame) Sequence() uint32 { return f.seq }

// Clone returns an independent copy of the frame bytes.
func (f *Frame) Clone() []byte {
	return append(make([]byte, 0, len(f.data)), f.data...)
}

// WithSequence returns a copy of the frame carrying seq as TCP sequence
// number, with the TCP checksum updated incrementally (RFC 1624).
func (f *Frame) WithSequence(seq uint32) []byte {
	out := f.Clone()
	old := binary.BigEndian.Uint32(out[seqOffset:])
	binary.BigEndian.PutUint32(out[seqOffset:], seq)

	sum := binary.BigEndian.Uint16(out[tcpChecksumOffset:])
	sum = updateChecksum(sum, uint16(old>>16), uint16(seq>>16))
	sum = updateChecksum(sum, uint16(old), uint16(seq))
	binary.BigEndian.PutUint16(out[tcpChecksumOffset:], sum)
	return out
}

// updateChecksum replaces the 16-bit word m by m' under checksum hc:
// HC' = ~(~HC + ~m + m').
func updateChecksum(hc, m, mp uint16) uint16 {
	sum := uint32(^hc) + uint32(^m) + uint32(mp)
	sum = (sum & 0xffff) + (sum >> 16)
	sum = (sum & 0xffff) + (sum >> 16)
	return ^uint16(sum)
}
