package device

import "sync/atomic"

// Discard counts frames and drops them.
type Discard struct {
	packets atomic.Uint64
	bytes   atomic.Uint64
}

// NewDiscard returns an empty discard sink.
func NewDiscard() *Discard {
	return &Discard{}
}

func (d *Discard) WritePacketData(data []byte) error {
	d.packets.Add(1)
	d.bytes.Add(uint64(len(data)))
	return nil
}

func (d *Discard) Close() error { return nil }

func (d *Discard) Type() Type { return TypeDiscard }

// Packets returns the number of frames written.
func (d *Discard) Packets() uint64 { return d.packets.Load() }

// Bytes returns the number of bytes written.
func (d *Discard) Bytes() uint64 { return d.bytes.Load() }
