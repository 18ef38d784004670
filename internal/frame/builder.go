// Package frame serializes Ethernet/IPv4/TCP template frames.
package frame

import (
	"fmt"
	"math/rand"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/settings"
)

// Header sizes and fixed field values. Neither IPv4 nor TCP carry options.
const (
	EthernetHeaderLen = 14
	IPv4HeaderLen     = 20
	TCPHeaderLen      = 20
	HeadersLen        = EthernetHeaderLen + IPv4HeaderLen + TCPHeaderLen

	TCPWindow = 64240

	ipv4IHL       = IPv4HeaderLen / 4
	tcpDataOffset = TCPHeaderLen / 4
)

// Byte offsets inside a frame.
const (
	tcpOffset         = EthernetHeaderLen + IPv4HeaderLen
	seqOffset         = tcpOffset + 4
	tcpChecksumOffset = tcpOffset + 16
)

// Len returns the length of a frame carrying payloadLen bytes of payload.
func Len(payloadLen int) int {
	return HeadersLen + payloadLen
}

// Build serializes the template frame described by s.
//
// The sequence number is 0 in SeqZero mode and drawn from rng otherwise, so
// a seeded rng makes the output reproducible. rng may be nil in SeqZero mode.
// The IPv4 header checksum and the TCP checksum are computed.
func Build(s *settings.Settings, rng *rand.Rand) (*Frame, error) {
	var seq uint32
	if s.SeqMode() != settings.SeqZero {
		if rng == nil {
			return nil, fmt.Errorf("%w: sequence mode %s needs a random source", core.ErrConfigInvalid, s.SeqMode())
		}
		seq = rng.Uint32()
	}

	payload := s.Payload()
	frameLen := Len(len(payload))

	eth := &layers.Ethernet{
		SrcMAC:       s.SrcMAC(),
		DstMAC:       s.DstMAC(),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  s.Version() & 0x0f,
		IHL:      ipv4IHL,
		TOS:      (s.DSCP()&0x3f)<<2 | s.ECN()&0x03,
		Length:   uint16(IPv4HeaderLen + TCPHeaderLen + len(payload)),
		Id:       s.Identification(),
		Flags:    layers.IPv4Flag(s.IPFlags() & 0x07),
		TTL:      s.TTL(),
		Protocol: s.Protocol(),
		SrcIP:    net.IP(s.SrcIP().AsSlice()),
		DstIP:    net.IP(s.DstIP().AsSlice()),
	}
	tcp := &layers.TCP{
		SrcPort:    layers.TCPPort(s.SrcPort()),
		DstPort:    layers.TCPPort(s.DstPort()),
		Seq:        seq,
		DataOffset: tcpDataOffset,
		Window:     TCPWindow,
	}
	setFlags(tcp, s.TCPFlags())
	if err := tcp.SetNetworkLayerForChecksum(ip); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBuffer, err)
	}

	buf := gopacket.NewSerializeBufferExpectedSize(frameLen, 0)
	opts := gopacket.SerializeOptions{ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedBuffer, err)
	}

	// The Ethernet serializer pads frames to the 60-byte minimum; the padding
	// is not part of the frame, the device adds its own.
	data := buf.Bytes()
	if frameLen < HeadersLen || len(data) < frameLen {
		return nil, fmt.Errorf("%w: serialized %d bytes, want %d", core.ErrMalformedBuffer, len(data), frameLen)
	}

	return &Frame{
		data: append(make([]byte, 0, frameLen), data[:frameLen]...),
		seq:  seq,
	}, nil
}

func setFlags(tcp *layers.TCP, flags uint8) {
	tcp.FIN = flags&settings.FlagFIN != 0
	tcp.SYN = flags&settings.FlagSYN != 0
	tcp.RST = flags&settings.FlagRST != 0
	tcp.PSH = flags&settings.FlagPSH != 0
	tcp.ACK = flags&settings.FlagACK != 0
	tcp.URG = flags&settings.FlagURG != 0
	tcp.ECE = flags&settings.FlagECE != 0
	tcp.CWR = flags&settings.FlagCWR != 0
}
