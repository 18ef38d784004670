// Package settings holds the immutable per-run packet settings record and the
// ways to resolve it: the defaults table with explicit overrides, or a named
// preset.
package settings

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/google/gopacket/layers"

	"firestige.xyz/otus-inject/internal/core"
)

// MaxPayloadLen is the largest payload whose IPv4 total length (20 byte IPv4
// header, 20 byte TCP header, payload) still fits the 16-bit field.
const MaxPayloadLen = 0xffff - 40

// SeqMode selects how TCP sequence numbers are chosen.
type SeqMode string

const (
	SeqZero     SeqMode = "zero"      // every frame carries sequence number 0
	SeqRandom   SeqMode = "random"    // the template carries one random sequence number
	SeqPerFrame SeqMode = "per-frame" // every frame carries its own random sequence number
)

// ParseSeqMode parses a sequence mode name (case insensitive).
func ParseSeqMode(s string) (SeqMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "zero", "fixed", "":
		return SeqZero, nil
	case "random":
		return SeqRandom, nil
	case "per-frame", "per_frame", "perframe":
		return SeqPerFrame, nil
	default:
		return "", fmt.Errorf("%w: unknown sequence mode %q", core.ErrConfigInvalid, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *SeqMode) UnmarshalText(text []byte) error {
	v, err := ParseSeqMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Config lists every field of a settings record. It has no optional fields:
// start from Defaults() or a preset and overwrite what differs.
type Config struct {
	SrcMAC net.HardwareAddr
	DstMAC net.HardwareAddr

	SrcIP          netip.Addr
	DstIP          netip.Addr
	Version        uint8
	HeaderLength   uint8
	DSCP           uint8
	ECN            uint8
	Identification uint16
	IPFlags        uint8
	TTL            uint8
	Protocol       layers.IPProtocol

	SrcPort  uint16
	DstPort  uint16
	TCPFlags uint8
	SeqMode  SeqMode

	Payload []byte

	Count    uint64
	Interval time.Duration
	Timeout  time.Duration
}

// Defaults returns the defaults table.
func Defaults() Config {
	return Config{
		SrcMAC:         net.HardwareAddr{0, 0, 0, 0, 0, 0},
		DstMAC:         net.HardwareAddr{0, 0, 0, 0, 0, 0},
		SrcIP:          netip.IPv4Unspecified(),
		DstIP:          netip.IPv4Unspecified(),
		Version:        4,
		HeaderLength:   5,
		DSCP:           0,
		ECN:            0,
		Identification: 0,
		IPFlags:        0,
		TTL:            64,
		Protocol:       layers.IPProtocolTCP,
		SrcPort:        10000,
		DstPort:        20000,
		TCPFlags:       FlagSYN,
		SeqMode:        SeqZero,
		Payload:        make([]byte, 1000),
		Count:          1,
		Interval:       time.Second,
		Timeout:        10 * time.Second,
	}
}

// clone deep-copies the slices of c.
func (c Config) clone() Config {
	c.SrcMAC = append(net.HardwareAddr(nil), c.SrcMAC...)
	c.DstMAC = append(net.HardwareAddr(nil), c.DstMAC...)
	c.Payload = append([]byte{}, c.Payload...)
	return c
}

// Settings is the immutable settings record of one run. It is safe to share
// between goroutines; accessors return copies of the slice fields.
type Settings struct {
	cfg Config
}

// New validates cfg and freezes a copy of it.
func New(cfg Config) (*Settings, error) {
	if len(cfg.SrcMAC) != 6 {
		return nil, fmt.Errorf("%w: source MAC must be 6 bytes, got %d", core.ErrConfigInvalid, len(cfg.SrcMAC))
	}
	if len(cfg.DstMAC) != 6 {
		return nil, fmt.Errorf("%w: destination MAC must be 6 bytes, got %d", core.ErrConfigInvalid, len(cfg.DstMAC))
	}
	if !cfg.SrcIP.Is4() {
		return nil, fmt.Errorf("%w: source address %v is not IPv4", core.ErrConfigInvalid, cfg.SrcIP)
	}
	if !cfg.DstIP.Is4() {
		return nil, fmt.Errorf("%w: destination address %v is not IPv4", core.ErrConfigInvalid, cfg.DstIP)
	}
	if len(cfg.Payload) > MaxPayloadLen {
		return nil, fmt.Errorf("%w: payload of %d bytes exceeds %d", core.ErrConfigInvalid, len(cfg.Payload), MaxPayloadLen)
	}
	if cfg.SeqMode == "" {
		cfg.SeqMode = SeqZero
	}
	if _, err := ParseSeqMode(string(cfg.SeqMode)); err != nil {
		return nil, err
	}
	return &Settings{cfg: cfg.clone()}, nil
}

// MustNew is like New but panics on error. For presets and tests.
func MustNew(cfg Config) *Settings {
	s, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return s
}

// Config returns a deep copy of the fields, e.g. to derive another record.
func (s *Settings) Config() Config { return s.cfg.clone() }

func (s *Settings) SrcMAC() net.HardwareAddr {
	return append(net.HardwareAddr(nil), s.cfg.SrcMAC...)
}
func (s *Settings) DstMAC() net.HardwareAddr {
	return append(net.HardwareAddr(nil), s.cfg.DstMAC...)
}

func (s *Settings) SrcIP() netip.Addr           { return s.cfg.SrcIP }
func (s *Settings) DstIP() netip.Addr           { return s.cfg.DstIP }
func (s *Settings) Version() uint8              { return s.cfg.Version }
func (s *Settings) HeaderLength() uint8         { return s.cfg.HeaderLength }
func (s *Settings) DSCP() uint8                 { return s.cfg.DSCP }
func (s *Settings) ECN() uint8                  { return s.cfg.ECN }
func (s *Settings) Identification() uint16      { return s.cfg.Identification }
func (s *Settings) IPFlags() uint8              { return s.cfg.IPFlags }
func (s *Settings) TTL() uint8                  { return s.cfg.TTL }
func (s *Settings) Protocol() layers.IPProtocol { return s.cfg.Protocol }
func (s *Settings) SrcPort() uint16             { return s.cfg.SrcPort }
func (s *Settings) DstPort() uint16             { return s.cfg.DstPort }
func (s *Settings) TCPFlags() uint8             { return s.cfg.TCPFlags }
func (s *Settings) SeqMode() SeqMode            { return s.cfg.SeqMode }
func (s *Settings) Count() uint64               { return s.cfg.Count }
func (s *Settings) Interval() time.Duration     { return s.cfg.Interval }
func (s *Settings) Timeout() time.Duration      { return s.cfg.Timeout }
func (s *Settings) PayloadLen() int             { return len(s.cfg.Payload) }
func (s *Settings) Payload() []byte             { return append([]byte{}, s.cfg.Payload...) }

// String summarizes the flow for log lines.
func (s *Settings) String() string {
	return fmt.Sprintf("%s:%d -> %s:%d [%s] payload=%dB count=%d interval=%s",
		s.cfg.SrcIP, s.cfg.SrcPort, s.cfg.DstIP, s.cfg.DstPort,
		FormatTCPFlags(s.cfg.TCPFlags), len(s.cfg.Payload), s.cfg.Count, s.cfg.Interval)
}
