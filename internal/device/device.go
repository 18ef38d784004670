// Package device opens the sinks frames are injected into.
package device

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
)

// Type selects a sink implementation.
type Type string

const (
	TypePcap     Type = "pcap"
	TypeAFPacket Type = "afpacket"
	TypePcapFile Type = "pcapfile"
	TypeDiscard  Type = "discard"
)

// ParseType converts s to a Type, ignoring case and surrounding blanks.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pcap", "libpcap":
		return TypePcap, nil
	case "afpacket", "af_packet", "af-packet":
		return TypeAFPacket, nil
	case "pcapfile", "pcap-file", "file":
		return TypePcapFile, nil
	case "discard", "null":
		return TypeDiscard, nil
	default:
		return "", fmt.Errorf("%w: unknown device type %q", core.ErrConfigInvalid, s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for mapstructure / yaml.
func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Sink is an open injection device.
type Sink interface {
	// WritePacketData writes one complete frame.
	WritePacketData(data []byte) error

	// Close releases the device. It is safe to call once.
	Close() error

	// Type returns the sink implementation.
	Type() Type
}

// Options selects and configures a sink.
type Options struct {
	Type      Type
	Interface string
	Timeout   time.Duration  // per-send timeout, see each sink
	Extra     map[string]any // type specific options
}

// FromConfig builds Options from the device section of the configuration file.
// The per-send timeout comes from the packet settings.
func FromConfig(c config.DeviceConfig, timeout time.Duration) (Options, error) {
	t, err := ParseType(c.Type)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Type:      t,
		Interface: c.Interface,
		Timeout:   timeout,
		Extra:     c.Options,
	}, nil
}

// Open opens the sink selected by opts.Type.
func Open(opts Options) (Sink, error) {
	switch opts.Type {
	case TypePcap:
		return openPcap(opts)
	case TypeAFPacket:
		return openAFPacket(opts)
	case TypePcapFile:
		return openPcapFile(opts)
	case TypeDiscard:
		return NewDiscard(), nil
	default:
		return nil, fmt.Errorf("%w: unsupported device type %q", core.ErrDeviceOpen, opts.Type)
	}
}

// SupportedTypes returns the sink types Open accepts.
func SupportedTypes() []Type {
	return []Type{TypePcap, TypeAFPacket, TypePcapFile, TypeDiscard}
}

// decodeExtra decodes type specific options into out, rejecting unknown keys.
func decodeExtra(extra map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(extra); err != nil {
		return fmt.Errorf("%w: device options: %v", core.ErrConfigInvalid, err)
	}
	return nil
}

func requireInterface(opts Options) error {
	if opts.Interface == "" {
		return fmt.Errorf("%w: %s device needs an interface", core.ErrDeviceOpen, opts.Type)
	}
	return nil
}
