package settings

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/netip"
	"strings"

	"github.com/google/gopacket/layers"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
)

// Resolve applies the overrides of pc on top of base. This is the only place
// where unset override fields fall back to the base values.
func Resolve(base Config, pc config.PacketConfig) (Config, error) {
	cfg := base.clone()

	if pc.SrcMAC != "" {
		mac, err := parseMAC(pc.SrcMAC)
		if err != nil {
			return Config{}, fmt.Errorf("src_mac: %w", err)
		}
		cfg.SrcMAC = mac
	}
	if pc.DstMAC != "" {
		mac, err := parseMAC(pc.DstMAC)
		if err != nil {
			return Config{}, fmt.Errorf("dst_mac: %w", err)
		}
		cfg.DstMAC = mac
	}
	if pc.SrcIP != "" {
		addr, err := parseIPv4(pc.SrcIP)
		if err != nil {
			return Config{}, fmt.Errorf("src_ip: %w", err)
		}
		cfg.SrcIP = addr
	}
	if pc.DstIP != "" {
		addr, err := parseIPv4(pc.DstIP)
		if err != nil {
			return Config{}, fmt.Errorf("dst_ip: %w", err)
		}
		cfg.DstIP = addr
	}

	override(&cfg.Version, pc.IPVersion)
	override(&cfg.HeaderLength, pc.IPHeaderLength)
	override(&cfg.DSCP, pc.DSCP)
	override(&cfg.ECN, pc.ECN)
	override(&cfg.Identification, pc.Identification)
	override(&cfg.IPFlags, pc.IPFlags)
	override(&cfg.TTL, pc.TTL)
	if pc.Protocol != nil {
		cfg.Protocol = layers.IPProtocol(*pc.Protocol)
	}

	override(&cfg.SrcPort, pc.SrcPort)
	override(&cfg.DstPort, pc.DstPort)
	if pc.TCPFlags != "" {
		flags, err := ParseTCPFlags(pc.TCPFlags)
		if err != nil {
			return Config{}, fmt.Errorf("tcp_flags: %w", err)
		}
		cfg.TCPFlags = flags
	}
	if pc.SeqMode != "" {
		mode, err := ParseSeqMode(pc.SeqMode)
		if err != nil {
			return Config{}, fmt.Errorf("seq_mode: %w", err)
		}
		cfg.SeqMode = mode
	}

	switch {
	case pc.PayloadHex != "":
		payload, err := hex.DecodeString(strings.ReplaceAll(pc.PayloadHex, " ", ""))
		if err != nil {
			return Config{}, fmt.Errorf("payload_hex: %w: %v", core.ErrConfigInvalid, err)
		}
		cfg.Payload = payload
	case pc.Payload != "":
		cfg.Payload = []byte(pc.Payload)
	case pc.PayloadSize != nil:
		if *pc.PayloadSize < 0 {
			return Config{}, fmt.Errorf("payload_size: %w: negative size %d", core.ErrConfigInvalid, *pc.PayloadSize)
		}
		if *pc.PayloadSize > MaxPayloadLen {
			return Config{}, fmt.Errorf("payload_size: %w: %d exceeds %d", core.ErrConfigInvalid, *pc.PayloadSize, MaxPayloadLen)
		}
		cfg.Payload = make([]byte, *pc.PayloadSize)
	}

	override(&cfg.Count, pc.Count)
	override(&cfg.Interval, pc.Interval)
	override(&cfg.Timeout, pc.Timeout)
	if cfg.Interval < 0 {
		return Config{}, fmt.Errorf("interval: %w: negative interval %s", core.ErrConfigInvalid, cfg.Interval)
	}

	return cfg, nil
}

// FromConfig resolves the settings record of a run: the preset named by
// pc.Preset (or the defaults table) with the overrides of pc applied.
func FromConfig(loc *Locator, pc config.PacketConfig) (*Settings, error) {
	base := Defaults()
	if pc.Preset != "" {
		preset, err := loc.Lookup(pc.Preset)
		if err != nil {
			return nil, err
		}
		base = preset.Config()
	}

	cfg, err := Resolve(base, pc)
	if err != nil {
		return nil, err
	}
	return New(cfg)
}

func override[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func parseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("%w: %q is not a 6-byte MAC address", core.ErrConfigInvalid, s)
	}
	return mac, nil
}

func parseIPv4(s string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	addr = addr.Unmap()
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %q is not an IPv4 address", core.ErrConfigInvalid, s)
	}
	return addr, nil
}
