package settings

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
	"sync"
	"time"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
)

// Locator resolves named presets.
type Locator struct {
	mu      sync.RWMutex
	presets map[string]*Settings
}

// NewLocator returns a locator holding the built-in presets.
func NewLocator() *Locator {
	l := &Locator{presets: make(map[string]*Settings)}
	for name, cfg := range builtinPresets() {
		l.presets[name] = MustNew(cfg)
	}
	return l
}

// Register adds or replaces a preset.
func (l *Locator) Register(name string, s *Settings) error {
	name = normalize(name)
	if name == "" {
		return fmt.Errorf("%w: empty preset name", core.ErrConfigInvalid)
	}
	if s == nil {
		return fmt.Errorf("%w: preset %q has no settings", core.ErrConfigInvalid, name)
	}
	l.mu.Lock()
	l.presets[name] = s
	l.mu.Unlock()
	return nil
}

// RegisterConfig registers presets declared in configuration. They are
// resolved in name order; a preset may build on a built-in or on a preset
// registered before it through its own `preset` key.
func (l *Locator) RegisterConfig(presets map[string]config.PacketConfig) error {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		s, err := FromConfig(l, presets[name])
		if err != nil {
			return fmt.Errorf("preset %q: %w", name, err)
		}
		if err := l.Register(name, s); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the preset registered under name.
func (l *Locator) Lookup(name string) (*Settings, error) {
	l.mu.RLock()
	s, ok := l.presets[normalize(name)]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q", core.ErrSettingsNotFound, name)
	}
	return s, nil
}

// Names lists the registered presets in sorted order.
func (l *Locator) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.presets))
	for name := range l.presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

var (
	labSrc = netip.MustParseAddr("192.0.2.10")
	labDst = netip.MustParseAddr("198.51.100.20")
)

func builtinPresets() map[string]Config {
	presets := make(map[string]Config)

	synHTTP := Defaults()
	synHTTP.SrcIP = netip.MustParseAddr("36.13.145.72")
	synHTTP.DstIP = netip.MustParseAddr("160.251.215.3")
	synHTTP.SrcPort = 12000
	synHTTP.DstPort = 80
	synHTTP.TCPFlags = FlagSYN
	synHTTP.Payload = []byte{0}
	synHTTP.Count = 100000000
	synHTTP.Interval = time.Second
	presets["syn-http"] = synHTTP

	synHTTPS := Defaults()
	synHTTPS.SrcIP = labSrc
	synHTTPS.DstIP = labDst
	synHTTPS.SrcPort = 40000
	synHTTPS.DstPort = 443
	synHTTPS.TCPFlags = FlagSYN
	synHTTPS.IPFlags = 0x02 // don't fragment
	synHTTPS.SeqMode = SeqPerFrame
	synHTTPS.Payload = nil
	synHTTPS.Count = 1000
	synHTTPS.Interval = 10 * time.Millisecond
	presets["syn-https"] = synHTTPS

	ackFlood := Defaults()
	ackFlood.SrcIP = labSrc
	ackFlood.DstIP = labDst
	ackFlood.SrcPort = 50000
	ackFlood.DstPort = 80
	ackFlood.TCPFlags = FlagACK
	ackFlood.SeqMode = SeqPerFrame
	ackFlood.Payload = make([]byte, 64)
	ackFlood.Count = 1000000
	ackFlood.Interval = 0
	presets["ack-flood"] = ackFlood

	rstProbe := Defaults()
	rstProbe.SrcIP = labSrc
	rstProbe.DstIP = labDst
	rstProbe.DstPort = 22
	rstProbe.TCPFlags = FlagRST | FlagACK
	rstProbe.Payload = nil
	rstProbe.Count = 10
	rstProbe.Interval = 100 * time.Millisecond
	presets["rst-probe"] = rstProbe

	xmas := Defaults()
	xmas.SrcIP = labSrc
	xmas.DstIP = labDst
	xmas.DstPort = 8080
	xmas.TCPFlags = FlagFIN | FlagPSH | FlagURG
	xmas.Payload = nil
	xmas.Count = 100
	xmas.Interval = 50 * time.Millisecond
	presets["xmas"] = xmas

	return presets
}
