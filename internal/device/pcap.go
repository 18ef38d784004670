package device

import (
	"fmt"

	"github.com/google/gopacket/pcap"

	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/log"
)

type pcapOptions struct {
	SnapLen     int  `mapstructure:"snap_len"`
	Promiscuous bool `mapstructure:"promiscuous"`
}

// pcapSink writes frames through a libpcap live handle.
type pcapSink struct {
	handle *pcap.Handle
	iface  string
}

func openPcap(opts Options) (Sink, error) {
	if err := requireInterface(opts); err != nil {
		return nil, err
	}
	po := pcapOptions{SnapLen: 65536}
	if err := decodeExtra(opts.Extra, &po); err != nil {
		return nil, err
	}

	// the handle never reads; the timeout only bounds blocking calls
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = pcap.BlockForever
	}

	handle, err := pcap.OpenLive(opts.Interface, int32(po.SnapLen), po.Promiscuous, timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: pcap %s: %v", core.ErrDeviceOpen, opts.Interface, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface": opts.Interface,
		"snap_len":  po.SnapLen,
		"timeout":   timeout,
	}).Info("pcap device opened")

	return &pcapSink{handle: handle, iface: opts.Interface}, nil
}

func (s *pcapSink) WritePacketData(data []byte) error {
	return s.handle.WritePacketData(data)
}

func (s *pcapSink) Close() error {
	if s.handle != nil {
		s.handle.Close()
		s.handle = nil
	}
	return nil
}

func (s *pcapSink) Type() Type { return TypePcap }
