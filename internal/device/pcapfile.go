package device

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"go.uber.org/multierr"

	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/log"
)

type pcapFileOptions struct {
	Path    string `mapstructure:"path"`
	SnapLen uint32 `mapstructure:"snap_len"`
}

// pcapFileSink records frames to a pcap file instead of a network interface.
type pcapFileSink struct {
	file   *os.File
	buf    *bufio.Writer
	writer *pcapgo.Writer
	now    func() time.Time
}

func openPcapFile(opts Options) (Sink, error) {
	po := pcapFileOptions{SnapLen: 65536}
	if err := decodeExtra(opts.Extra, &po); err != nil {
		return nil, err
	}
	if po.Path == "" {
		return nil, fmt.Errorf("%w: pcapfile device needs options.path", core.ErrDeviceOpen)
	}

	f, err := os.Create(po.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceOpen, err)
	}

	buf := bufio.NewWriter(f)
	w := pcapgo.NewWriter(buf)
	if err := w.WriteFileHeader(po.SnapLen, layers.LinkTypeEthernet); err != nil {
		return nil, multierr.Append(fmt.Errorf("%w: pcap header: %v", core.ErrDeviceOpen, err), f.Close())
	}

	log.GetLogger().WithField("path", po.Path).Info("pcap file device opened")
	return &pcapFileSink{file: f, buf: buf, writer: w, now: time.Now}, nil
}

func (s *pcapFileSink) WritePacketData(data []byte) error {
	ci := gopacket.CaptureInfo{
		Timestamp:     s.now(),
		CaptureLength: len(data),
		Length:        len(data),
	}
	return s.writer.WritePacket(ci, data)
}

func (s *pcapFileSink) Close() error {
	if s.file == nil {
		return nil
	}
	err := multierr.Append(s.buf.Flush(), s.file.Close())
	s.file = nil
	return err
}

func (s *pcapFileSink) Type() Type { return TypePcapFile }
