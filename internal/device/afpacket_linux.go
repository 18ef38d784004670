package device

import (
	"fmt"
	"net"
	"os"

	"github.com/google/gopacket/afpacket"

	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/log"
)

type afpacketOptions struct {
	SnapLen    int    `mapstructure:"snap_len"`
	BufferSize int    `mapstructure:"buffer_size"` // receive ring bytes
	Filter     string `mapstructure:"filter"`      // receive filter, drops everything when empty
}

// afpacketSink writes frames through an AF_PACKET socket.
type afpacketSink struct {
	tpacket *afpacket.TPacket
	iface   string
}

func openAFPacket(opts Options) (Sink, error) {
	if err := requireInterface(opts); err != nil {
		return nil, err
	}
	ao := afpacketOptions{SnapLen: 2048, BufferSize: 1024 * 1024}
	if err := decodeExtra(opts.Extra, &ao); err != nil {
		return nil, err
	}

	iface, err := net.InterfaceByName(opts.Interface)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get interface %s: %v", core.ErrDeviceOpen, opts.Interface, err)
	}

	frameSize, blockSize, numBlocks, err := computeFrameSizeAndBlocks(ao.SnapLen, ao.BufferSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDeviceOpen, err)
	}

	tpOpts := []interface{}{
		afpacket.OptInterface(iface.Name),
		afpacket.OptFrameSize(frameSize),
		afpacket.OptBlockSize(blockSize),
		afpacket.OptNumBlocks(numBlocks),
		afpacket.SocketRaw,
		afpacket.TPacketVersion3,
	}
	if opts.Timeout > 0 {
		tpOpts = append(tpOpts, afpacket.OptPollTimeout(opts.Timeout))
	}

	tpacket, err := afpacket.NewTPacket(tpOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create TPacket on %s: %v", core.ErrDeviceOpen, iface.Name, err)
	}

	filter, err := dropAllFilter()
	if ao.Filter != "" {
		filter, err = compileBpf(ao.Filter, ao.SnapLen)
	}
	if err == nil {
		err = tpacket.SetBPF(filter)
	}
	if err != nil {
		tpacket.Close()
		return nil, fmt.Errorf("%w: failed to set BPF filter: %v", core.ErrDeviceOpen, err)
	}

	log.GetLogger().WithFields(map[string]interface{}{
		"interface":  iface.Name,
		"mtu":        iface.MTU,
		"frame_size": frameSize,
		"block_size": blockSize,
		"num_blocks": numBlocks,
	}).Info("afpacket device opened")

	return &afpacketSink{tpacket: tpacket, iface: iface.Name}, nil
}

// computeFrameSizeAndBlocks sizes the receive ring: frames are page aligned,
// 128 frames per block.
func computeFrameSizeAndBlocks(snapLen, bufferSize int) (frameSize int, blockSize int, numBlocks int, err error) {
	if snapLen <= 0 {
		return 0, 0, 0, fmt.Errorf("snap_len must be positive, got %d", snapLen)
	}
	pageSize := os.Getpagesize()
	if snapLen < pageSize {
		frameSize = pageSize / (pageSize / snapLen)
	} else {
		frameSize = (snapLen/pageSize + 1) * pageSize
	}
	blockSize = frameSize * 128
	numBlocks = bufferSize / blockSize

	if numBlocks < 1 {
		return 0, 0, 0, fmt.Errorf("buffer size %d too small for frame size %d", bufferSize, frameSize)
	}
	return frameSize, blockSize, numBlocks, nil
}

func (s *afpacketSink) WritePacketData(data []byte) error {
	return s.tpacket.WritePacketData(data)
}

func (s *afpacketSink) Close() error {
	if s.tpacket != nil {
		s.tpacket.Close()
		s.tpacket = nil
	}
	return nil
}

func (s *afpacketSink) Type() Type { return TypeAFPacket }
