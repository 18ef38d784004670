package frame

import (
	"bytes"
	"encoding/binary"
	"math/rand"
	"net"
	"net/netip"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/settings"
)

func testConfig() settings.Config {
	cfg := settings.Defaults()
	cfg.SrcMAC = net.HardwareAddr{0x02, 0x11, 0x22, 0x33, 0x44, 0x55}
	cfg.DstMAC = net.HardwareAddr{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}
	cfg.SrcIP = netip.MustParseAddr("36.13.145.72")
	cfg.DstIP = netip.MustParseAddr("160.251.215.3")
	cfg.SrcPort = 12000
	cfg.DstPort = 80
	cfg.TCPFlags = settings.FlagSYN
	cfg.Payload = nil
	return cfg
}

// onesSum folds the one's complement sum of data into 16 bits.
func onesSum(initial uint32, data []byte) uint16 {
	sum := initial
	for i := 0; i+1 < len(data); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(data[i:]))
	}
	if len(data)%2 == 1 {
		sum += uint32(data[len(data)-1]) << 8
	}
	for sum > 0xffff {
		sum = (sum & 0xffff) + (sum >> 16)
	}
	return uint16(sum)
}

func assertChecksumsValid(t *testing.T, data []byte) {
	t.Helper()
	ipHeader := data[EthernetHeaderLen:tcpOffset]
	assert.Equal(t, uint16(0xffff), onesSum(0, ipHeader), "IPv4 header checksum")

	segment := data[tcpOffset:]
	var pseudo uint32
	pseudo += uint32(binary.BigEndian.Uint16(ipHeader[12:]))
	pseudo += uint32(binary.BigEndian.Uint16(ipHeader[14:]))
	pseudo += uint32(binary.BigEndian.Uint16(ipHeader[16:]))
	pseudo += uint32(binary.BigEndian.Uint16(ipHeader[18:]))
	pseudo += uint32(layers.IPProtocolTCP)
	pseudo += uint32(len(segment))
	assert.Equal(t, uint16(0xffff), onesSum(pseudo, segment), "TCP checksum")
}

func TestBuildLength(t *testing.T) {
	for _, size := range []int{0, 1, 6, 100, 1000, 1446} {
		cfg := testConfig()
		cfg.Payload = bytes.Repeat([]byte{0xab}, size)

		f, err := Build(settings.MustNew(cfg), nil)
		require.NoError(t, err)
		assert.Equal(t, 54+size, f.Len(), "payload %d", size)
		assert.Equal(t, Len(size), len(f.Bytes()))
	}
}

func TestBuildFieldPlacement(t *testing.T) {
	cfg := testConfig()
	cfg.DSCP = 46
	cfg.ECN = 1
	cfg.Identification = 0xbeef
	cfg.IPFlags = 0x02
	cfg.TTL = 64
	cfg.TCPFlags = settings.FlagSYN | settings.FlagACK
	cfg.Payload = []byte("payload!")

	f, err := Build(settings.MustNew(cfg), nil)
	require.NoError(t, err)
	data := f.Bytes()

	// Ethernet
	assert.Equal(t, []byte(cfg.DstMAC), data[0:6])
	assert.Equal(t, []byte(cfg.SrcMAC), data[6:12])
	assert.Equal(t, []byte{0x08, 0x00}, data[12:14])

	// IPv4
	assert.Equal(t, byte(4), data[14]>>4)
	assert.Equal(t, byte(5), data[14]&0x0f)
	assert.Equal(t, byte(46<<2|1), data[15])
	assert.Equal(t, uint16(40+len(cfg.Payload)), binary.BigEndian.Uint16(data[16:18]))
	assert.Equal(t, uint16(0xbeef), binary.BigEndian.Uint16(data[18:20]))
	assert.Equal(t, byte(0x02), data[20]>>5)
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[20:22])&0x1fff)
	assert.Equal(t, byte(64), data[22])
	assert.Equal(t, byte(6), data[23])
	assert.Equal(t, []byte{36, 13, 145, 72}, data[26:30])
	assert.Equal(t, []byte{160, 251, 215, 3}, data[30:34])

	// TCP
	assert.Equal(t, uint16(12000), binary.BigEndian.Uint16(data[34:36]))
	assert.Equal(t, uint16(80), binary.BigEndian.Uint16(data[36:38]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(data[38:42]))
	assert.Equal(t, uint32(0), binary.BigEndian.Uint32(data[42:46]))
	assert.Equal(t, byte(5), data[46]>>4)
	assert.Equal(t, settings.FlagSYN|settings.FlagACK, data[47])
	assert.Equal(t, uint16(64240), binary.BigEndian.Uint16(data[48:50]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(data[52:54]))
	assert.Equal(t, cfg.Payload, data[54:])

	assertChecksumsValid(t, data)
}

func TestBuildDecodesWithGopacket(t *testing.T) {
	cfg := testConfig()
	cfg.Payload = []byte{1, 2, 3}
	f, err := Build(settings.MustNew(cfg), nil)
	require.NoError(t, err)

	pkt := gopacket.NewPacket(f.Bytes(), layers.LayerTypeEthernet, gopacket.Default)
	require.Nil(t, pkt.ErrorLayer())

	ip, ok := pkt.Layer(layers.LayerTypeIPv4).(*layers.IPv4)
	require.True(t, ok)
	assert.Equal(t, "36.13.145.72", ip.SrcIP.String())
	assert.Equal(t, "160.251.215.3", ip.DstIP.String())
	assert.Equal(t, layers.IPProtocolTCP, ip.Protocol)

	tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
	require.True(t, ok)
	assert.True(t, tcp.SYN)
	assert.False(t, tcp.ACK)
	assert.Equal(t, layers.TCPPort(80), tcp.DstPort)
	assert.Equal(t, []byte{1, 2, 3}, tcp.Payload)
}

func TestBuildSynScenario(t *testing.T) {
	f, err := Build(settings.MustNew(testConfig()), nil)
	require.NoError(t, err)

	assert.Equal(t, 54, f.Len())
	assert.Equal(t, byte(0x02), f.Bytes()[47])
	assert.Equal(t, byte(5), f.Bytes()[46]>>4)
	assertChecksumsValid(t, f.Bytes())
}

func TestBuildRandomSequence(t *testing.T) {
	cfg := testConfig()
	cfg.SeqMode = settings.SeqRandom
	s := settings.MustNew(cfg)

	expected := rand.New(rand.NewSource(7)).Uint32()
	f, err := Build(s, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, expected, f.Sequence())
	assert.Equal(t, expected, binary.BigEndian.Uint32(f.Bytes()[38:42]))
	assertChecksumsValid(t, f.Bytes())

	// same seed, same frame
	again, err := Build(s, rand.New(rand.NewSource(7)))
	require.NoError(t, err)
	assert.Equal(t, f.Bytes(), again.Bytes())
}

func TestBuildRandomSequenceNeedsSource(t *testing.T) {
	cfg := testConfig()
	cfg.SeqMode = settings.SeqPerFrame
	_, err := Build(settings.MustNew(cfg), nil)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)
}

func TestBuildLargeVersionIsMasked(t *testing.T) {
	cfg := testConfig()
	cfg.Version = 0x1f
	f, err := Build(settings.MustNew(cfg), nil)
	require.NoError(t, err)
	assert.Equal(t, byte(0xf5), f.Bytes()[14])
}

func TestBuildLargestPayload(t *testing.T) {
	cfg := testConfig()
	cfg.Payload = make([]byte, settings.MaxPayloadLen)
	f, err := Build(settings.MustNew(cfg), nil)
	require.NoError(t, err)

	assert.Equal(t, 54+settings.MaxPayloadLen, f.Len())
	assert.Equal(t, uint16(0xffff), binary.BigEndian.Uint16(f.Bytes()[16:18]))
	assertChecksumsValid(t, f.Bytes())
}
