package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket/pcapgo"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/device"
	"firestige.xyz/otus-inject/internal/settings"
)

func ptr[T any](v T) *T { return &v }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	c, err := config.Load("")
	require.NoError(t, err)
	c.Device.Type = "discard"
	c.Packet = config.PacketConfig{
		Preset:   "syn-http",
		Count:    ptr(uint64(3)),
		Interval: ptr(time.Duration(0)),
	}
	return c
}

func TestRunSendDiscard(t *testing.T) {
	stats, err := runSend(context.Background(), testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Sent)
	// 54 header bytes plus the 1-byte payload of the preset
	assert.Equal(t, uint64(3*55), stats.Bytes)
}

func TestRunSendPcapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "syn.pcap")
	c := testConfig(t)
	c.Device.Type = "pcapfile"
	c.Device.Options = map[string]any{"path": path}
	c.Packet.PayloadSize = ptr(0)
	c.Packet.Payload = ""
	c.Packet.SeqMode = "per-frame"
	c.Pipeline.Seed = 7

	_, err := runSend(context.Background(), c)
	require.NoError(t, err)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	r, err := pcapgo.NewReader(f)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		data, _, err := r.ReadPacketData()
		require.NoError(t, err)
		assert.Len(t, data, 54)
		assert.Equal(t, settings.FlagSYN, data[47])
	}
}

func TestRunSendErrors(t *testing.T) {
	c := testConfig(t)
	c.Packet.Preset = "no-such-preset"
	_, err := runSend(context.Background(), c)
	assert.ErrorIs(t, err, core.ErrSettingsNotFound)
	assert.Equal(t, "settings", core.Stage(err))

	c = testConfig(t)
	c.Device.Type = "pcap"
	c.Device.Interface = ""
	_, err = runSend(context.Background(), c)
	assert.ErrorIs(t, err, core.ErrConfigInvalid)

	c = testConfig(t)
	c.Device.Type = "pcapfile"
	_, err = runSend(context.Background(), c)
	assert.ErrorIs(t, err, core.ErrDeviceOpen)
	assert.Equal(t, "device", core.Stage(err))
}

func TestSendFlagsApply(t *testing.T) {
	cmd := &cobra.Command{}
	var o sendFlags
	o.register(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{
		"-d", "pcapfile",
		"-o", "path=/tmp/x.pcap",
		"--dst-ip", "10.1.2.3",
		"--dst-port", "443",
		"--flags", "SYN|ACK",
		"--count", "1e6",
		"--interval", "0s",
		"--seed", "11",
	}))

	c := testConfig(t)
	c.Packet.SrcIP = "192.0.2.1"
	require.NoError(t, o.apply(cmd, c))

	assert.Equal(t, "pcapfile", c.Device.Type)
	assert.Equal(t, "/tmp/x.pcap", c.Device.Options["path"])
	assert.Equal(t, "10.1.2.3", c.Packet.DstIP)
	assert.Equal(t, uint16(443), *c.Packet.DstPort)
	assert.Equal(t, "SYN|ACK", c.Packet.TCPFlags)
	assert.Equal(t, uint64(1000000), *c.Packet.Count)
	assert.Equal(t, time.Duration(0), *c.Packet.Interval)
	assert.Equal(t, int64(11), c.Pipeline.Seed)

	// flags not given keep the config values
	assert.Equal(t, "192.0.2.1", c.Packet.SrcIP)
	assert.Nil(t, c.Packet.TTL)
	assert.Equal(t, "syn-http", c.Packet.Preset)
}

func TestSendFlagsPayloadReplacesConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []byte
	}{
		{"size over text", []string{"--payload-size", "0"}, []byte{}},
		{"size over hex", []string{"--payload-size", "3"}, []byte{0, 0, 0}},
		{"text over hex", []string{"--payload", "hi"}, []byte("hi")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			var o sendFlags
			o.register(cmd.Flags())
			require.NoError(t, cmd.Flags().Parse(tt.args))

			c := testConfig(t)
			c.Packet.Payload = "from-config-file"
			c.Packet.PayloadHex = "deadbeef"
			require.NoError(t, o.apply(cmd, c))

			s, err := resolveSettings(c)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), len(s.Payload()))
			if len(tt.want) > 0 {
				assert.Equal(t, tt.want, s.Payload())
			}
		})
	}
}

func TestSendFlagsRejectFractionalCount(t *testing.T) {
	cmd := &cobra.Command{}
	var o sendFlags
	o.register(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"--count", "2.5"}))
	assert.ErrorIs(t, o.apply(cmd, testConfig(t)), core.ErrConfigInvalid)

	cmd = &cobra.Command{}
	o = sendFlags{}
	o.register(cmd.Flags())
	require.NoError(t, cmd.Flags().Parse([]string{"-d", "carrier-pigeon"}))
	assert.Error(t, o.apply(cmd, testConfig(t)))
}

func TestPresetsList(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runPresetsList(settings.NewLocator(), &buf))

	out := buf.String()
	for _, name := range []string{"syn-http", "syn-https", "ack-flood", "rst-probe", "xmas"} {
		assert.Contains(t, out, name)
	}
	assert.Contains(t, out, "36.13.145.72:12000 -> 160.251.215.3:80")
}

func TestPresetsShow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runPresetsShow(settings.NewLocator(), "syn-http", &buf))

	var view presetView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &view))
	assert.Equal(t, "160.251.215.3", view.DstIP)
	assert.Equal(t, uint16(80), view.DstPort)
	assert.Equal(t, "SYN", view.TCPFlags)
	assert.Equal(t, "00", view.PayloadHex)
	assert.Equal(t, "1s", view.Interval)
	assert.Contains(t, buf.String(), "src_port: 12000\n")

	err := runPresetsShow(settings.NewLocator(), "nope", &buf)
	assert.ErrorIs(t, err, core.ErrSettingsNotFound)
}

func TestPrintDevices(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printDevices([]device.Interface{
		{Name: "eth0", OperState: "up", MTU: 1500, HardwareAddr: "02:00:00:00:00:01", Driver: "virtio_net", Addresses: []string{"10.0.0.2"}},
		{Name: "any"},
	}, &buf))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	assert.Contains(t, string(lines[1]), "virtio_net")
	assert.Contains(t, string(lines[1]), "1500")
	assert.Contains(t, string(lines[2]), "any")
	assert.Contains(t, string(lines[2]), "-")
}

func TestValidate(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runValidate(testConfig(t), &buf))
	assert.Contains(t, buf.String(), "VALID: ")
	assert.Contains(t, buf.String(), "frame 55 bytes")

	c := testConfig(t)
	c.Packet.DstMAC = "zz:zz"
	buf.Reset()
	assert.ErrorIs(t, runValidate(c, &buf), core.ErrConfigInvalid)
	assert.Contains(t, buf.String(), "INVALID: ")
}

func TestExecutePresetsList(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"presets", "list"})
	defer rootCmd.SetArgs(nil)

	require.NoError(t, Execute())
	assert.Contains(t, buf.String(), "rst-probe")
}
