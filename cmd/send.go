package cmd

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/core"
	"firestige.xyz/otus-inject/internal/device"
	"firestige.xyz/otus-inject/internal/frame"
	"firestige.xyz/otus-inject/internal/log"
	"firestige.xyz/otus-inject/internal/metrics"
	"firestige.xyz/otus-inject/internal/pipeline"
	"firestige.xyz/otus-inject/internal/settings"
)

var sendCmd = &cobra.Command{
	Use:   "send [preset]",
	Short: "Inject frames onto a device",
	Long: `Build one template frame from a preset plus overrides and inject count copies
of it, pacing frames by the configured interval.

Examples:
  otus-inject send syn-http -i eth0                          # built-in preset
  otus-inject send -c inject.yaml                            # everything from the config file
  otus-inject send syn-https -i eth0 --count 1e6 --interval 0
  otus-inject send ack-flood -d pcapfile -o path=out.pcap    # dry run into a pcap file`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			cfg.Packet.Preset = args[0]
		}
		if err := sendOpts.apply(cmd, cfg); err != nil {
			return err
		}
		_, err := runSend(cmd.Context(), cfg)
		return err
	},
}

// sendFlags mirror config keys; only flags given on the command line win.
type sendFlags struct {
	device    string
	iface     string
	devOpts   map[string]string
	preset    string
	srcMAC    string
	dstMAC    string
	srcIP     string
	dstIP     string
	srcPort   uint16
	dstPort   uint16
	ttl       uint8
	dscp      uint8
	tcpFlags  string
	seqMode   string
	payload   string
	payloadHx string
	size      int
	count     float64
	interval  time.Duration
	timeout   time.Duration
	seed      int64
	workers   int
	batchSize int
	metrics   bool
}

var sendOpts sendFlags

func init() {
	sendOpts.register(sendCmd.Flags())
}

func (o *sendFlags) register(f *pflag.FlagSet) {
	f.StringVarP(&o.device, "device", "d", "", "device type: pcap, afpacket, pcapfile, discard")
	f.StringVarP(&o.iface, "interface", "i", "", "network interface")
	f.StringToStringVarP(&o.devOpts, "device-opt", "o", nil, "device specific option key=value")
	f.StringVarP(&o.preset, "preset", "p", "", "preset name (same as the positional argument)")
	f.StringVar(&o.srcMAC, "src-mac", "", "source MAC address")
	f.StringVar(&o.dstMAC, "dst-mac", "", "destination MAC address")
	f.StringVar(&o.srcIP, "src-ip", "", "source IPv4 address")
	f.StringVar(&o.dstIP, "dst-ip", "", "destination IPv4 address")
	f.Uint16Var(&o.srcPort, "src-port", 0, "TCP source port")
	f.Uint16Var(&o.dstPort, "dst-port", 0, "TCP destination port")
	f.Uint8Var(&o.ttl, "ttl", 0, "IPv4 time to live")
	f.Uint8Var(&o.dscp, "dscp", 0, "IPv4 DSCP")
	f.StringVar(&o.tcpFlags, "flags", "", "TCP flags, e.g. SYN|ACK")
	f.StringVar(&o.seqMode, "seq-mode", "", "sequence numbers: zero, random, per-frame")
	f.StringVar(&o.payload, "payload", "", "payload text")
	f.StringVar(&o.payloadHx, "payload-hex", "", "payload as hex")
	f.IntVar(&o.size, "payload-size", 0, "zero filled payload size")
	f.Float64VarP(&o.count, "count", "n", 0, "number of frames (accepts 1e6)")
	f.DurationVar(&o.interval, "interval", 0, "delay between frames")
	f.DurationVar(&o.timeout, "timeout", 0, "per-send device timeout")
	f.Int64Var(&o.seed, "seed", 0, "random seed, 0 = time based")
	f.IntVar(&o.workers, "workers", 0, "generation goroutines, 0 = GOMAXPROCS")
	f.IntVar(&o.batchSize, "batch-size", 0, "frames per batch")
	f.BoolVar(&o.metrics, "metrics", false, "serve Prometheus metrics during the run")
}

// apply copies the flags given on the command line into c.
func (o *sendFlags) apply(cmd *cobra.Command, c *config.Config) error {
	changed := cmd.Flags().Changed
	p := &c.Packet

	if changed("device") {
		c.Device.Type = o.device
	}
	if changed("interface") {
		c.Device.Interface = o.iface
	}
	if changed("device-opt") {
		if c.Device.Options == nil {
			c.Device.Options = map[string]any{}
		}
		for k, v := range o.devOpts {
			c.Device.Options[k] = v
		}
	}
	if changed("preset") {
		p.Preset = o.preset
	}
	setString(changed("src-mac"), &p.SrcMAC, o.srcMAC)
	setString(changed("dst-mac"), &p.DstMAC, o.dstMAC)
	setString(changed("src-ip"), &p.SrcIP, o.srcIP)
	setString(changed("dst-ip"), &p.DstIP, o.dstIP)
	setString(changed("flags"), &p.TCPFlags, o.tcpFlags)
	setString(changed("seq-mode"), &p.SeqMode, o.seqMode)
	// A payload flag replaces every payload source of the config file.
	if changed("payload") || changed("payload-hex") || changed("payload-size") {
		p.Payload, p.PayloadHex, p.PayloadSize = "", "", nil
	}
	setString(changed("payload"), &p.Payload, o.payload)
	setString(changed("payload-hex"), &p.PayloadHex, o.payloadHx)
	setPtr(changed("src-port"), &p.SrcPort, o.srcPort)
	setPtr(changed("dst-port"), &p.DstPort, o.dstPort)
	setPtr(changed("ttl"), &p.TTL, o.ttl)
	setPtr(changed("dscp"), &p.DSCP, o.dscp)
	setPtr(changed("payload-size"), &p.PayloadSize, o.size)
	setPtr(changed("interval"), &p.Interval, o.interval)
	setPtr(changed("timeout"), &p.Timeout, o.timeout)
	if changed("count") {
		if o.count < 0 || o.count != float64(uint64(o.count)) {
			return fmt.Errorf("%w: count must be a whole non-negative number, got %v", core.ErrConfigInvalid, o.count)
		}
		setPtr(true, &p.Count, uint64(o.count))
	}

	if changed("seed") {
		c.Pipeline.Seed = o.seed
	}
	if changed("workers") {
		c.Pipeline.Workers = o.workers
	}
	if changed("batch-size") {
		c.Pipeline.BatchSize = o.batchSize
	}
	if changed("metrics") {
		c.Metrics.Enabled = o.metrics
	}

	// flags bypassed the validation done by config.Load
	return c.ValidateAndApplyDefaults()
}

func setString(changed bool, dst *string, v string) {
	if changed {
		*dst = v
	}
}

func setPtr[T any](changed bool, dst **T, v T) {
	if changed {
		*dst = &v
	}
}

// runSend resolves the settings, opens the device and runs one injection.
func runSend(ctx context.Context, c *config.Config) (stats pipeline.Stats, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := log.GetLogger()

	s, err := resolveSettings(c)
	if err != nil {
		return stats, setupFailed(logger, err)
	}
	if c.Device.RequiresInterface() && c.Device.Interface == "" {
		return stats, setupFailed(logger, fmt.Errorf("%w: device %s needs an interface (-i)", core.ErrConfigInvalid, c.Device.Type))
	}

	seed := c.Pipeline.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	template, err := frame.Build(s, rand.New(rand.NewSource(seed)))
	if err != nil {
		return stats, setupFailed(logger, err)
	}

	opts, err := device.FromConfig(c.Device, s.Timeout())
	if err != nil {
		return stats, setupFailed(logger, err)
	}
	sink, err := device.Open(opts)
	if err != nil {
		return stats, setupFailed(logger, err)
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%w: %v", core.ErrDeviceClose, cerr))
		}
	}()

	if c.Metrics.Enabled {
		srv := metrics.NewServer(c.Metrics.Listen, c.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return stats, setupFailed(logger, err)
		}
		defer srv.Stop(context.Background())
	}

	p, err := pipeline.NewBuilder().
		WithConfig(c.Pipeline).
		WithSink(sink).
		WithLogger(logger.WithField("device", string(sink.Type()))).
		Build()
	if err != nil {
		return stats, setupFailed(logger, err)
	}

	logger.WithFields(map[string]interface{}{
		"device":    sink.Type(),
		"interface": c.Device.Interface,
		"preset":    c.Packet.Preset,
	}).Infof("sending %s", s)

	return p.Run(template, s)
}

func resolveSettings(c *config.Config) (*settings.Settings, error) {
	loc := settings.NewLocator()
	if err := loc.RegisterConfig(c.Presets); err != nil {
		return nil, err
	}
	return settings.FromConfig(loc, c.Packet)
}

func setupFailed(logger log.Logger, err error) error {
	logger.WithError(err).WithField("stage", core.Stage(err)).Error("send failed")
	return err
}
