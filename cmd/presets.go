package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"firestige.xyz/otus-inject/internal/settings"
)

// presetsCmd represents the presets command group
var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Inspect packet presets",
	Long: `Inspect the built-in packet presets and those declared under "presets:" in
the configuration file.

Subcommands:
  list  - List preset names with a summary
  show  - Print one preset as YAML`,
}

var presetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := presetLocator()
		if err != nil {
			return err
		}
		return runPresetsList(loc, cmd.OutOrStdout())
	},
}

var presetsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a preset as YAML",
	Long: `Print a preset as YAML. The output uses the keys of the "packet:" section of
the configuration file, so it can be pasted there and edited.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, err := presetLocator()
		if err != nil {
			return err
		}
		return runPresetsShow(loc, args[0], cmd.OutOrStdout())
	},
}

func init() {
	presetsCmd.AddCommand(presetsListCmd)
	presetsCmd.AddCommand(presetsShowCmd)
}

func presetLocator() (*settings.Locator, error) {
	loc := settings.NewLocator()
	if err := loc.RegisterConfig(cfg.Presets); err != nil {
		return nil, err
	}
	return loc, nil
}

func runPresetsList(loc *settings.Locator, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tFLOW\tFLAGS\tPAYLOAD\tCOUNT\tINTERVAL")
	for _, name := range loc.Names() {
		s, err := loc.Lookup(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s:%d -> %s:%d\t%s\t%dB\t%d\t%s\n",
			name, s.SrcIP(), s.SrcPort(), s.DstIP(), s.DstPort(),
			settings.FormatTCPFlags(s.TCPFlags()), s.PayloadLen(), s.Count(), s.Interval())
	}
	return tw.Flush()
}

// presetView is a preset in the shape of the "packet:" config section.
type presetView struct {
	SrcMAC         string `yaml:"src_mac"`
	DstMAC         string `yaml:"dst_mac"`
	SrcIP          string `yaml:"src_ip"`
	DstIP          string `yaml:"dst_ip"`
	IPVersion      uint8  `yaml:"ip_version"`
	IPHeaderLength uint8  `yaml:"ip_header_length"`
	DSCP           uint8  `yaml:"dscp"`
	ECN            uint8  `yaml:"ecn"`
	Identification uint16 `yaml:"identification"`
	IPFlags        uint8  `yaml:"ip_flags"`
	TTL            uint8  `yaml:"ttl"`
	Protocol       uint8  `yaml:"protocol"`
	SrcPort        uint16 `yaml:"src_port"`
	DstPort        uint16 `yaml:"dst_port"`
	TCPFlags       string `yaml:"tcp_flags"`
	SeqMode        string `yaml:"seq_mode"`
	PayloadHex     string `yaml:"payload_hex"`
	Count          uint64 `yaml:"count"`
	Interval       string `yaml:"interval"`
	Timeout        string `yaml:"timeout"`
}

func newPresetView(s *settings.Settings) presetView {
	return presetView{
		SrcMAC:         s.SrcMAC().String(),
		DstMAC:         s.DstMAC().String(),
		SrcIP:          s.SrcIP().String(),
		DstIP:          s.DstIP().String(),
		IPVersion:      s.Version(),
		IPHeaderLength: s.HeaderLength(),
		DSCP:           s.DSCP(),
		ECN:            s.ECN(),
		Identification: s.Identification(),
		IPFlags:        s.IPFlags(),
		TTL:            s.TTL(),
		Protocol:       uint8(s.Protocol()),
		SrcPort:        s.SrcPort(),
		DstPort:        s.DstPort(),
		TCPFlags:       settings.FormatTCPFlags(s.TCPFlags()),
		SeqMode:        string(s.SeqMode()),
		PayloadHex:     hex.EncodeToString(s.Payload()),
		Count:          s.Count(),
		Interval:       s.Interval().String(),
		Timeout:        s.Timeout().String(),
	}
}

func runPresetsShow(loc *settings.Locator, name string, w io.Writer) error {
	s, err := loc.Lookup(name)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newPresetView(s)); err != nil {
		return err
	}
	return enc.Close()
}
