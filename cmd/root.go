// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"github.com/spf13/cobra"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/log"
)

var (
	// Global flags
	configFile string

	// cfg is loaded once per invocation by PersistentPreRunE.
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "otus-inject",
	Short: "Otus inject - raw TCP/IPv4 frame generator for traffic and load testing",
	Long: `otus-inject crafts Ethernet/IPv4/TCP frames and injects them onto a network
interface at a configurable rate and volume.

Frames are described by named presets, a YAML configuration file, environment
variables (OTUS_INJECT_*) and command line flags, in increasing precedence.

Devices:
  - pcap:     libpcap live handle
  - afpacket: Linux AF_PACKET socket
  - pcapfile: write frames to a pcap file (dry run)
  - discard:  count and drop (dry run)`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configFile)
		if err != nil {
			return err
		}
		if err := log.Init(loaded.Log); err != nil {
			return err
		}
		cfg = loaded
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and environment only when empty)")

	// Add subcommands
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(presetsCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(validateCmd)
}
