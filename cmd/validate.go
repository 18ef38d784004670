package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-inject/internal/config"
	"firestige.xyz/otus-inject/internal/frame"
	"firestige.xyz/otus-inject/internal/settings"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration without sending",
	Long: `Load the configuration, resolve the packet settings and build the template
frame without opening a device.

This is useful for pre-checking a configuration file before a run.

Examples:
  otus-inject validate -c inject.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(cfg, cmd.OutOrStdout())
	},
}

func runValidate(c *config.Config, w io.Writer) error {
	s, err := resolveSettings(c)
	if err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}
	if c.Device.RequiresInterface() && c.Device.Interface == "" {
		fmt.Fprintf(w, "WARNING: device %s has no interface configured\n", c.Device.Type)
	}

	// the layout does not depend on the sequence number
	zero := s.Config()
	zero.SeqMode = settings.SeqZero
	if _, err := frame.Build(settings.MustNew(zero), nil); err != nil {
		fmt.Fprintf(w, "INVALID: %v\n", err)
		return err
	}

	fmt.Fprintf(w, "VALID: %s, frame %d bytes, device %s\n", s, frame.Len(s.PayloadLen()), c.Device.Type)
	return nil
}
