package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/otus-inject/internal/device"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List network interfaces frames can be injected into",
	Long: `List the interfaces libpcap can open. On Linux the link state, MTU, hardware
address and driver are read through netlink and ethtool.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ifaces, err := device.List()
		if err != nil {
			return err
		}
		return printDevices(ifaces, cmd.OutOrStdout())
	},
}

func printDevices(ifaces []device.Interface, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSTATE\tMTU\tMAC\tDRIVER\tADDRESSES")
	for _, i := range ifaces {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			i.Name, dash(i.OperState), dash(mtu(i.MTU)), dash(i.HardwareAddr), dash(i.Driver),
			dash(strings.Join(i.Addresses, ",")))
	}
	return tw.Flush()
}

func mtu(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprint(v)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
