package device

import (
	"fmt"
	"sort"

	"github.com/google/gopacket/pcap"

	"firestige.xyz/otus-inject/internal/core"
)

// Interface describes a network interface frames can be injected into.
type Interface struct {
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description,omitempty"`
	Addresses    []string `yaml:"addresses,omitempty"`
	HardwareAddr string   `yaml:"hardware_addr,omitempty"`
	MTU          int      `yaml:"mtu,omitempty"`
	OperState    string   `yaml:"oper_state,omitempty"`
	Driver       string   `yaml:"driver,omitempty"`
}

// List enumerates the interfaces libpcap can open, sorted by name. Link
// details are filled in where the platform provides them.
func List() ([]Interface, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return nil, fmt.Errorf("%w: list interfaces: %v", core.ErrDeviceOpen, err)
	}

	out := make([]Interface, 0, len(devs))
	for _, d := range devs {
		iface := Interface{Name: d.Name, Description: d.Description}
		for _, a := range d.Addresses {
			iface.Addresses = append(iface.Addresses, a.IP.String())
		}
		enrich(&iface)
		out = append(out, iface)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
