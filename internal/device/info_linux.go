package device

import (
	"github.com/safchain/ethtool"
	"github.com/vishvananda/netlink"

	"firestige.xyz/otus-inject/internal/log"
)

// enrich adds netlink link attributes and the ethtool driver name. Failures
// leave the fields empty; pseudo devices such as "any" have neither.
func enrich(iface *Interface) {
	if link, err := netlink.LinkByName(iface.Name); err == nil {
		attrs := link.Attrs()
		iface.MTU = attrs.MTU
		iface.OperState = attrs.OperState.String()
		if len(attrs.HardwareAddr) > 0 {
			iface.HardwareAddr = attrs.HardwareAddr.String()
		}
	} else {
		log.GetLogger().WithError(err).Debugf("netlink.LinkByName(%s)", iface.Name)
	}

	etht, err := ethtool.NewEthtool()
	if err != nil {
		log.GetLogger().WithError(err).Debug("ethtool.NewEthtool")
		return
	}
	defer etht.Close()

	if driver, err := etht.DriverName(iface.Name); err == nil {
		iface.Driver = driver
	}
}
