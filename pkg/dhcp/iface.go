package dhcp

import (
	"fmt"
	"net/netip"

	"github.com/vishvananda/netlink"
)

// ResolveInterface looks up ifaceName's hardware address and its first
// configured IPv4 address/prefix via netlink, so a subnet declaration
// doesn't have to repeat what the kernel already knows about the
// interface it binds to.
func ResolveInterface(ifaceName string) (Interface, netip.Prefix, error) {
	link, err := netlink.LinkByName(ifaceName)
	if err != nil {
		return Interface{}, netip.Prefix{}, fmt.Errorf("dhcp: link lookup %s: %w", ifaceName, err)
	}

	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return Interface{}, netip.Prefix{}, fmt.Errorf("dhcp: addr list %s: %w", ifaceName, err)
	}
	if len(addrs) == 0 {
		return Interface{}, netip.Prefix{}, fmt.Errorf("dhcp: interface %s has no IPv4 address", ifaceName)
	}

	ones, _ := addrs[0].Mask.Size()
	prefix, ok := netip.AddrFromSlice(addrs[0].IP.To4())
	if !ok {
		return Interface{}, netip.Prefix{}, fmt.Errorf("dhcp: interface %s address %v is not IPv4", ifaceName, addrs[0].IP)
	}
	network := netip.PrefixFrom(prefix, ones).Masked()

	iface := Interface{
		Name: ifaceName,
		MAC:  link.Attrs().HardwareAddr,
		Addr: prefix,
	}
	return iface, network, nil
}
