package linuxsta

import (
	"errors"
	"net"
	"net/netip"

	"github.com/insomniacslk/dhcp/dhcpv4"

	"github.com/tenderoni/tenderoni-go/pkg/wifi"
)

// ErrNoAddress is returned when a DHCP ACK carries no usable address.
var ErrNoAddress = errors.New("linuxsta: ack without address")

// leaseInfo converts a DHCP ACK into the STA_GOT_IP payload and the
// interface address to install.
func leaseInfo(ack *dhcpv4.DHCPv4) (wifi.GotIP, *net.IPNet, error) {
	if ack == nil {
		return wifi.GotIP{}, nil, ErrNoAddress
	}
	ip, ok := netip.AddrFromSlice(ack.YourIPAddr.To4())
	if !ok || ip.IsUnspecified() {
		return wifi.GotIP{}, nil, ErrNoAddress
	}

	mask := ack.SubnetMask()
	if len(mask) != net.IPv4len {
		mask = ip4DefaultMask(ip)
	}

	info := wifi.GotIP{IP: ip}
	if m, ok := netip.AddrFromSlice(net.IP(mask).To4()); ok {
		info.Netmask = m
	}
	if routers := ack.Router(); len(routers) > 0 {
		if gw, ok := netip.AddrFromSlice(routers[0].To4()); ok {
			info.Gateway = gw
		}
	}

	return info, &net.IPNet{IP: ack.YourIPAddr.To4(), Mask: mask}, nil
}

// ip4DefaultMask is used when the server leaves out the subnet mask option.
func ip4DefaultMask(ip netip.Addr) net.IPMask {
	b := ip.As4()
	return net.IP(b[:]).DefaultMask()
}
