// Package linuxsta runs the station on a Linux wireless interface.
//
// Association itself is left to the system supplicant (wpa_supplicant or
// iwd). The stack brings the interface up, watches its operational state
// over netlink and, once the link is up after a connect request, runs a
// DHCPv4 exchange and installs the leased address:
//
//	Start           -> link up, STA_START
//	Connect         -> wait for OperUp (AssocTimeout), STA_CONNECTED
//	DHCP ACK        -> address installed, STA_GOT_IP
//	timeout / loss  -> STA_DISCONNECTED
//
// It needs CAP_NET_ADMIN and CAP_NET_RAW.
package linuxsta
