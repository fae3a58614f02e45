// Package privacy provides helpers for keeping client identifiers out of logs.
package privacy

import "net/netip"

// AnonymizeIP truncates an address to its network prefix so operational logs
// never carry a full client address. IPv4 keeps the /24, IPv6 the /48.
//
// Returns "unknown" for empty input and "invalid" for unparseable values.
func AnonymizeIP(ip string) string {
	if ip == "" || ip == "unknown" {
		return "unknown"
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "invalid"
	}
	addr = addr.Unmap()

	bits := 48
	if addr.Is4() {
		bits = 24
	}
	prefix, err := addr.Prefix(bits)
	if err != nil {
		return "invalid"
	}
	return prefix.Addr().String()
}
