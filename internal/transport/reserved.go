package transport

import (
	"fmt"
	"net"
)

// Reserved/special-use ranges is_valid (§6.1) must reject in addition to
// loopback/unspecified/multicast: RFC 1918 private space, RFC 6598
// carrier-grade NAT, and the handful of small IANA special-purpose blocks
// that show up in spoofed or misconfigured traffic. Grounded on the
// teacher's own isPrivateIP/isReservedIP split
// (controlplane/telemetry/internal/geoprobe/address.go).
var (
	reservedPrivate10  = mustParseCIDR("10.0.0.0/8")
	reservedPrivate172 = mustParseCIDR("172.16.0.0/12")
	reservedPrivate192 = mustParseCIDR("192.168.0.0/16")
	reservedCGNAT      = mustParseCIDR("100.64.0.0/10")
	reservedIETF       = mustParseCIDR("192.0.0.0/24")
	reservedBenchmark  = mustParseCIDR("198.18.0.0/15")
	reservedClassE     = mustParseCIDR("240.0.0.0/4")

	reservedIPv6ULA = mustParseCIDR("fc00::/7")
)

func mustParseCIDR(s string) *net.IPNet {
	_, ipnet, err := net.ParseCIDR(s)
	if err != nil {
		panic(fmt.Sprintf("transport: invalid reserved CIDR %q: %v", s, err))
	}
	return ipnet
}

// isReserved reports whether ip falls in a reserved/special-use range that
// §6.1's is_valid must reject alongside loopback/unspecified/multicast.
func isReserved(ip net.IP) bool {
	if ip4 := ip.To4(); ip4 != nil {
		return reservedPrivate10.Contains(ip4) ||
			reservedPrivate172.Contains(ip4) ||
			reservedPrivate192.Contains(ip4) ||
			reservedCGNAT.Contains(ip4) ||
			reservedIETF.Contains(ip4) ||
			reservedBenchmark.Contains(ip4) ||
			reservedClassE.Contains(ip4)
	}
	return reservedIPv6ULA.Contains(ip)
}
