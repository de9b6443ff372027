// Package netclass implements the pure, address-derived network classifier
// spec.md §4.4 uses to key the adaptive controller's profiles.
package netclass

import (
	"net"

	"github.com/scanforge/scanforge/pkg/model"
)

var (
	_, private10     = mustCIDR("10.0.0.0/8")
	_, private172    = mustCIDR("172.16.0.0/12")
	_, private192    = mustCIDR("192.168.0.0/16")
	_, linkLocalV4   = mustCIDR("169.254.0.0/16")
	_, linkLocalV6   = mustCIDR("fe80::/10")
	_, uniqueLocalV6 = mustCIDR("fc00::/7")
)

func mustCIDR(s string) (net.IP, *net.IPNet) {
	ip, n, err := net.ParseCIDR(s)
	if err != nil {
		panic(err)
	}
	return ip, n
}

// Classify derives an address's NetworkClass. It is a pure function: the
// same address always yields the same class, independent of scan history.
func Classify(addr net.IP) model.NetworkClass {
	if addr == nil {
		return model.ClassPublic
	}

	if addr.IsLoopback() {
		return model.ClassLoopback
	}

	if v4 := addr.To4(); v4 != nil {
		switch {
		case linkLocalV4.Contains(v4):
			return model.ClassLinkLocal
		case private10.Contains(v4), private172.Contains(v4), private192.Contains(v4):
			return model.ClassPrivate
		default:
			return model.ClassPublic
		}
	}

	// IPv6.
	switch {
	case linkLocalV6.Contains(addr):
		return model.ClassLinkLocal
	case uniqueLocalV6.Contains(addr):
		return model.ClassPrivate
	default:
		return model.ClassPublic
	}
}
