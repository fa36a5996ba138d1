// Package httputil holds request helpers shared by the HTTP transports.
package httputil

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ipv6LimitBits groups IPv6 clients by the /64 a single subscriber is
// usually delegated.
const ipv6LimitBits = 64

// ClientIP extracts the client IP address from the request, normalised so
// IPv4-mapped IPv6 addresses and zones do not split one client in two.
//
// When trustProxy is true the first X-Forwarded-For entry, then X-Real-IP,
// is used before RemoteAddr. Header values that are not addresses are
// ignored. Only enable trustProxy behind a reverse proxy that overwrites
// these headers.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		xff := r.Header.Get("X-Forwarded-For")
		if i := strings.IndexByte(xff, ','); i >= 0 {
			xff = xff[:i]
		}
		if addr, ok := parseAddr(xff); ok {
			return addr.String()
		}
		if addr, ok := parseAddr(r.Header.Get("X-Real-IP")); ok {
			return addr.String()
		}
	}
	if addr, ok := parseAddr(r.RemoteAddr); ok {
		return addr.String()
	}
	return r.RemoteAddr
}

// parseAddr accepts an address with or without a port.
func parseAddr(s string) (netip.Addr, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return netip.Addr{}, false
	}
	if host, _, err := net.SplitHostPort(s); err == nil {
		s = host
	}
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap().WithZone(""), true
}

// LimitKey returns the key a per-client limit counts ip under: the address
// itself for IPv4, its /64 for IPv6. Unparseable input is its own key.
func LimitKey(ip string) string {
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is6() {
		return ip
	}
	prefix, err := addr.Prefix(ipv6LimitBits)
	if err != nil {
		return ip
	}
	return prefix.String()
}
