package utils

import (
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// HostOnly strips the port from "ip:port", "[v6]:port" or "host:port".
// Input without a port is returned unchanged.
func HostOnly(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if h, _, err := net.SplitHostPort(s); err == nil {
		return h
	}
	return strings.Trim(s, "[]")
}

// ClientIP resolves the caller address. Proxy headers (CF-Connecting-IP,
// the left-most X-Forwarded-For, X-Real-IP) are only read when trustProxy is
// set; the extension normally talks to the service directly over loopback.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, v := range []string{
			r.Header.Get("CF-Connecting-IP"),
			firstOf(r.Header.Get("X-Forwarded-For")),
			r.Header.Get("X-Real-IP"),
		} {
			if ip := HostOnly(v); ip != "" {
				return ip
			}
		}
	}
	return HostOnly(r.RemoteAddr)
}

func firstOf(list string) string {
	first, _, _ := strings.Cut(list, ",")
	return first
}

// IPMatcher matches addresses against a list of IPs and CIDRs.
type IPMatcher struct {
	prefixes []netip.Prefix
}

// NewIPMatcher parses list; a bare IP becomes a single-address prefix and
// unparsable entries are skipped.
func NewIPMatcher(list []string) *IPMatcher {
	m := &IPMatcher{}
	for _, raw := range list {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			m.prefixes = append(m.prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(s); err == nil {
			m.prefixes = append(m.prefixes, netip.PrefixFrom(a, a.BitLen()))
		}
	}
	return m
}

func (m *IPMatcher) IsEmpty() bool { return len(m.prefixes) == 0 }

// Allow reports whether ip falls in any prefix. IPv4-mapped IPv6 addresses
// are matched as IPv4.
func (m *IPMatcher) Allow(ip string) bool {
	a, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	a = a.Unmap()
	for _, p := range m.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
