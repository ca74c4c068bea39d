// Package ipfilter provides IP-based access control, both for static
// config-level allow lists and for per-realm source whitelists.
package ipfilter

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// Realm whitelists are evaluated fail-closed: a malformed entry denies
// the request instead of being skipped, since skipping a bad entry
// could silently widen access. Config-level lists (metrics listener)
// keep the lenient skip-and-warn behavior via Filter below.

// ErrBadRange marks a whitelist entry that could not be parsed.
var ErrBadRange = fmt.Errorf("malformed whitelist entry")

// ErrRangeTooBroad marks an entry covering the entire address space.
var ErrRangeTooBroad = fmt.Errorf("whitelist entry covers the entire address space")

// Evaluate checks a source address against an ordered realm whitelist.
//
// An empty list allows any source. The whole list is parsed and
// validated before any matching: a malformed entry or (unless
// allowAnyRange is set) a full-address-space entry returns an error
// even when an earlier entry contains the source, and the caller must
// deny the request and audit it as a security event.
//
// Address family normalization: an IPv4-mapped IPv6 address or range
// (::ffff:a.b.c.d, prefix >= 96) is normalized to plain IPv4 on both
// sides before matching. Beyond that, IPv4 and IPv6 never cross-match.
func Evaluate(ranges []string, source net.IP, allowAnyRange bool) (bool, error) {
	if len(ranges) == 0 {
		return true, nil
	}

	nets := make([]*net.IPNet, 0, len(ranges))
	for _, entry := range ranges {
		ipNet, err := parseEntry(entry)
		if err != nil {
			return false, err
		}
		if isFullRange(ipNet) && !allowAnyRange {
			return false, fmt.Errorf("%w: %s", ErrRangeTooBroad, strings.TrimSpace(entry))
		}
		nets = append(nets, ipNet)
	}

	if source == nil {
		return false, nil
	}
	source = normalizeIP(source)

	for _, ipNet := range nets {
		if ipNet.Contains(source) {
			return true, nil
		}
	}
	return false, nil
}

// parseEntry parses a single whitelist entry (CIDR or bare address)
// into a normalized network.
func parseEntry(entry string) (*net.IPNet, error) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil, fmt.Errorf("%w: empty entry", ErrBadRange)
	}

	if strings.Contains(entry, "/") {
		_, ipNet, err := net.ParseCIDR(entry)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadRange, entry)
		}
		return normalizeNet(ipNet), nil
	}

	ip := net.ParseIP(entry)
	if ip == nil {
		return nil, fmt.Errorf("%w: %s", ErrBadRange, entry)
	}
	ip = normalizeIP(ip)
	var mask net.IPMask
	if ip.To4() != nil {
		ip = ip.To4()
		mask = net.CIDRMask(32, 32)
	} else {
		mask = net.CIDRMask(128, 128)
	}
	return &net.IPNet{IP: ip, Mask: mask}, nil
}

// normalizeIP collapses IPv4-mapped IPv6 addresses to 4-byte form.
func normalizeIP(ip net.IP) net.IP {
	if v4 := ip.To4(); v4 != nil {
		return v4
	}
	return ip
}

// normalizeNet rebases an IPv4-mapped IPv6 network (prefix >= 96) onto
// plain IPv4 so it matches normalized client addresses.
func normalizeNet(ipNet *net.IPNet) *net.IPNet {
	ones, bits := ipNet.Mask.Size()
	if bits != 128 {
		return ipNet
	}
	v4 := ipNet.IP.To4()
	if v4 == nil || ones < 96 {
		return ipNet
	}
	return &net.IPNet{IP: v4, Mask: net.CIDRMask(ones-96, 32)}
}

// isFullRange reports whether the network covers its whole family.
func isFullRange(ipNet *net.IPNet) bool {
	ones, _ := ipNet.Mask.Size()
	return ones == 0
}

// Filter is a static allow list for config-level listeners. Invalid
// entries are skipped with a warning; an empty filter allows all.
type Filter struct {
	allowedNets []*net.IPNet
	logger      *slog.Logger
}

// New creates a filter from a list of IPs/CIDRs.
func New(allowedIPs []string, logger *slog.Logger) *Filter {
	f := &Filter{logger: logger}

	for _, entry := range allowedIPs {
		if strings.TrimSpace(entry) == "" {
			continue
		}
		ipNet, err := parseEntry(entry)
		if err != nil {
			logger.Warn("invalid entry in allowed_ips", "entry", entry, "error", err)
			continue
		}
		f.allowedNets = append(f.allowedNets, ipNet)
	}

	return f
}

// Enabled returns true if IP filtering is active.
func (f *Filter) Enabled() bool {
	return len(f.allowedNets) > 0
}

// Count returns the number of allowed networks.
func (f *Filter) Count() int {
	return len(f.allowedNets)
}

// IsAllowed checks if the IP is allowed. Returns true if the filter is
// empty (allow all) or the IP is inside an allowed network.
func (f *Filter) IsAllowed(ip net.IP) bool {
	if len(f.allowedNets) == 0 {
		return true
	}
	if ip == nil {
		return false
	}
	ip = normalizeIP(ip)
	for _, ipNet := range f.allowedNets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// GetClientIP extracts the client IP from an HTTP request, checking
// X-Forwarded-For and X-Real-IP before RemoteAddr.
func GetClientIP(r *http.Request) net.IP {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			ip := net.ParseIP(strings.TrimSpace(parts[0]))
			if ip != nil {
				return ip
			}
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		ip := net.ParseIP(strings.TrimSpace(xri))
		if ip != nil {
			return ip
		}
	}

	return RemoteIP(r)
}

// RemoteIP parses the transport-level peer address, ignoring any
// forwarding headers.
func RemoteIP(r *http.Request) net.IP {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// Maybe no port?
		return net.ParseIP(r.RemoteAddr)
	}
	return net.ParseIP(host)
}

// HTTPMiddleware returns an HTTP middleware that filters requests by IP.
func (f *Filter) HTTPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !f.Enabled() {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := GetClientIP(r)
		if clientIP == nil {
			f.logger.Warn("could not parse client IP", "remote_addr", r.RemoteAddr)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		if !f.IsAllowed(clientIP) {
			f.logger.Warn("access denied by IP filter", "ip", clientIP.String(), "path", r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
