// Package metadata extracts client network metadata (IP, User-Agent) into
// the request context for logging, auditing, and rate limiting.
package metadata

import (
	"net"
	"net/http"
	"strings"

	"meridian/pkg/requestcontext"
)

// Config controls how the client IP is derived.
type Config struct {
	// TrustedProxies lists CIDR ranges of reverse proxies whose
	// X-Forwarded-For headers may be trusted. Requests arriving directly
	// from other addresses use the TCP peer address, so clients cannot
	// spoof their identity (and thus their rate limit bucket) by setting
	// forwarding headers themselves.
	TrustedProxies []string
}

// ClientMetadata resolves the client IP and User-Agent and stores them in
// the request context.
func ClientMetadata(cfg Config) func(http.Handler) http.Handler {
	trusted := parseCIDRs(cfg.TrustedProxies)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r, trusted)
			ctx := requestcontext.WithClientMetadata(r.Context(), ip, r.UserAgent())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func parseCIDRs(cidrs []string) []*net.IPNet {
	nets := make([]*net.IPNet, 0, len(cidrs))
	for _, c := range cidrs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(c); err == nil {
			nets = append(nets, n)
			continue
		}
		// Bare IPs are accepted as single-host entries.
		if ip := net.ParseIP(c); ip != nil {
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
		}
	}
	return nets
}

func clientIP(r *http.Request, trusted []*net.IPNet) string {
	peer := remoteHost(r.RemoteAddr)

	if isTrusted(peer, trusted) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// The leftmost entry is the originating client as reported
			// by our own proxy chain.
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
		}
		if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
			if net.ParseIP(realIP) != nil {
				return realIP
			}
		}
	}

	if peer == "" {
		return "unknown"
	}
	return peer
}

func remoteHost(remoteAddr string) string {
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	if net.ParseIP(remoteAddr) != nil {
		return remoteAddr
	}
	return ""
}

func isTrusted(peer string, trusted []*net.IPNet) bool {
	ip := net.ParseIP(peer)
	if ip == nil {
		return false
	}
	for _, n := range trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}
