package api

import (
	"net"
	"net/http"
	"strings"
)

// isPublicIP filters private, loopback and link-local addresses so the
// rate-limit key reflects the real client, not an intermediate proxy.
func isPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsPrivate() {
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// clientIP extracts the requesting client's address. Behind a reverse
// proxy the first public entry of X-Forwarded-For wins; otherwise fall
// back to RemoteAddr. Returns "unknown" when nothing usable is found so
// the rate-limit key stays well-formed.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			ip := safeParseIP(part)
			if isPublicIP(ip) {
				return ip.String()
			}
		}
		// All hops private: take the first entry verbatim, which is
		// what local deployments behind one proxy expect.
		if ip := safeParseIP(strings.Split(xff, ",")[0]); ip != nil {
			return ip.String()
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := safeParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return "unknown"
}
