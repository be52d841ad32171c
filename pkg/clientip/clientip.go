package clientip

import (
	"net"
	"net/http"
	"strings"
)

// RealClientIP returns the client IP from r.RemoteAddr. Proxy headers are
// ignored because they can be forged by any caller.
func RealClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return strings.TrimSpace(host)
}

// BehindProxy returns the left-most X-Forwarded-For address when the direct
// peer is one of trusted, falling back to RealClientIP otherwise.
func BehindProxy(r *http.Request, trusted []string) string {
	peer := RealClientIP(r)
	if !contains(trusted, peer) {
		return peer
	}
	fwd := r.Header.Get("X-Forwarded-For")
	if fwd == "" {
		return peer
	}
	first := strings.TrimSpace(strings.Split(fwd, ",")[0])
	if net.ParseIP(first) == nil {
		return peer
	}
	return first
}

func contains(list []string, ip string) bool {
	for _, v := range list {
		if strings.TrimSpace(v) == ip {
			return true
		}
	}
	return false
}
