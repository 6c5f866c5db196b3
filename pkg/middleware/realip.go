package middleware

import (
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

// TrustedProxies replaces r.RemoteAddr with the client address reported by
// X-Forwarded-For or X-Real-IP, but only when the direct peer is inside one
// of the trusted networks. X-Forwarded-For is walked right to left and the
// first hop outside the trusted networks is taken as the client. With no
// trusted networks the headers are ignored entirely.
func TrustedProxies(cidrs []string, logger *slog.Logger) func(http.Handler) http.Handler {
	trusted, rejected := ParseNetworks(cidrs)
	for _, e := range rejected {
		logger.Warn("ignoring invalid trusted proxy entry", slog.String("entry", e))
	}

	return func(next http.Handler) http.Handler {
		if len(trusted) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			peer, ok := peerAddr(r.RemoteAddr)
			if ok && containedIn(trusted, peer) {
				if client, found := forwardedClient(r, trusted); found {
					r.RemoteAddr = netip.AddrPortFrom(client, 0).String()
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func forwardedClient(r *http.Request, trusted []netip.Prefix) (netip.Addr, bool) {
	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		var leftmost netip.Addr
		for i := len(hops) - 1; i >= 0; i-- {
			addr, err := netip.ParseAddr(strings.TrimSpace(hops[i]))
			if err != nil {
				break
			}
			addr = addr.Unmap()
			if !containedIn(trusted, addr) {
				return addr, true
			}
			leftmost = addr
		}
		if leftmost.IsValid() {
			return leftmost, true
		}
	}

	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.Unmap(), true
	}
	return netip.Addr{}, false
}

func containedIn(prefixes []netip.Prefix, addr netip.Addr) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
