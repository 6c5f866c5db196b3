package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/http/pprof"
	"net/netip"
	"strings"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/Girirajbhatt/careerhub/pkg/errors"
	"github.com/Girirajbhatt/careerhub/pkg/httputil"
)

// RegisterPprof mounts the runtime profiling handlers under /debug/pprof,
// reachable only from the allowed networks. An empty list closes them to
// everyone.
func RegisterPprof(r chi.Router, allowed []string, logger *slog.Logger) {
	r.Route("/debug/pprof", func(r chi.Router) {
		r.Use(IPAllowlist(allowed, logger))
		r.HandleFunc("/", pprof.Index)
		r.HandleFunc("/cmdline", pprof.Cmdline)
		r.HandleFunc("/profile", pprof.Profile)
		r.HandleFunc("/symbol", pprof.Symbol)
		r.HandleFunc("/trace", pprof.Trace)
		r.Handle("/{profile}", http.HandlerFunc(pprof.Index))
	})
}

// ParseNetworks turns CIDRs and bare addresses into prefixes. Entries that
// parse as neither are returned in rejected.
func ParseNetworks(entries []string) (prefixes []netip.Prefix, rejected []string) {
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if p, err := netip.ParsePrefix(e); err == nil {
			prefixes = append(prefixes, p.Masked())
			continue
		}
		if a, err := netip.ParseAddr(e); err == nil {
			prefixes = append(prefixes, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
			continue
		}
		rejected = append(rejected, e)
	}
	return prefixes, rejected
}

// IPAllowlist admits requests whose peer address falls inside one of the
// allowed networks and answers 403 otherwise. Only RemoteAddr is consulted;
// forwarding headers are client controlled.
func IPAllowlist(allowed []string, logger *slog.Logger) func(http.Handler) http.Handler {
	prefixes, rejected := ParseNetworks(allowed)
	for _, e := range rejected {
		logger.Warn("ignoring invalid allowlist entry", slog.String("entry", e))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if addr, ok := peerAddr(r.RemoteAddr); ok && containedIn(prefixes, addr) {
				next.ServeHTTP(w, r)
				return
			}

			logger.WarnContext(r.Context(), "request blocked by ip allowlist",
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("path", r.URL.Path),
			)
			httputil.WriteJSON(w, http.StatusForbidden, httputil.Response{
				Kind:    apperrors.CodeForbidden,
				Message: "access restricted",
			})
		})
	}
}

func peerAddr(remote string) (netip.Addr, bool) {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		host = remote
	}
	a, err := netip.ParseAddr(host)
	if err != nil {
		return netip.Addr{}, false
	}
	return a.Unmap(), true
}
