package clientip

import (
	"context"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// DefaultHeaders are consulted, in order, when no headers are configured.
var DefaultHeaders = []string{"CF-Connecting-IP", "X-Forwarded-For", "X-Real-IP"}

// Resolver finds the originating client address of a request.
// Only list headers that your own proxy overwrites; anything else is client controlled.
type Resolver struct {
	headers []string
}

// New returns a Resolver that trusts headers in priority order.
// With no headers it uses DefaultHeaders.
func New(headers ...string) *Resolver {
	trusted := make([]string, 0, len(headers))
	for _, h := range headers {
		if h = strings.TrimSpace(h); h != "" {
			trusted = append(trusted, http.CanonicalHeaderKey(h))
		}
	}
	if len(trusted) == 0 {
		trusted = DefaultHeaders
	}
	return &Resolver{headers: trusted}
}

// IP returns the normalized client address, or an empty string if none is valid.
// X-Forwarded-For style lists yield their first valid entry.
func (res *Resolver) IP(r *http.Request) string {
	for _, h := range res.headers {
		for candidate := range strings.SplitSeq(r.Header.Get(h), ",") {
			if ip := parseIP(candidate); ip != "" {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return parseIP(r.RemoteAddr)
	}
	return parseIP(host)
}

// Middleware stores the resolved address in the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(WithIP(r.Context(), res.IP(r))))
	})
}

// Key is a ratelimiter.KeyFunc shape: it keys requests by client address.
func (res *Resolver) Key(r *http.Request) string {
	if ip := FromContext(r.Context()); ip != "" {
		return ip
	}
	return res.IP(r)
}

func parseIP(s string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}

type contextKey struct{}

func WithIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, contextKey{}, ip)
}

// FromContext returns the address stored by Middleware.
func FromContext(ctx context.Context) string {
	ip, _ := ctx.Value(contextKey{}).(string)
	return ip
}
