// Package requestmeta carries caller network details from the HTTP edge to
// the audit ledger.
package requestmeta

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey struct{}

// Meta is the request origin recorded alongside audit entries.
type Meta struct {
	IPAddress string
	UserAgent string
}

// With stores meta on ctx.
func With(ctx context.Context, meta Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxKey{}, meta)
}

// From returns the meta stored on ctx, or the zero value.
func From(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	if m, ok := ctx.Value(ctxKey{}).(Meta); ok {
		return m
	}
	return Meta{}
}

// FromRequest extracts the client address and user agent. The first
// X-Forwarded-For hop wins over RemoteAddr when present.
func FromRequest(r *http.Request) Meta {
	if r == nil {
		return Meta{}
	}
	return Meta{
		IPAddress: clientIP(r),
		UserAgent: strings.TrimSpace(r.UserAgent()),
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first := strings.TrimSpace(strings.Split(fwd, ",")[0])
		if first != "" {
			return first
		}
	}
	if real := strings.TrimSpace(r.Header.Get("X-Real-Ip")); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
