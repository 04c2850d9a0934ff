// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; services only read them. Keeping the package
// free of net/http lets the engine import it without pulling transport code.
// Tests inject a fixed clock with WithTime so contract-window and
// soft-delete-expiry checks are reproducible.
package requestcontext

import (
	"context"
	"time"

	id "civreg/pkg/domain"
)

type (
	clientCodeKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithClientCode records the authenticated client on the context.
func WithClientCode(ctx context.Context, code id.ClientCode) context.Context {
	return context.WithValue(ctx, clientCodeKey{}, code)
}

// ClientCode returns the authenticated client, or the zero value when unset.
func ClientCode(ctx context.Context) id.ClientCode {
	code, _ := ctx.Value(clientCodeKey{}).(id.ClientCode)
	return code
}

// WithRequestID records the request correlation id on the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the request correlation id, or "" when unset.
func RequestID(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// WithTime pins the request time. Middleware sets this once at ingress so all
// window checks within one request agree on "now".
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Now returns the pinned request time, falling back to the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}
