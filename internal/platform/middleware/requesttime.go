package middleware

import (
	"net/http"
	"time"

	"civreg/pkg/requestcontext"
)

// RequestTime pins "now" at ingress so every window check within one request
// agrees on the same timestamp.
func RequestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
