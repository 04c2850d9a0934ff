// Package httpserver owns the http.Server defaults and its drain on shutdown.
package httpserver

import (
	"context"
	"net/http"
	"time"
)

// New builds the registry's HTTP server. The write timeout is generous
// because duplicate evaluation fans out across every configured rule and a
// merge holds two identity locks for its whole read-validate-write span.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       time.Minute,
	}
}

// Shutdown drains in-flight requests, giving up after grace.
func Shutdown(srv *http.Server, grace time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()
	return srv.Shutdown(ctx)
}
