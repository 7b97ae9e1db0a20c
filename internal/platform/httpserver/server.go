// Package httpserver constructs the http.Server with production timeouts
// so main stays focused on wiring.
package httpserver

import (
	"net/http"
	"time"
)

// New returns an http.Server for the given address and handler. Write
// timeout stays above the request middleware timeout so handlers, not the
// server, decide how slow requests fail.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
