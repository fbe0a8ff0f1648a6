// Package httpserver builds the *http.Server the service runs on.
package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with conservative timeouts. The write timeout
// sits above the router's 30s request timeout so chi, not the server, is
// what cuts off a slow handler.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      35 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
