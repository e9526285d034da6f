// Package httpserver builds the process's http.Server.
package httpserver

import (
	"net/http"
	"time"
)

// New returns a server with bounded timeouts. The write timeout leaves room
// for the callback handler, which makes two outbound provider calls (token
// exchange and userinfo) before it can respond.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
