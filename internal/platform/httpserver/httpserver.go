package httpserver

import (
	"net/http"
	"time"
)

// New builds the HTTP server. The write timeout leaves headroom for a lookup
// that exhausts both registry attempts and the full scraper budget.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       time.Minute,
	}
}
