// internal/server/timeouts.go
//
// HTTP server helper with robust timeouts.
//
// Production hardening recommends:
//
//   • ReadTimeout   – abort slow-loris headers (default 10 s)
//   • WriteTimeout  – cap total response time (default 30 s)
//   • IdleTimeout   – close keep-alives on idle clients (default 120 s)
//
// The write timeout must exceed delivery.timeout, because a submit response
// waits on the EmailJS call.  New enforces that floor.
//

package server

import (
	"net/http"
	"time"

	"github.com/yanizio/lessonforms/internal/config"
)

const writeSlack = 5 * time.Second

// New constructs an *http.Server from the http and delivery sections.
func New(cfg *config.Config, handler http.Handler) *http.Server {
	write := orDefault(cfg.HTTP.WriteTimeout, 30*time.Second)
	if floor := cfg.Delivery.Timeout + writeSlack; write < floor {
		write = floor
	}
	return &http.Server{
		Addr:              cfg.HTTP.ListenAddr,
		Handler:           handler,
		ReadTimeout:       orDefault(cfg.HTTP.ReadTimeout, 10*time.Second),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      write,
		IdleTimeout:       orDefault(cfg.HTTP.IdleTimeout, 120*time.Second),
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
