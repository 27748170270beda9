package server

import (
	"context"
	"net/http"
	"time"
)

// liveHandler answers as long as the process is serving requests.
func (cfg Config) liveHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// readyHandler additionally pings the database. A nil DB (in-memory
// deployments and tests) is considered ready.
func (cfg Config) readyHandler(w http.ResponseWriter, r *http.Request) {
	if cfg.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := cfg.DB.PingContext(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
