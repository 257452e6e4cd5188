package diag

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SubscriptionSnapshot is the diagnostic view of one live entity, kept
// independent of the root package's Subscription type so this package
// never needs to import it (the root package imports diag, not the other
// way around).
type SubscriptionSnapshot struct {
	Channel string `json:"channel"`
	State   string `json:"state"`
	Offset  uint64 `json:"offset"`
	Epoch   string `json:"epoch"`
}

// StatusProvider is the minimal surface the diagnostics server needs from
// a running Client: its connection state and a snapshot of its registry.
type StatusProvider interface {
	ConnectionState() string
	SubscriptionSnapshot() []SubscriptionSnapshot
}

// Config configures the diagnostics server.
type Config struct {
	Addr           string
	Registry       *prometheus.Registry // nil disables the /metrics route
	AllowedOrigins []string             // empty allows all origins
}

// Server is an optional HTTP server exposing /healthz, /metrics, and
// /debug/subscriptions.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds a diagnostics server. Call ListenAndServe (typically in
// its own goroutine) to start it, and Shutdown to stop it.
func NewServer(cfg Config, status StatusProvider, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":           "ok",
			"connection_state": status.ConnectionState(),
			"timestamp":        time.Now().UTC().Format(time.RFC3339),
		})
	})

	mux.HandleFunc("/debug/subscriptions", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"subscriptions": status.SubscriptionSnapshot(),
		})
	})

	if cfg.Registry != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	}

	var handler http.Handler = mux
	handler = CORS(cfg.AllowedOrigins)(handler)
	handler = Logging(logger)(handler)

	return &Server{
		httpServer: &http.Server{Addr: cfg.Addr, Handler: handler},
		logger:     logger,
	}
}

// ListenAndServe starts the server and blocks until it stops. It returns
// http.ErrServerClosed on a clean Shutdown, matching net/http's contract.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
