package service

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"

	oplog "github.com/ethereum-optimism/optimism/op-service/log"

	"github.com/ethereum-optimism/infra/rpc-harness/logging"
)

// LevelController reads and changes the process log level by name.
type LevelController interface {
	SetLevel(name string) bool
	Level() slog.Level
}

type HealthzServer struct {
	log    log.Logger
	levels LevelController
	server *http.Server
}

// NewHealthzServer serves /healthz, and /loglevel when levels is non-nil.
func NewHealthzServer(logger log.Logger, levels LevelController) *HealthzServer {
	h := &HealthzServer{log: logger, levels: levels}
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	if levels != nil {
		hdlr.HandleFunc("/loglevel", h.HandleLogLevel)
	}
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	h.server = &http.Server{Handler: c.Handler(oplog.NewLoggingMiddleware(logger, hdlr))}
	return h
}

// Handler serves /healthz with permissive CORS and request logging.
func (h *HealthzServer) Handler() http.Handler {
	return h.server.Handler
}

func (h *HealthzServer) Serve(l net.Listener) error {
	return h.server.Serve(l)
}

func (h *HealthzServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	h.log.Trace("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

// HandleLogLevel returns the current level on GET and sets it from the
// "level" query parameter on PUT or POST.
func (h *HealthzServer) HandleLogLevel(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut, http.MethodPost:
		name := r.URL.Query().Get("level")
		if !h.levels.SetLevel(name) {
			http.Error(w, fmt.Sprintf("invalid log level %q", name), http.StatusBadRequest)
			return
		}
		h.log.Info("Log level changed", "level", logging.LevelName(h.levels.Level()))
	default:
		w.Header().Set("Allow", "GET, PUT, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Write([]byte(logging.LevelName(h.levels.Level()))) //nolint:errcheck
}
