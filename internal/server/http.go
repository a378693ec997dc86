package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	jsonwriter "github.com/dgellow/saml-front/internal/json"
	"github.com/dgellow/saml-front/internal/log"
)

// HTTPServer owns the listening side of saml-front
type HTTPServer struct {
	server *http.Server
}

// NewHTTPServer creates an HTTP server for handler on addr
func NewHTTPServer(handler http.Handler, addr string) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Addr returns the configured listen address
func (h *HTTPServer) Addr() string {
	return h.server.Addr
}

// Handler returns the root handler
func (h *HTTPServer) Handler() http.Handler {
	return h.server.Handler
}

// Start listens on the configured address and serves until Stop
func (h *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", h.server.Addr)
	if err != nil {
		return err
	}
	return h.Serve(ln)
}

// Serve serves on an existing listener until Stop
func (h *HTTPServer) Serve(ln net.Listener) error {
	log.LogInfoWithFields("http", "HTTP server starting", map[string]any{
		"addr": ln.Addr().String(),
	})

	if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop drains in-flight requests until ctx expires
func (h *HTTPServer) Stop(ctx context.Context) error {
	log.LogInfoWithFields("http", "HTTP server stopping", map[string]any{
		"addr": h.server.Addr,
	})

	if err := h.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	log.LogInfoWithFields("http", "HTTP server stopped", nil)
	return nil
}

// HealthHandler reports liveness
type HealthHandler struct {
	name string
}

// NewHealthHandler creates a health handler for the named service
func NewHealthHandler(name string) *HealthHandler {
	return &HealthHandler{name: name}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		jsonwriter.WriteMethodNotAllowed(w)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	_ = jsonwriter.Write(w, map[string]string{
		"status":  "ok",
		"service": h.name,
	})
}
