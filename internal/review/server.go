package review

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/zombor/invoice-scanner/internal/workflow"
)

// Server exposes one workflow controller over JSON
type Server struct {
	controller *workflow.Controller
	basicAuth  BasicAuth
	// ctx bounds background submissions; it outlives any single request
	ctx context.Context
	mux *http.ServeMux
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// NewServer creates a new Server with default mux
func NewServer(ctx context.Context, controller *workflow.Controller, basicAuth BasicAuth) *Server {
	return NewServerWithMux(ctx, controller, basicAuth, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing
func NewServerWithMux(ctx context.Context, controller *workflow.Controller, basicAuth BasicAuth, mux *http.ServeMux) *Server {
	s := &Server{
		controller: controller,
		basicAuth:  basicAuth,
		ctx:        ctx,
		mux:        mux,
	}
	s.registerRoutes()
	return s
}

// authenticate checks basic auth credentials
func (s *Server) authenticate(r *http.Request) bool {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return true // No auth required if not configured
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(username), []byte(s.basicAuth.Username)) == 1 &&
		subtle.ConstantTimeCompare([]byte(password), []byte(s.basicAuth.Password)) == 1
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.authenticate(r) {
			w.Header().Set("WWW-Authenticate", `Basic realm="Invoice Review"`)
			writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("PUT /api/workflow/form/line-items/{index}/{field}", s.requireAuth(s.handleEditLineItem))
	s.mux.HandleFunc("DELETE /api/workflow/form/line-items/{index}", s.requireAuth(s.handleRemoveLineItem))
	s.mux.HandleFunc("POST /api/workflow/form/line-items", s.requireAuth(s.handleAddLineItem))
	s.mux.HandleFunc("PUT /api/workflow/form/fields/{name}", s.requireAuth(s.handleEditField))

	s.mux.HandleFunc("GET /api/workflow/export", s.requireAuth(s.handleExport))
	s.mux.HandleFunc("POST /api/workflow/file", s.requireAuth(s.handleSelectFile))
	s.mux.HandleFunc("POST /api/workflow/submit", s.requireAuth(s.handleSubmit))
	s.mux.HandleFunc("POST /api/workflow/reset", s.requireAuth(s.handleReset))
	s.mux.HandleFunc("GET /api/workflow", s.requireAuth(s.handleState))
}

// Start starts the HTTP server
func (s *Server) Start(addr string) error {
	slog.Info("Starting review server", "address", addr)
	return http.ListenAndServe(addr, s.mux)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
