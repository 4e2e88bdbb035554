package adapthttp

import (
	"log/slog"
	"net/http"
	"time"

	"parkgate/internal/app"
)

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	auth      *app.AuthService
	lifecycle *app.LifecycleService
	reports   *app.ReportService
	oidc      OIDCConfig
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Server wired to the given application services.
func New(auth *app.AuthService, lifecycle *app.LifecycleService, reports *app.ReportService, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		auth:      auth,
		lifecycle: lifecycle,
		reports:   reports,
		logger:    logger.With("component", "http"),
		now:       time.Now,
	}
}

// WithOIDC enables single sign-on for human accounts.
func (s *Server) WithOIDC(cfg OIDCConfig) *Server {
	s.oidc = cfg
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	health := func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
	api.HandleFunc("GET /alive", health)
	api.HandleFunc("GET /health", health)

	api.HandleFunc("POST /auth/login", s.handleLogin)
	api.HandleFunc("POST /auth/logout", s.handleLogout)
	api.HandleFunc("GET /auth/config", s.handleConfig)
	api.HandleFunc("GET /auth/sso/login", s.handleSSOLogin)
	api.HandleFunc("GET /auth/sso/callback", s.handleSSOCallback)

	// Recognition clients carry their credential in the body.
	api.HandleFunc("POST /opencv/process", s.handleProcess)

	api.Handle("GET /vehicles", s.requireAuth(http.HandlerFunc(s.handleListPlates)))
	api.Handle("GET /vehicles/inside", s.requireAuth(http.HandlerFunc(s.handleListInside)))
	api.Handle("GET /vehicles_inside", s.requireAuth(http.HandlerFunc(s.handleListInside)))
	api.Handle("GET /vehicles/{plate}", s.requireAuth(http.HandlerFunc(s.handleLookup)))
	api.Handle("GET /vehicles/{plate}/duration", s.requireAuth(http.HandlerFunc(s.handleDuration)))
	api.Handle("POST /admin/vehicle", s.requireAuth(http.HandlerFunc(s.handleAdminVehicle)))

	root := http.NewServeMux()
	root.Handle("/api/", http.StripPrefix("/api", api))

	return s.loggingMiddleware(withNoCache(root))
}
