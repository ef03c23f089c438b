package web

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-login/internal/web/handlers"
	"github.com/kozaktomas/face-login/internal/web/middleware"
	"github.com/kozaktomas/face-login/internal/web/static"
)

// requestTimeout bounds a single register or login, including the extractor round-trip.
const requestTimeout = time.Minute

func (s *Server) setupRoutes() {
	authHandler := handlers.NewAuthHandler(s.services.Enroller, s.services.Authenticator, s.services.Extractor)
	identitiesHandler := handlers.NewIdentitiesHandler(s.services.Identities, s.services.Index)
	streamHandler := handlers.NewStreamHandler(authHandler, middleware.CheckOrigin())

	// Health check
	s.router.Get("/api/v1/health", handlers.HealthCheck)

	// Long-lived websocket, outside the request timeout
	s.router.Get("/api/v1/login/stream", streamHandler.Login)

	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		r.Route("/api/v1", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Get("/login-history", authHandler.LoginHistory)

			r.Get("/identities", identitiesHandler.List)
			r.Get("/identities/{name}/similar", identitiesHandler.Similar)
		})

		// Un-prefixed routes kept for existing clients
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/login-history", authHandler.LoginHistory)
	})

	// Capture UI
	s.router.Get("/*", s.serveUI)
}

// serveUI serves the embedded capture page and its assets
func (s *Server) serveUI(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	path := r.URL.Path
	if path == "/" {
		path = "/index.html"
	}

	f, err := fs.Open(path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}

	contentType := "application/octet-stream"
	switch {
	case strings.HasSuffix(path, ".html"):
		contentType = "text/html; charset=utf-8"
	case strings.HasSuffix(path, ".css"):
		contentType = "text/css; charset=utf-8"
	case strings.HasSuffix(path, ".js"):
		contentType = "application/javascript; charset=utf-8"
	case strings.HasSuffix(path, ".svg"):
		contentType = "image/svg+xml"
	case strings.HasSuffix(path, ".ico"):
		contentType = "image/x-icon"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, f)
}
