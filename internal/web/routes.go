package web

import (
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/kozaktomas/face-registry/internal/database"
	"github.com/kozaktomas/face-registry/internal/web/handlers"
	"github.com/kozaktomas/face-registry/internal/web/static"
)

func (s *Server) setupRoutes() {
	// Create handlers
	usersHandler := handlers.NewUsersHandler(s.store, s.events, s.logger)
	eventsHandler := handlers.NewEventsHandler(s.events, s.store, s.logger)
	recognizeHandler := handlers.NewRecognizeHandler(s.recognizer, s.logger)
	uploadHandler := handlers.NewUploadHandler(s.config.Web.UploadDir, s.logger)
	configHandler := handlers.NewConfigHandler(s.config, database.Describe(s.store.Storage()))

	s.router.Route("/api", func(r chi.Router) {
		// Event streams stay open until the client leaves or the server shuts down.
		r.Get("/events", eventsHandler.Stream)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(requestTimeout))

			r.Get("/health", handlers.HealthCheck)
			r.Get("/config", configHandler.Get)

			// Users
			r.Post("/register", usersHandler.Register)
			r.Get("/users", usersHandler.List)
			r.Get("/users/{id}", usersHandler.Get)
			r.Delete("/users/{id}", usersHandler.Delete)

			// Recognition
			r.Post("/recognize", recognizeHandler.Recognize)

			// Uploads
			r.Post("/uploads", uploadHandler.Upload)
		})
	})

	s.router.Group(func(r chi.Router) {
		r.Use(chiMiddleware.Timeout(requestTimeout))

		// Files saved by the upload endpoint
		uploads := http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.config.Web.UploadDir)))
		r.Get("/uploads/*", uploads.ServeHTTP)

		// Serve static files for frontend (SPA)
		r.Get("/*", s.serveSPA)
	})
}

// serveSPA serves the single-page application. Unknown non-asset paths get
// index.html so client-side routes survive a reload.
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	files := static.Files()

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if name == "" {
		name = "index.html"
	}

	if info, err := fs.Stat(files, name); err == nil && !info.IsDir() {
		// Add cache headers for static assets
		if strings.HasPrefix(name, "assets/") {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
		http.ServeFileFS(w, r, files, name)
		return
	}

	if strings.HasPrefix(name, "assets/") {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, files, "index.html")
}
