// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/auth"
	"github.com/vyrodovalexey/safehome-site/internal/config"
	"github.com/vyrodovalexey/safehome-site/internal/handler"
	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/middleware"
	"github.com/vyrodovalexey/safehome-site/internal/session"
	"github.com/vyrodovalexey/safehome-site/internal/store"
	"github.com/vyrodovalexey/safehome-site/internal/view"
)

// Deps are the components the server routes requests to.
type Deps struct {
	Store       store.Store
	Ingestor    *media.Ingestor
	Renderer    *view.Renderer
	Sessions    *session.Manager
	Credentials *auth.Credentials
	Contact     handler.ContactSender

	// Disk is set when media is stored locally; its directory is served
	// under /uploads/.
	Disk *media.DiskStorage

	// Purger is optional; it runs for the lifetime of the server.
	Purger *session.Purger
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	config     *config.Config
	logger     *zap.Logger
	hub        *handler.EventHub
	purger     *session.Purger
}

// New creates a new Server instance.
func New(cfg *config.Config, logger *zap.Logger, deps Deps) *Server {
	router := mux.NewRouter()

	s := &Server{
		router: router,
		config: cfg,
		logger: logger,
		purger: deps.Purger,
	}

	s.setupMiddleware()
	s.setupRoutes(deps)
	s.setupHTTPServer()

	return s
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware() {
	// Apply middleware in order (first applied = outermost)
	s.router.Use(mux.MiddlewareFunc(middleware.Recovery(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.RequestID()))

	if s.config.MetricsEnabled {
		s.router.Use(mux.MiddlewareFunc(middleware.Metrics()))
	}

	s.router.Use(mux.MiddlewareFunc(middleware.Logging(s.logger)))
	s.router.Use(mux.MiddlewareFunc(middleware.SecurityHeaders()))

	if len(s.config.CORSOrigins) > 0 {
		allowedMethods := []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		}
		allowedHeaders := []string{
			"Content-Type",
			"Authorization",
			middleware.RequestIDHeader,
		}
		s.router.Use(mux.MiddlewareFunc(middleware.CORS(s.config.CORSOrigins, allowedMethods, allowedHeaders)))
	}
}

// setupRoutes configures the public routes and the admin area.
func (s *Server) setupRoutes(deps Deps) {
	pages := handler.NewPageHandler(deps.Store, deps.Renderer, deps.Sessions, s.logger)
	pages.RegisterRoutes(s.router)

	handler.NewContactHandler(deps.Contact, s.logger).RegisterRoutes(s.router)

	if s.config.MetricsEnabled {
		s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}

	if deps.Disk != nil {
		files := http.StripPrefix(media.DefaultURLPrefix, noDirListing(http.FileServer(http.Dir(deps.Disk.Dir()))))
		s.router.PathPrefix(media.DefaultURLPrefix).Handler(files).Methods(http.MethodGet, http.MethodHead)
	}

	if len(s.config.CORSOrigins) > 0 {
		// Preflights are answered by the CORS middleware.
		s.router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})
	}

	s.hub = handler.NewEventHub(s.logger)
	admin := handler.NewAdminHandler(deps.Store, deps.Ingestor, s.hub, s.logger)

	if s.config.PublicListEndpoints {
		admin.RegisterListRoutes(s.router)
	}

	gate := middleware.RequireAdmin(
		auth.NewMultiAuthenticator(deps.Sessions, auth.NewBasicAuthenticator(deps.Credentials)),
		deps.Sessions,
		s.logger,
		append(handler.JSONPrefixes(), handler.EventsPath)...,
	)

	protected := s.router.NewRoute().Subrouter()
	protected.Use(mux.MiddlewareFunc(middleware.NoStore()))
	protected.Use(mux.MiddlewareFunc(gate))

	pages.RegisterAdminRoutes(protected)
	admin.RegisterRoutes(protected)
	if !s.config.PublicListEndpoints {
		admin.RegisterListRoutes(protected)
	}
	s.hub.RegisterRoutes(protected)
}

// setupHTTPServer configures the HTTP server. Write and read timeouts
// leave room for media uploads.
func (s *Server) setupHTTPServer() {
	s.httpServer = &http.Server{
		Addr:              s.config.Address(),
		Handler:           s.router,
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server",
		zap.String("address", s.config.Address()),
		zap.Bool("metrics_enabled", s.config.MetricsEnabled),
		zap.String("store_backend", s.config.StoreBackend),
		zap.String("media_backend", s.config.MediaBackend),
		zap.Bool("public_list_endpoints", s.config.PublicListEndpoints),
	)

	if s.purger != nil {
		s.purger.Start()
	}

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen and serve: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")

	// Close all WebSocket connections first
	if s.hub != nil {
		s.hub.CloseAllConnections()
	}

	if s.purger != nil {
		s.purger.Stop()
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server shutdown complete")
	return nil
}

// Router returns the server's router for testing purposes.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the change feed.
func (s *Server) Hub() *handler.EventHub {
	return s.hub
}

// noDirListing answers 404 for directory paths.
func noDirListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
