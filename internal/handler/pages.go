package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/auth"
	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/middleware"
	"github.com/vyrodovalexey/safehome-site/internal/model"
	"github.com/vyrodovalexey/safehome-site/internal/session"
	"github.com/vyrodovalexey/safehome-site/internal/store"
	"github.com/vyrodovalexey/safehome-site/internal/view"
)

// invalidLoginMessage is shown for every failed login.
const invalidLoginMessage = "Usuario o contraseña incorrectos"

// PageHandler serves the rendered pages and the login flow.
type PageHandler struct {
	responder
	store    store.Store
	renderer *view.Renderer
	sessions *session.Manager
}

// NewPageHandler creates a new PageHandler instance.
func NewPageHandler(s store.Store, renderer *view.Renderer, sessions *session.Manager, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		responder: responder{logger: logger},
		store:     s,
		renderer:  renderer,
		sessions:  sessions,
	}
}

// RegisterRoutes registers the public pages with the router.
func (h *PageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Landing).Methods(http.MethodGet)
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/login", h.LoginForm).Methods(http.MethodGet)
	router.HandleFunc("/login", h.Login).Methods(http.MethodPost)
	router.HandleFunc("/logout", h.Logout).Methods(http.MethodGet, http.MethodPost)
}

// RegisterAdminRoutes registers the pages that require a login.
func (h *PageHandler) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc(AdminPath, h.Dashboard).Methods(http.MethodGet)
}

// HealthCheck handles GET /health requests.
func (h *PageHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "healthy",
		Version: Version,
	})
}

// Landing handles GET /.
func (h *PageHandler) Landing(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalog(r.Context())
	if err != nil {
		h.fail(w, r, false, err, "render landing")
		return
	}
	h.html(w, http.StatusOK, func(buf *strings.Builder) error {
		return h.renderer.Landing(buf, cat)
	})
}

// LoginForm handles GET /login. Logged-in administrators go straight to
// the dashboard.
func (h *PageHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.sessions.Identity(r); ok {
		http.Redirect(w, r, AdminPath, http.StatusFound)
		return
	}
	h.html(w, http.StatusOK, func(buf *strings.Builder) error {
		return h.renderer.Login(buf, "", "")
	})
}

// Login handles POST /login.
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	wantsJSON := middleware.PrefersJSON(r, false)

	in, err := parseInput(w, r, 0)
	if err != nil {
		h.fail(w, r, false, err, "login")
		return
	}
	username := strings.TrimSpace(in.values["username"])

	err = h.sessions.Login(w, r, username, in.values["password"])
	switch {
	case err == nil:
		if wantsJSON {
			h.writeJSON(w, http.StatusOK, model.APIResponse[any]{Success: true})
			return
		}
		http.Redirect(w, r, AdminPath, http.StatusFound)
	case errors.Is(err, auth.ErrInvalidCredentials):
		if wantsJSON {
			h.writeJSON(w, http.StatusUnauthorized, model.NewErrorResponse(invalidLoginMessage))
			return
		}
		h.html(w, http.StatusUnauthorized, func(buf *strings.Builder) error {
			return h.renderer.Login(buf, username, invalidLoginMessage)
		})
	default:
		h.fail(w, r, false, err, "login")
	}
}

// Logout handles GET /logout. It always ends at the login page.
func (h *PageHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(w, r); err != nil {
		h.logger.Error("failed to end session", zap.Error(err))
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
}

// Dashboard handles GET /admin.
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	cat, err := h.catalog(r.Context())
	if err != nil {
		h.fail(w, r, false, err, "render dashboard")
		return
	}

	user := ""
	if info, ok := auth.FromContext(r.Context()); ok {
		user = info.Subject
	}
	accept := strings.Join(media.AllowedTypes(), ",")

	h.html(w, http.StatusOK, func(buf *strings.Builder) error {
		return h.renderer.Admin(buf, user, cat, accept)
	})
}

// catalog loads every collection for rendering.
func (h *PageHandler) catalog(ctx context.Context) (model.Catalog, error) {
	var cat model.Catalog
	for _, c := range model.Collections {
		records, err := h.store.List(ctx, c)
		if err != nil {
			return model.Catalog{}, err
		}
		for _, rec := range records {
			cat.Add(c, rec)
		}
	}
	return cat, nil
}

// html renders a page and writes it only when rendering succeeded.
func (h *PageHandler) html(w http.ResponseWriter, status int, render func(*strings.Builder) error) {
	var buf strings.Builder
	if err := render(&buf); err != nil {
		h.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(buf.String())); err != nil {
		h.logger.Debug("failed to write page", zap.Error(err))
	}
}
