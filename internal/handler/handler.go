// Package handler provides the HTTP handlers of the site: public pages,
// login, the admin back office, the contact form and the change feed.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/media"
	"github.com/vyrodovalexey/safehome-site/internal/middleware"
	"github.com/vyrodovalexey/safehome-site/internal/model"
	"github.com/vyrodovalexey/safehome-site/internal/store"
)

// Version is the application version.
const Version = "1.0.0"

// AdminPath is where browsers land after a successful admin action.
const AdminPath = "/admin"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// errBadRequest marks request bodies that could not be parsed.
var errBadRequest = errors.New("malformed request body")

// responder writes JSON and error responses and owns the error mapping
// shared by every handler.
type responder struct {
	logger *zap.Logger
}

// writeJSON writes a JSON response with the given status code.
func (h responder) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response in the format the client negotiated.
func (h responder) writeError(w http.ResponseWriter, r *http.Request, jsonDefault bool, status int, message string) {
	if middleware.PrefersJSON(r, jsonDefault) {
		h.writeJSON(w, status, model.ErrorResponse{
			Code:    status,
			Message: message,
		})
		return
	}
	http.Error(w, message, status)
}

// fail maps err to a status and a client-safe message. Unexpected errors
// are logged with their detail and reported generically.
func (h responder) fail(w http.ResponseWriter, r *http.Request, jsonDefault bool, err error, operation string) {
	status, message := classifyError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("operation", operation),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.RequestIDFromContext(r.Context())),
			zap.Error(err),
		)
	} else {
		h.logger.Info("request rejected",
			zap.String("operation", operation),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	h.writeError(w, r, jsonDefault, status, message)
}

func classifyError(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	var verr *model.ValidationError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, errBadRequest.Error()
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "record not found"
	case errors.Is(err, store.ErrInvalidID):
		return http.StatusBadRequest, "invalid record ID"
	case errors.Is(err, store.ErrDuplicateID):
		return http.StatusConflict, "record ID already exists"
	case errors.Is(err, media.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType, "unsupported media type"
	case errors.Is(err, media.ErrPayloadTooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "media exceeds the size limit"
	case errors.Is(err, media.ErrNoMedia):
		return http.StatusBadRequest, "a media file or URL is required"
	case errors.Is(err, media.ErrInvalidURL):
		return http.StatusBadRequest, "invalid media URL"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
