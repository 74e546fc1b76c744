package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/safehome-site/internal/auth"
)

// LoginPath is where anonymous browser requests are sent.
const LoginPath = "/login"

// SessionRenewer extends the lifetime of the session carried by a request.
type SessionRenewer interface {
	Touch(w http.ResponseWriter, r *http.Request) error
}

// RequireAdmin returns a middleware that admits only authenticated
// administrators. Anonymous requests are redirected to the login page, or
// answered with 401 when the client negotiates JSON. Requests under one of
// jsonPrefixes are treated as JSON clients unless they ask for HTML.
// Sessions authenticated by cookie are renewed through renewer.
func RequireAdmin(
	authenticator auth.Authenticator,
	renewer SessionRenewer,
	logger *zap.Logger,
	jsonPrefixes ...string,
) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			info, err := authenticator.Authenticate(r)
			if err != nil {
				logger.Info("admin access denied",
					zap.String("path", r.URL.Path),
					zap.String("method", r.Method),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				if isWebSocketUpgrade(r) || PrefersJSON(r, hasAnyPrefix(r.URL.Path, jsonPrefixes)) {
					writeAuthError(w, err)
					return
				}
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			if info.Method == auth.AuthMethodSession && renewer != nil {
				if err := renewer.Touch(w, r); err != nil {
					logger.Warn("failed to renew session", zap.Error(err))
				}
			}

			ctx := auth.WithAuthInfo(r.Context(), info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func hasAnyPrefix(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// isWebSocketUpgrade checks whether the request is a WebSocket
// upgrade request.
func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// authErrorResponse is the JSON error response for auth failures.
type authErrorResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// writeAuthError writes a 401 response. Scripted clients may retry with
// HTTP Basic credentials.
func writeAuthError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Basic realm="safehome-admin"`)
	w.WriteHeader(http.StatusUnauthorized)

	message := "authentication required"
	if errors.Is(err, auth.ErrInvalidCredentials) {
		message = auth.ErrInvalidCredentials.Error()
	}
	_ = json.NewEncoder(w).Encode(authErrorResponse{
		Code:    http.StatusUnauthorized,
		Message: message,
	})
}
