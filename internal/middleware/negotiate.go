package middleware

import (
	"mime"
	"net/http"

	"github.com/munnerz/goautoneg"
)

// PrefersJSON reports whether the client asks for a JSON response rather
// than an HTML page. fallback applies when the Accept header ranks
// neither explicitly. A JSON request body or an XMLHttpRequest marker
// turns the fallback on.
func PrefersJSON(r *http.Request, fallback bool) bool {
	if r.Header.Get("X-Requested-With") == "XMLHttpRequest" {
		fallback = true
	}
	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err == nil && ct == "application/json" {
		fallback = true
	}

	header := r.Header.Get("Accept")
	if header == "" {
		return fallback
	}

	jsonQ, htmlQ := -1.0, -1.0
	for _, clause := range goautoneg.ParseAccept(header) {
		if clause.Q <= 0 {
			continue
		}
		switch {
		case clause.Type == "application" && clause.SubType == "json":
			jsonQ = max(jsonQ, clause.Q)
		case clause.Type == "text" && clause.SubType == "html",
			clause.Type == "application" && clause.SubType == "xhtml+xml":
			htmlQ = max(htmlQ, clause.Q)
		}
	}

	if jsonQ == htmlQ {
		return fallback
	}
	return jsonQ > htmlQ
}
