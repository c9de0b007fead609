// Package api provides the JSON HTTP handlers of the finboard shell.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ashureev/finboard/internal/identity"
	"github.com/ashureev/finboard/internal/shell"
)

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RelayCookies forwards the backend's Set-Cookie values unchanged.
func RelayCookies(w http.ResponseWriter, cookies []*http.Cookie) {
	for _, c := range cookies {
		if c != nil && c.Name != "" {
			http.SetCookie(w, c)
		}
	}
}

// workspace returns the request's workspace, writing a 500 when the identity
// middleware did not run.
func workspace(w http.ResponseWriter, r *http.Request) (*shell.Workspace, bool) {
	ws, ok := identity.WorkspaceFromContext(r.Context())
	if !ok {
		slog.Error("Workspace missing from request context", "path", r.URL.Path)
		Error(w, http.StatusInternalServerError, "workspace not found")
		return nil, false
	}
	return ws, true
}
