// Package identity binds each browser session to a workspace through a signed
// cookie.
package identity

import (
	"context"
	"encoding/gob"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"

	"github.com/ashureev/finboard/internal/shell"
)

const (
	// CookieName is the signed cookie holding the workspace id, theme and flashes.
	CookieName = "finboard_ws"

	workspaceValue = "workspace_id"
	themeValue     = "theme"
)

type contextKey int

const workspaceKey contextKey = iota

// Flash is a one-shot notice carried across a redirect.
type Flash struct {
	Kind string
	Text string
}

func init() {
	gob.Register(Flash{})
}

// NewStore creates the cookie store. The cookie has no Max-Age so it lives as
// long as the browser session.
func NewStore(secret string, isDev bool) sessions.Store {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   !isDev,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

// Manager resolves the workspace of every request.
type Manager struct {
	store    sessions.Store
	registry *shell.Registry
	logger   *slog.Logger
}

// NewManager creates a Manager.
func NewManager(store sessions.Store, registry *shell.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: store, registry: registry, logger: logger}
}

// WorkspaceFromContext returns the workspace injected by Middleware.
func WorkspaceFromContext(ctx context.Context) (*shell.Workspace, bool) {
	ws, ok := ctx.Value(workspaceKey).(*shell.Workspace)
	return ws, ok
}

// WithWorkspace returns a copy of ctx carrying ws.
func WithWorkspace(ctx context.Context, ws *shell.Workspace) context.Context {
	return context.WithValue(ctx, workspaceKey, ws)
}

// Middleware loads or creates the workspace for the request and stores it in
// the context.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session, err := m.store.Get(r, CookieName)
		if err != nil {
			// A tampered or stale cookie yields a fresh session.
			m.logger.Debug("Discarding invalid workspace cookie", "error", err)
		}

		id, _ := session.Values[workspaceValue].(string)
		if _, perr := uuid.Parse(id); perr != nil {
			id = uuid.NewString()
			session.Values[workspaceValue] = id
			if err := session.Save(r, w); err != nil {
				m.logger.Error("Failed to save workspace cookie", "error", err)
				http.Error(w, `{"error":"failed to establish workspace"}`, http.StatusInternalServerError)
				return
			}
		}

		ws, created := m.registry.GetOrCreate(id)
		if created {
			if theme, ok := session.Values[themeValue].(string); ok {
				ws.SetTheme(shell.ParseTheme(theme))
			}
			m.logger.Debug("Workspace created", "workspace_id", id)
		}

		next.ServeHTTP(w, r.WithContext(WithWorkspace(r.Context(), ws)))
	})
}

// SaveTheme persists the theme in the cookie so a recreated workspace keeps it.
func (m *Manager) SaveTheme(w http.ResponseWriter, r *http.Request, theme shell.Theme) error {
	session, _ := m.store.Get(r, CookieName)
	session.Values[themeValue] = string(theme)
	return session.Save(r, w)
}

// AddFlash queues a notice for the next page render.
func (m *Manager) AddFlash(w http.ResponseWriter, r *http.Request, f Flash) error {
	session, _ := m.store.Get(r, CookieName)
	session.AddFlash(f)
	return session.Save(r, w)
}

// Flashes pops the queued notices.
func (m *Manager) Flashes(w http.ResponseWriter, r *http.Request) []Flash {
	session, _ := m.store.Get(r, CookieName)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	if err := session.Save(r, w); err != nil {
		m.logger.Warn("Failed to clear flashes", "error", err)
	}
	out := make([]Flash, 0, len(raw))
	for _, v := range raw {
		if f, ok := v.(Flash); ok {
			out = append(out, f)
		}
	}
	return out
}
