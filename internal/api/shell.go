package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/finboard/internal/auth"
	"github.com/ashureev/finboard/internal/authclient"
	"github.com/ashureev/finboard/internal/domain"
	"github.com/ashureev/finboard/internal/shell"
)

// ShellHandler serves the shell state and the overlay forms as JSON.
type ShellHandler struct {
	auth   *auth.Service
	logger *slog.Logger
}

// NewShellHandler creates a new shell handler.
func NewShellHandler(authSvc *auth.Service, logger *slog.Logger) *ShellHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShellHandler{auth: authSvc, logger: logger}
}

// RegisterRoutes registers shell routes. It expects to be mounted under /api.
func (h *ShellHandler) RegisterRoutes(r chi.Router) {
	r.Get("/shell", h.GetShell)
	r.Get("/navigation", h.GetNavigation)
	r.Post("/navigate", h.Navigate)
	r.Post("/overlay", h.Overlay)
	r.Post("/login", h.Login)
	r.Post("/register", h.Register)
	r.Post("/logout", h.Logout)
}

type shellResponse struct {
	View   shell.View   `json:"view"`
	Result *auth.Result `json:"result,omitempty"`
}

// GetShell settles a due overlay close, otherwise re-resolves the session,
// and returns the current view.
func (h *ShellHandler) GetShell(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	if !ws.Settle(r.Context(), r.Cookies()) {
		ws.Refresh(r.Context(), r.Cookies())
	}
	JSON(w, http.StatusOK, shellResponse{View: ws.Snapshot()})
}

type navEntry struct {
	Kind     domain.NavKind `json:"kind"`
	Title    string         `json:"title,omitempty"`
	Path     string         `json:"path,omitempty"`
	Icon     string         `json:"icon,omitempty"`
	Active   bool           `json:"active,omitempty"`
	Children []navEntry     `json:"children,omitempty"`
}

func navEntries(items []domain.NavItem, prefix, current string) []navEntry {
	out := make([]navEntry, 0, len(items))
	for _, item := range items {
		e := navEntry{Kind: item.Kind, Title: item.Title, Icon: item.Icon}
		if item.Kind == domain.NavPage {
			e.Path = prefix + "/" + item.Segment
			e.Active = domain.Active(current, e.Path)
			e.Children = navEntries(item.Children, e.Path, current)
		}
		out = append(out, e)
	}
	return out
}

// GetNavigation returns the sidebar with the active route marked.
func (h *ShellHandler) GetNavigation(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{
		"items": navEntries(domain.Navigation, "", ws.Path()),
	})
}

// Navigate changes the active route.
func (h *ShellHandler) Navigate(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		Path string `json:"path"`
	}
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := ws.Navigate(req.Path); err != nil {
		Error(w, http.StatusNotFound, err.Error())
		return
	}
	JSON(w, http.StatusOK, shellResponse{View: ws.Snapshot()})
}

// Overlay opens, switches or closes the auth overlay.
func (h *ShellHandler) Overlay(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := domain.ParseOverlay(req.Action)
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := ws.Show(r.Context(), target, r.Cookies()); err != nil {
		h.logger.Debug("Overlay transition rejected", "workspace_id", ws.ID(), "from", ws.Overlay().String(), "to", target.String())
		Error(w, http.StatusConflict, err.Error())
		return
	}
	JSON(w, http.StatusOK, shellResponse{View: ws.Snapshot()})
}

// Login submits the login form.
func (h *ShellHandler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	form, err := auth.DecodeLoginForm(r)
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid login form")
		return
	}
	res := h.auth.Login(r.Context(), ws, form, r.Cookies())
	h.respond(w, ws, res)
}

// Register submits the registration form.
func (h *ShellHandler) Register(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	form, err := auth.DecodeRegisterForm(r)
	if errors.Is(err, auth.ErrImageTooLarge) {
		Error(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err != nil {
		Error(w, http.StatusBadRequest, "invalid registration form")
		return
	}
	res := h.auth.Register(r.Context(), ws, form, r.Cookies())
	h.respond(w, ws, res)
}

// Logout ends the session.
func (h *ShellHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	res := h.auth.Logout(r.Context(), ws, r.Cookies())
	h.respond(w, ws, res)
}

func (h *ShellHandler) respond(w http.ResponseWriter, ws *shell.Workspace, res auth.Result) {
	RelayCookies(w, res.Cookies)
	if _, _, ok := authclient.TokenCookies(res.Cookies); ok {
		h.logger.Debug("Relayed session cookies", "workspace_id", ws.ID(), "count", len(res.Cookies))
	}
	JSON(w, http.StatusOK, shellResponse{View: ws.Snapshot(), Result: &res})
}

func decodeJSON(r *http.Request, v interface{}) error {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
