// Package ui serves the server-rendered dashboard pages and their form posts.
package ui

import (
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/ashureev/finboard/internal/api"
	"github.com/ashureev/finboard/internal/auth"
	"github.com/ashureev/finboard/internal/chat"
	"github.com/ashureev/finboard/internal/domain"
	"github.com/ashureev/finboard/internal/identity"
	"github.com/ashureev/finboard/internal/shell"
)

// Limiter throttles chat sends per workspace.
type Limiter interface {
	Allow(key string) bool
}

// Handler serves the dashboard pages.
type Handler struct {
	auth    *auth.Service
	ids     *identity.Manager
	limiter Limiter
	tmpl    *template.Template
	logger  *slog.Logger
}

// NewHandler creates a new page handler. limiter may be nil.
func NewHandler(authSvc *auth.Service, ids *identity.Manager, limiter Limiter, tmpl *template.Template, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{auth: authSvc, ids: ids, limiter: limiter, tmpl: tmpl, logger: logger}
}

// RegisterRoutes registers the page routes and form posts.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Root)
	r.Post("/overlay/{action}", h.Overlay)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/register", h.Register)
	r.Post("/auth/logout", h.Logout)
	r.Post("/chat/send", h.SendChat)
	r.Post("/theme", h.ToggleTheme)
	r.Get("/*", h.Page)
}

type navLink struct {
	Kind     domain.NavKind
	Title    string
	Path     string
	Icon     string
	Active   bool
	Children []navLink
}

func navLinks(items []domain.NavItem, prefix, current string) []navLink {
	out := make([]navLink, 0, len(items))
	for _, item := range items {
		l := navLink{Kind: item.Kind, Title: item.Title, Icon: item.Icon}
		if item.Kind == domain.NavPage {
			l.Path = prefix + "/" + item.Segment
			l.Active = domain.Active(current, l.Path)
			l.Children = navLinks(item.Children, l.Path, current)
		}
		out = append(out, l)
	}
	return out
}

type chatData struct {
	Messages []chat.RenderedMessage
	Loading  bool
	Error    string
}

func newChatData(s chat.Snapshot) chatData {
	return chatData{Messages: chat.RenderMessages(s.Messages), Loading: s.Loading, Error: s.Error}
}

type pageData struct {
	View    shell.View
	Nav     []navLink
	Chat    chatData
	Flashes []identity.Flash
	// Email refills the login form after a failed attempt.
	Email string
	// RefreshAfter is the meta refresh delay, in seconds, of a pending close.
	RefreshAfter int
}

// Root redirects to the default route.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, domain.DefaultPath, http.StatusFound)
}

// Page renders a shell route. /login and /register keep the current route
// and open the matching overlay over it.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	path := domain.NormalizePath(r.URL.Path)
	if !domain.KnownPath(path) {
		h.notFound(w, r, ws, path)
		return
	}

	switch path {
	case "/login":
		h.openOverlay(r, ws, domain.OverlayLogin)
	case "/register":
		h.openOverlay(r, ws, domain.OverlayRegister)
	default:
		if err := ws.Navigate(path); err != nil {
			h.notFound(w, r, ws, path)
			return
		}
	}
	h.render(w, r, ws)
}

func (h *Handler) openOverlay(r *http.Request, ws *shell.Workspace, target domain.Overlay) {
	if ws.Overlay() == target {
		return
	}
	if !ws.Overlay().IsOpen() {
		if err := ws.OpenLogin(); err != nil {
			h.logger.Debug("Could not open overlay", "workspace_id", ws.ID(), "error", err)
			return
		}
	}
	if err := ws.Show(r.Context(), target, r.Cookies()); err != nil {
		h.logger.Debug("Could not switch overlay", "workspace_id", ws.ID(), "error", err)
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, ws *shell.Workspace) {
	if !ws.Settle(r.Context(), r.Cookies()) {
		ws.Refresh(r.Context(), r.Cookies())
	}
	v := ws.Snapshot()

	data := pageData{
		View:    v,
		Nav:     navLinks(domain.Navigation, "", v.Path),
		Chat:    newChatData(ws.Chat().Snapshot()),
		Flashes: h.ids.Flashes(w, r),
		Email:   r.URL.Query().Get("email"),
	}
	if v.ClosePending {
		data.RefreshAfter = max(1, int(math.Ceil(v.CloseIn.Seconds())))
	}
	h.serve(w, r, "page", data, http.StatusOK)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request, ws *shell.Workspace, path string) {
	h.serve(w, r, "notfound", struct {
		Path  string
		Theme shell.Theme
	}{Path: path, Theme: ws.Theme()}, http.StatusNotFound)
}

func (h *Handler) serve(w http.ResponseWriter, r *http.Request, name string, data interface{}, status int) {
	t := h.tmpl.Lookup(name)
	if t == nil {
		h.logger.Error("Template not found", "template", name)
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}
	templ.Handler(templ.FromGoHTML(t, data), templ.WithStatus(status)).ServeHTTP(w, r)
}

// Overlay opens, switches or closes the auth overlay.
func (h *Handler) Overlay(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	target, err := domain.ParseOverlay(chi.URLParam(r, "action"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := ws.Show(r.Context(), target, r.Cookies()); err != nil {
		h.logger.Debug("Overlay transition rejected", "workspace_id", ws.ID(), "to", target.String(), "error", err)
	}
	h.back(w, r, ws)
}

// Login submits the login overlay.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	form, err := auth.DecodeLoginForm(r)
	if err != nil {
		h.flash(w, r, auth.Notice{Kind: auth.NoticeError, Text: auth.MsgLoginFailed})
		h.back(w, r, ws)
		return
	}
	res := h.auth.Login(r.Context(), ws, form, r.Cookies())
	api.RelayCookies(w, res.Cookies)
	h.flash(w, r, res.Notice)
	if !res.OK && form.Email != "" {
		http.Redirect(w, r, ws.Path()+"?email="+url.QueryEscape(form.Email), http.StatusSeeOther)
		return
	}
	h.back(w, r, ws)
}

// Register submits the register overlay.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	form, err := auth.DecodeRegisterForm(r)
	if err != nil {
		text := "Registration failed. Please try again."
		if errors.Is(err, auth.ErrImageTooLarge) {
			text = "Profile image must be 5 MiB or smaller."
		}
		h.flash(w, r, auth.Notice{Kind: auth.NoticeError, Text: text})
		h.back(w, r, ws)
		return
	}
	res := h.auth.Register(r.Context(), ws, form, r.Cookies())
	api.RelayCookies(w, res.Cookies)
	h.flash(w, r, res.Notice)
	h.back(w, r, ws)
}

// Logout ends the session.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	res := h.auth.Logout(r.Context(), ws, r.Cookies())
	api.RelayCookies(w, res.Cookies)
	h.back(w, r, ws)
}

// SendChat posts a prompt from the chat form. htmx requests get the chat
// panel back, plain form posts are redirected to the chat route.
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	prompt := r.PostForm.Get("prompt")

	switch {
	case strings.TrimSpace(prompt) == "":
	case h.limiter != nil && !h.limiter.Allow(ws.ID()):
		h.logger.Warn("Chat rate limit exceeded", "workspace_id", ws.ID())
		h.flash(w, r, auth.Notice{Kind: auth.NoticeError, Text: "Too many messages. Please wait a moment."})
	default:
		if _, err := ws.Chat().Send(r.Context(), prompt); errors.Is(err, chat.ErrBusy) {
			h.flash(w, r, auth.Notice{Kind: auth.NoticeError, Text: "Please wait for the current reply."})
		}
	}

	if r.Header.Get("HX-Request") == "true" {
		h.serve(w, r, "chat", newChatData(ws.Chat().Snapshot()), http.StatusOK)
		return
	}
	http.Redirect(w, r, "/chatbot", http.StatusSeeOther)
}

// ToggleTheme switches between the light and dark theme.
func (h *Handler) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	ws, ok := h.workspace(w, r)
	if !ok {
		return
	}
	next := ws.Theme().Toggle()
	ws.SetTheme(next)
	if err := h.ids.SaveTheme(w, r, next); err != nil {
		h.logger.Warn("Failed to persist theme", "workspace_id", ws.ID(), "error", err)
	}
	h.back(w, r, ws)
}

func (h *Handler) workspace(w http.ResponseWriter, r *http.Request) (*shell.Workspace, bool) {
	ws, ok := identity.WorkspaceFromContext(r.Context())
	if !ok {
		h.logger.Error("Workspace missing from request context", "path", r.URL.Path)
		http.Error(w, "workspace not found", http.StatusInternalServerError)
		return nil, false
	}
	return ws, true
}

func (h *Handler) flash(w http.ResponseWriter, r *http.Request, n auth.Notice) {
	if n.IsZero() {
		return
	}
	if err := h.ids.AddFlash(w, r, identity.Flash{Kind: string(n.Kind), Text: n.Text}); err != nil {
		h.logger.Warn("Failed to queue notice", "error", err)
	}
}

func (h *Handler) back(w http.ResponseWriter, r *http.Request, ws *shell.Workspace) {
	http.Redirect(w, r, ws.Path(), http.StatusSeeOther)
}
