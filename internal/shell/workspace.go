// Package shell holds the per-tab view state of the dashboard: route,
// overlay, session and chat widget.
package shell

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/ashureev/finboard/internal/chat"
	"github.com/ashureev/finboard/internal/domain"
)

// ErrUnknownPath is returned when navigating to a route the shell does not serve.
var ErrUnknownPath = errors.New("unknown path")

// Theme is the color scheme selected in the header.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme maps anything but "dark" to the light theme.
func ParseTheme(s string) Theme {
	if s == string(ThemeDark) {
		return ThemeDark
	}
	return ThemeLight
}

// Toggle returns the other theme.
func (t Theme) Toggle() Theme {
	if t == ThemeDark {
		return ThemeLight
	}
	return ThemeDark
}

// SessionResolver resolves a session from request cookies.
type SessionResolver interface {
	Resolve(ctx context.Context, cookies []*http.Cookie) domain.Session
}

// Workspace is the state container of one browser tab.
type Workspace struct {
	id       string
	resolver SessionResolver
	widget   *chat.Widget
	now      func() time.Time

	mu       sync.Mutex
	path     string
	overlay  domain.Overlay
	session  domain.Session
	theme    Theme
	closeAt  time.Time
	lastSeen time.Time
	// gen orders session resolutions; a result is applied only if no newer
	// resolution started meanwhile.
	gen uint64
}

// WorkspaceOption customizes a Workspace.
type WorkspaceOption func(*Workspace)

// WithWorkspaceClock overrides time.Now.
func WithWorkspaceClock(now func() time.Time) WorkspaceOption {
	return func(w *Workspace) { w.now = now }
}

// WithTheme sets the initial theme.
func WithTheme(t Theme) WorkspaceOption {
	return func(w *Workspace) { w.theme = t }
}

// NewWorkspace creates a workspace on the default route with the overlay closed.
func NewWorkspace(id string, resolver SessionResolver, widget *chat.Widget, opts ...WorkspaceOption) *Workspace {
	w := &Workspace{
		id:       id,
		resolver: resolver,
		widget:   widget,
		now:      time.Now,
		path:     domain.DefaultPath,
		overlay:  domain.OverlayClosed,
		theme:    ThemeLight,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.lastSeen = w.now()
	return w
}

// ID returns the workspace id.
func (w *Workspace) ID() string { return w.id }

// Chat returns the workspace's chat widget.
func (w *Workspace) Chat() *chat.Widget { return w.widget }

// Touch records activity.
func (w *Workspace) Touch() {
	w.mu.Lock()
	w.lastSeen = w.now()
	w.mu.Unlock()
}

// LastSeen returns the time of the last recorded activity.
func (w *Workspace) LastSeen() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastSeen
}

// Navigate sets the current route.
func (w *Workspace) Navigate(path string) error {
	p := domain.NormalizePath(path)
	if !domain.KnownPath(p) {
		return ErrUnknownPath
	}
	w.mu.Lock()
	w.path = p
	w.mu.Unlock()
	return nil
}

// Path returns the current route.
func (w *Workspace) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

// Theme returns the current theme.
func (w *Workspace) Theme() Theme {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.theme
}

// SetTheme changes the theme.
func (w *Workspace) SetTheme(t Theme) {
	w.mu.Lock()
	w.theme = t
	w.mu.Unlock()
}

// Overlay returns the overlay state.
func (w *Workspace) Overlay() domain.Overlay {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.overlay
}

// Session returns the last resolved session.
func (w *Workspace) Session() domain.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// OpenLogin opens the login overlay.
func (w *Workspace) OpenLogin() error {
	return w.transition(domain.Overlay.OpenLogin)
}

// SwitchToRegister swaps the login overlay for the register overlay.
func (w *Workspace) SwitchToRegister() error {
	return w.transition(domain.Overlay.SwitchToRegister)
}

// SwitchToLogin swaps the register overlay for the login overlay.
func (w *Workspace) SwitchToLogin() error {
	return w.transition(domain.Overlay.SwitchToLogin)
}

// Show moves the overlay toward target using the single allowed transition
// from the current state: sign-in, a switch link or a close. Every accepted
// transition re-resolves the session with cookies.
func (w *Workspace) Show(ctx context.Context, target domain.Overlay, cookies []*http.Cookie) error {
	var err error
	switch target {
	case domain.OverlayClosed:
		return w.Close(ctx, cookies)
	case domain.OverlayRegister:
		err = w.SwitchToRegister()
	default:
		if w.Overlay() == domain.OverlayRegister {
			err = w.SwitchToLogin()
		} else {
			err = w.OpenLogin()
		}
	}
	if err != nil {
		return err
	}
	w.Refresh(ctx, cookies)
	return nil
}

func (w *Workspace) transition(fn func(domain.Overlay) (domain.Overlay, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	next, err := fn(w.overlay)
	if err != nil {
		return err
	}
	w.overlay = next
	w.closeAt = time.Time{}
	return nil
}

// Close closes the open overlay and re-resolves the session with cookies.
func (w *Workspace) Close(ctx context.Context, cookies []*http.Cookie) error {
	w.mu.Lock()
	next, err := w.overlay.Close()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.overlay = next
	w.closeAt = time.Time{}
	w.mu.Unlock()

	w.Refresh(ctx, cookies)
	return nil
}

// ScheduleClose arranges for the open overlay to close once delay has passed.
// The close happens on the next Settle call after the deadline.
func (w *Workspace) ScheduleClose(delay time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.overlay.IsOpen() {
		return
	}
	w.closeAt = w.now().Add(delay)
}

// ClosePending reports how long until a scheduled close, if one is set.
func (w *Workspace) ClosePending() (time.Duration, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closeAt.IsZero() {
		return 0, false
	}
	remaining := w.closeAt.Sub(w.now())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Settle performs a scheduled close whose deadline has passed. It reports
// whether the overlay was closed.
func (w *Workspace) Settle(ctx context.Context, cookies []*http.Cookie) bool {
	w.mu.Lock()
	due := !w.closeAt.IsZero() && !w.now().Before(w.closeAt)
	w.mu.Unlock()
	if !due {
		return false
	}
	return w.Close(ctx, cookies) == nil
}

// Refresh re-runs session resolution and stores the result.
func (w *Workspace) Refresh(ctx context.Context, cookies []*http.Cookie) domain.Session {
	w.mu.Lock()
	w.gen++
	gen := w.gen
	w.mu.Unlock()

	s := w.resolver.Resolve(ctx, cookies)

	w.mu.Lock()
	defer w.mu.Unlock()
	if gen == w.gen {
		w.session = s
	}
	return s
}

// SignOut clears the session.
func (w *Workspace) SignOut() {
	w.mu.Lock()
	w.gen++
	w.session = domain.Session{}
	w.mu.Unlock()
}

// View is a consistent copy of the workspace state for rendering.
type View struct {
	ID           string             `json:"id"`
	Path         string             `json:"path"`
	Title        string             `json:"title"`
	Page         domain.PageContent `json:"page"`
	Overlay      domain.Overlay     `json:"overlay"`
	User         *domain.User       `json:"user"`
	Theme        Theme              `json:"theme"`
	CloseIn      time.Duration      `json:"-"`
	ClosePending bool               `json:"close_pending"`
}

// Authenticated reports whether the view carries a user.
func (v View) Authenticated() bool { return v.User != nil }

// Snapshot returns the current View.
func (w *Workspace) Snapshot() View {
	w.mu.Lock()
	defer w.mu.Unlock()

	v := View{
		ID:      w.id,
		Path:    w.path,
		Title:   domain.TitleFor(w.path),
		Page:    domain.ResolvePage(w.path),
		Overlay: w.overlay,
		Theme:   w.theme,
	}
	if u, ok := w.session.User(); ok {
		v.User = &u
	}
	if !w.closeAt.IsZero() {
		v.ClosePending = true
		if d := w.closeAt.Sub(w.now()); d > 0 {
			v.CloseIn = d
		}
	}
	return v
}
