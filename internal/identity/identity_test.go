package identity

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/finboard/internal/chat"
	"github.com/ashureev/finboard/internal/domain"
	"github.com/ashureev/finboard/internal/shell"
)

type anonResolver struct{}

func (anonResolver) Resolve(context.Context, []*http.Cookie) domain.Session { return domain.Session{} }

type nopAsker struct{}

func (nopAsker) Ask(context.Context, string) (chat.Reply, error) { return chat.Reply{}, nil }

func newTestManager() (*Manager, *shell.Registry) {
	reg := shell.NewRegistry(func(id string) *shell.Workspace {
		return shell.NewWorkspace(id, anonResolver{}, chat.NewWidget(id, nopAsker{}))
	}, time.Hour)
	store := NewStore("0123456789abcdef0123456789abcdef", true)
	return NewManager(store, reg, slog.New(slog.NewTextHandler(io.Discard, nil))), reg
}

func captureHandler(got **shell.Workspace) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, ok := WorkspaceFromContext(r.Context())
		if ok {
			*got = ws
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func cookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("cookie %s not set", CookieName)
	return nil
}

func TestMiddlewareCreatesAndReusesWorkspace(t *testing.T) {
	m, reg := newTestManager()
	var first, second *shell.Workspace

	rec := httptest.NewRecorder()
	m.Middleware(captureHandler(&first)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, first)
	c := cookieFrom(t, rec)
	assert.True(t, c.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	m.Middleware(captureHandler(&second)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Same(t, first, second)
	assert.Equal(t, 1, reg.Len())
}

func TestMiddlewareRejectsTamperedCookie(t *testing.T) {
	m, reg := newTestManager()
	var ws *shell.Workspace

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: "forged"})
	rec := httptest.NewRecorder()
	m.Middleware(captureHandler(&ws)).ServeHTTP(rec, req)

	require.NotNil(t, ws)
	assert.NotEmpty(t, ws.ID())
	assert.Equal(t, 1, reg.Len())
	cookieFrom(t, rec)
}

func TestThemeSurvivesEviction(t *testing.T) {
	m, reg := newTestManager()
	var ws *shell.Workspace

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/theme", nil)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, _ = WorkspaceFromContext(r.Context())
		require.NoError(t, m.SaveTheme(w, r, shell.ThemeDark))
	}))
	handler.ServeHTTP(rec, req)
	c := cookieFrom(t, rec)

	reg.Remove(ws.ID())

	var again *shell.Workspace
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	m.Middleware(captureHandler(&again)).ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, again)
	assert.NotSame(t, ws, again)
	assert.Equal(t, ws.ID(), again.ID())
	assert.Equal(t, shell.ThemeDark, again.Theme())
}

func TestFlashesRoundTrip(t *testing.T) {
	m, _ := newTestManager()

	rec := httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, m.AddFlash(w, r, Flash{Kind: "error", Text: "Passwords don't match!"}))
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auth/register", nil))
	c := cookieFrom(t, rec)

	var flashes []Flash
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(c)
	rec = httptest.NewRecorder()
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flashes = m.Flashes(w, r)
	})).ServeHTTP(rec, req)

	require.Len(t, flashes, 1)
	assert.Equal(t, "Passwords don't match!", flashes[0].Text)

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(cookieFrom(t, rec))
	m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flashes = m.Flashes(w, r)
	})).ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, flashes)
}

func TestWorkspaceFromContextMissing(t *testing.T) {
	_, ok := WorkspaceFromContext(context.Background())
	assert.False(t, ok)
}
