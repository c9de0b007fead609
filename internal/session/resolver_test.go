package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/finboard/internal/authclient"
	"github.com/ashureev/finboard/internal/domain"
)

type fakeLookup struct {
	mu    sync.Mutex
	calls int
	user  domain.User
	err   error
}

func (f *fakeLookup) CurrentUser(_ context.Context, _ []*http.Cookie) (domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.user, f.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func tokens(access, refresh string) []*http.Cookie {
	var out []*http.Cookie
	if access != "" {
		out = append(out, &http.Cookie{Name: authclient.AccessTokenCookie, Value: access})
	}
	if refresh != "" {
		out = append(out, &http.Cookie{Name: authclient.RefreshTokenCookie, Value: refresh})
	}
	return out
}

func TestResolveWithoutBothCookiesSkipsNetwork(t *testing.T) {
	for _, cookies := range [][]*http.Cookie{
		nil,
		tokens("a", ""),
		tokens("", "r"),
		{{Name: "theme", Value: "dark"}},
	} {
		lookup := &fakeLookup{user: domain.User{Name: "A"}}
		r := NewResolver(lookup, quietLogger())

		s := r.Resolve(context.Background(), cookies)

		assert.False(t, s.Authenticated())
		assert.Zero(t, lookup.calls)
	}
}

func TestResolvePopulatesSession(t *testing.T) {
	lookup := &fakeLookup{user: domain.User{Name: "A", Email: "a@x.com"}}
	r := NewResolver(lookup, quietLogger())

	s := r.Resolve(context.Background(), tokens("a", "r"))

	require.True(t, s.Authenticated())
	u, _ := s.User()
	assert.Equal(t, "A", u.Name)
	assert.Equal(t, 1, lookup.calls)
}

func TestResolveClearsOnFailure(t *testing.T) {
	for _, lookup := range []*fakeLookup{
		{err: errors.New("connection refused")},
		{err: &authclient.BackendError{StatusCode: http.StatusUnauthorized}},
		{err: authclient.ErrEmptyPayload},
		{},
	} {
		r := NewResolver(lookup, quietLogger())
		s := r.Resolve(context.Background(), tokens("a", "r"))
		assert.False(t, s.Authenticated())
		assert.Equal(t, 1, lookup.calls)
	}
}

// Cookies present and the backend answers {data: {name: "A", ...}}: the
// session shows user "A".
func TestResolveAgainstBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie(authclient.RefreshTokenCookie); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"data":{"name":"A","email":"a@x.com"}}`)
	}))
	defer srv.Close()

	r := NewResolver(authclient.New(srv.URL, time.Second), quietLogger())
	s := r.Resolve(context.Background(), tokens("a", "r"))

	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "A", u.DisplayName())
}
