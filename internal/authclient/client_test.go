package authclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api/auth", 5*time.Second)
}

func TestLoginDecodesStatusAndRelaysCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var creds Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@x.com", creds.Email)

		http.SetCookie(w, &http.Cookie{Name: AccessTokenCookie, Value: "acc"})
		http.SetCookie(w, &http.Cookie{Name: RefreshTokenCookie, Value: "ref"})
		_, _ = io.WriteString(w, `{"status":true,"message":"welcome"}`)
	})

	resp, cookies, err := c.Login(context.Background(), Credentials{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.True(t, resp.Status)
	assert.Equal(t, "welcome", resp.Message)
	_, _, ok := TokenCookies(cookies)
	assert.True(t, ok)
}

func TestLoginFalseStatusIsNotAnError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"status":false,"message":"bad credentials"}`)
	})

	resp, _, err := c.Login(context.Background(), Credentials{Email: "a@x.com", Password: "pw"})
	require.NoError(t, err)
	assert.False(t, resp.Status)
	assert.Equal(t, "bad credentials", resp.Message)
}

func TestNon2xxBecomesBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"status":false,"message":"user not found"}`)
	})

	_, _, err := c.Login(context.Background(), Credentials{})
	var be *BackendError
	require.True(t, errors.As(err, &be))
	assert.Equal(t, http.StatusUnauthorized, be.StatusCode)
	assert.Equal(t, "user not found", be.Message)
}

func TestCurrentUserForwardsCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth", r.URL.Path)
		acc, err := r.Cookie(AccessTokenCookie)
		require.NoError(t, err)
		assert.Equal(t, "acc", acc.Value)
		_, _ = io.WriteString(w, `{"data":{"name":"A","email":"a@x.com","image":"/img/a.png"}}`)
	})

	u, err := c.CurrentUser(context.Background(), []*http.Cookie{
		{Name: AccessTokenCookie, Value: "acc"},
		{Name: RefreshTokenCookie, Value: "ref"},
	})
	require.NoError(t, err)
	assert.Equal(t, "A", u.Name)
	assert.Equal(t, "/img/a.png", u.Image)
}

func TestCurrentUserEmptyPayload(t *testing.T) {
	for _, body := range []string{`{"data":null}`, `{}`, `{"data":{}}`} {
		c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, body)
		})
		_, err := c.CurrentUser(context.Background(), nil)
		assert.ErrorIs(t, err, ErrEmptyPayload, body)
	}
}

func TestRegisterSendsMultipart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/save", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "ann", r.FormValue("username"))
		assert.Equal(t, "555", r.FormValue("phone"))
		assert.Empty(t, r.FormValue("confirmPassword"))

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		assert.Equal(t, "me.png", hdr.Filename)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "PNG", string(data))
		w.WriteHeader(http.StatusCreated)
	})

	err := c.Register(context.Background(), Registration{
		Username: "ann", Name: "Ann", Phone: "555", Email: "a@x.com", Password: "pw",
		Image: &Image{Filename: "me.png", ContentType: "image/png", Content: strings.NewReader("PNG")},
	})
	require.NoError(t, err)
}

func TestRegisterWithoutImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("image")
		assert.ErrorIs(t, err, http.ErrMissingFile)
	})
	require.NoError(t, c.Register(context.Background(), Registration{Username: "ann"}))
}

func TestLogoutReturnsBackendCookies(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/logout", r.URL.Path)
		http.SetCookie(w, &http.Cookie{Name: AccessTokenCookie, Value: "", MaxAge: -1})
	})
	cookies, err := c.Logout(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	assert.Equal(t, AccessTokenCookie, cookies[0].Name)
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url, time.Second)
	_, err := c.CurrentUser(context.Background(), nil)
	require.Error(t, err)
	var be *BackendError
	assert.False(t, errors.As(err, &be))
	assert.Error(t, c.Ping(context.Background()))
}

func TestTokenCookies(t *testing.T) {
	_, _, ok := TokenCookies([]*http.Cookie{{Name: AccessTokenCookie, Value: "a"}})
	assert.False(t, ok)
	_, _, ok = TokenCookies([]*http.Cookie{{Name: AccessTokenCookie, Value: "a"}, {Name: RefreshTokenCookie, Value: ""}})
	assert.False(t, ok)
	_, _, ok = TokenCookies([]*http.Cookie{{Name: AccessTokenCookie, Value: "a"}, {Name: RefreshTokenCookie, Value: "r"}})
	assert.True(t, ok)
}

func TestMergeCookies(t *testing.T) {
	base := []*http.Cookie{{Name: "theme", Value: "dark"}, {Name: AccessTokenCookie, Value: "old"}}
	set := []*http.Cookie{{Name: AccessTokenCookie, Value: "new"}, {Name: RefreshTokenCookie, Value: "r"}}
	merged := MergeCookies(base, set)
	require.Len(t, merged, 3)
	assert.Equal(t, "new", merged[1].Value)

	cleared := MergeCookies(merged, []*http.Cookie{{Name: AccessTokenCookie, MaxAge: -1}})
	_, _, ok := TokenCookies(cleared)
	assert.False(t, ok)
}
