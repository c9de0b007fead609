package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIsFullyPopulatedOrAbsent(t *testing.T) {
	var absent Session
	assert.False(t, absent.Authenticated())
	_, ok := absent.User()
	assert.False(t, ok)

	assert.False(t, NewSession(User{}).Authenticated())

	s := NewSession(User{Name: "A", Email: "a@x.com"})
	require.True(t, s.Authenticated())
	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "A", u.Name)
}

func TestUserDisplayNameAndInitial(t *testing.T) {
	assert.Equal(t, "Ann", User{Name: "Ann", Email: "a@x.com"}.DisplayName())
	assert.Equal(t, "ann", User{Username: "ann", Email: "a@x.com"}.DisplayName())
	assert.Equal(t, "a@x.com", User{Email: "a@x.com"}.DisplayName())
	assert.Equal(t, "Ä", User{Name: "äsa"}.Initial())
	assert.Equal(t, "?", User{}.Initial())
}

func TestOverlayTransitions(t *testing.T) {
	o, err := OverlayClosed.OpenLogin()
	require.NoError(t, err)
	assert.Equal(t, OverlayLogin, o)

	o, err = o.SwitchToRegister()
	require.NoError(t, err)
	assert.Equal(t, OverlayRegister, o)

	o, err = o.SwitchToLogin()
	require.NoError(t, err)
	assert.Equal(t, OverlayLogin, o)

	o, err = o.Close()
	require.NoError(t, err)
	assert.Equal(t, OverlayClosed, o)
	assert.False(t, o.IsOpen())
}

func TestOverlayRejectsInvalidTransitions(t *testing.T) {
	cases := []struct {
		name string
		fn   func() (Overlay, error)
		from Overlay
	}{
		{"close while closed", OverlayClosed.Close, OverlayClosed},
		{"register from closed", OverlayClosed.SwitchToRegister, OverlayClosed},
		{"login link from login", OverlayLogin.SwitchToLogin, OverlayLogin},
		{"sign-in while registering", OverlayRegister.OpenLogin, OverlayRegister},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.Equal(t, tc.from, got)
		})
	}
}

func TestParseOverlay(t *testing.T) {
	for _, o := range []Overlay{OverlayClosed, OverlayLogin, OverlayRegister} {
		got, err := ParseOverlay(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}
	_, err := ParseOverlay("signup")
	assert.Error(t, err)
}

func TestResolvePage(t *testing.T) {
	chat := ResolvePage("/chatbot/")
	assert.Equal(t, PanelChat, chat.Kind)

	page := ResolvePage("/reports/history")
	assert.Equal(t, PanelPlaceholder, page.Kind)
	assert.Equal(t, "Dashboard content for /reports/history", page.Text)
	assert.Equal(t, "History", page.Title)

	assert.Equal(t, DefaultPath, ResolvePage("/").Path)
}

func TestKnownPaths(t *testing.T) {
	for _, p := range []string{"/dashboard", "/chatbot", "/reports", "/reports/traffic", "/integrations", "/profile", "/login", "/register"} {
		assert.True(t, KnownPath(p), p)
	}
	assert.False(t, KnownPath("/admin"))
	assert.False(t, KnownPath("/history"))
	assert.Len(t, Paths(), 9)
}

func TestActive(t *testing.T) {
	assert.True(t, Active("/reports/history", "/reports"))
	assert.True(t, Active("/reports", "/reports"))
	assert.False(t, Active("/reportsx", "/reports"))
}

func TestExchangeDuration(t *testing.T) {
	start := time.Now()
	e := Exchange{StartedAt: start, FinishedAt: start.Add(time.Second)}
	assert.Equal(t, time.Second, e.Duration())
	e.FinishedAt = start.Add(-time.Second)
	assert.Zero(t, e.Duration())
}
