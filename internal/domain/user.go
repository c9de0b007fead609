// Package domain contains core domain types for the finboard application.
package domain

import "strings"

// User is the identity returned by the auth backend's current-user lookup.
type User struct {
	ID       string `json:"_id,omitempty"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Image    string `json:"image,omitempty"`
}

// IsZero reports whether the payload carries no identity at all.
func (u User) IsZero() bool {
	return u.ID == "" && u.Username == "" && u.Name == "" && u.Email == ""
}

// DisplayName returns the best human-readable label for the user.
func (u User) DisplayName() string {
	switch {
	case u.Name != "":
		return u.Name
	case u.Username != "":
		return u.Username
	default:
		return u.Email
	}
}

// Initial returns the first letter of the display name, used as avatar fallback.
func (u User) Initial() string {
	name := strings.TrimSpace(u.DisplayName())
	if name == "" {
		return "?"
	}
	r := []rune(name)
	return strings.ToUpper(string(r[0]))
}

// Session is the in-memory record of the authenticated user, or its absence.
// The zero value is the absent session.
type Session struct {
	user *User
}

// NewSession returns a populated session. A zero user yields the absent session.
func NewSession(u User) Session {
	if u.IsZero() {
		return Session{}
	}
	return Session{user: &u}
}

// Authenticated reports whether the session is populated.
func (s Session) Authenticated() bool {
	return s.user != nil
}

// User returns the session user and whether one is present.
func (s Session) User() (User, bool) {
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}
