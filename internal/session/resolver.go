// Package session resolves the authenticated user from the auth cookies.
package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ashureev/finboard/internal/authclient"
	"github.com/ashureev/finboard/internal/domain"
	"github.com/ashureev/finboard/internal/metrics"
)

// Lookup is the current-user call of the auth backend.
type Lookup interface {
	CurrentUser(ctx context.Context, cookies []*http.Cookie) (domain.User, error)
}

// Resolver turns a cookie pair into a Session. Failures never propagate:
// they are logged and yield the absent session.
type Resolver struct {
	lookup Lookup
	logger *slog.Logger
}

// NewResolver creates a resolver backed by lookup.
func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{lookup: lookup, logger: logger}
}

// Resolve returns the session for cookies. Without both auth cookies no
// network call is made.
func (r *Resolver) Resolve(ctx context.Context, cookies []*http.Cookie) domain.Session {
	access, refresh, ok := authclient.TokenCookies(cookies)
	if !ok {
		metrics.SessionResolutions.WithLabelValues("no_cookies").Inc()
		return domain.Session{}
	}

	user, err := r.lookup.CurrentUser(ctx, []*http.Cookie{access, refresh})
	if err != nil {
		metrics.SessionResolutions.WithLabelValues("failed").Inc()
		r.logger.Warn("Error fetching current user", "error", err)
		return domain.Session{}
	}

	s := domain.NewSession(user)
	if !s.Authenticated() {
		metrics.SessionResolutions.WithLabelValues("failed").Inc()
		r.logger.Warn("Current user lookup returned an empty payload")
		return s
	}

	metrics.SessionResolutions.WithLabelValues("authenticated").Inc()
	r.logger.Debug("Session resolved", "email", user.Email)
	return s
}
