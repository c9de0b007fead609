// Package auth implements login, registration and logout submission.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/ashureev/finboard/internal/authclient"
	"github.com/ashureev/finboard/internal/metrics"
)

// User-facing notice texts.
const (
	MsgLoginFailed      = "Login failed. Please try again."
	MsgLoginSucceeded   = "Login successful"
	MsgPasswordMismatch = "Passwords don't match!"
)

// Backend is the subset of the auth backend the forms submit to.
type Backend interface {
	Login(ctx context.Context, creds authclient.Credentials) (*authclient.LoginResponse, []*http.Cookie, error)
	Register(ctx context.Context, reg authclient.Registration) error
	Logout(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error)
}

// Target is the overlay/session holder the forms act on.
type Target interface {
	ScheduleClose(delay time.Duration)
	Close(ctx context.Context, cookies []*http.Cookie) error
	SignOut()
}

// NoticeKind classifies a notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is an inline message shown in the overlay.
type Notice struct {
	Kind NoticeKind `json:"kind"`
	Text string     `json:"text"`
}

// IsZero reports whether there is nothing to show.
func (n Notice) IsZero() bool { return n.Text == "" }

// LoginForm is the login overlay input.
type LoginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterForm is the register overlay input.
type RegisterForm struct {
	Username        string            `json:"username" validate:"required"`
	Name            string            `json:"name" validate:"required"`
	Phone           string            `json:"phone" validate:"required"`
	Email           string            `json:"email" validate:"required,email"`
	Password        string            `json:"password" validate:"required"`
	ConfirmPassword string            `json:"confirmPassword"`
	Image           *authclient.Image `json:"-"`
}

// Result is the outcome of a submission.
type Result struct {
	// OK is true when the backend accepted the submission.
	OK bool `json:"ok"`
	// Notice is empty when nothing should be shown.
	Notice Notice `json:"notice"`
	// Cookies are the backend's Set-Cookie values to relay to the browser.
	Cookies []*http.Cookie `json:"-"`
}

// Service submits the auth forms.
type Service struct {
	backend    Backend
	validate   *validator.Validate
	closeDelay time.Duration
	logger     *slog.Logger
}

// NewService creates a Service. closeDelay is how long the login overlay
// stays open on its success notice.
func NewService(backend Backend, closeDelay time.Duration, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:    backend,
		validate:   validator.New(),
		closeDelay: closeDelay,
		logger:     logger,
	}
}

// Login validates and submits the form. On success the target's overlay is
// scheduled to close, or closed at once when no delay is configured; on
// failure it stays open with an error notice. cookies are the browser's.
func (s *Service) Login(ctx context.Context, target Target, form LoginForm, cookies []*http.Cookie) Result {
	form.Email = strings.TrimSpace(form.Email)
	if err := s.validate.Struct(form); err != nil {
		metrics.AuthSubmissions.WithLabelValues("login", "invalid").Inc()
		return Result{Notice: Notice{Kind: NoticeError, Text: validationMessage(err)}}
	}

	resp, relayed, err := s.backend.Login(ctx, authclient.Credentials{Email: form.Email, Password: form.Password})
	if err != nil {
		metrics.AuthSubmissions.WithLabelValues("login", "failed").Inc()
		s.logger.Warn("Login failed", "email", form.Email, "error", err)
		return Result{Notice: Notice{Kind: NoticeError, Text: loginErrorText(err)}}
	}

	if !resp.Status {
		metrics.AuthSubmissions.WithLabelValues("login", "rejected").Inc()
		s.logger.Info("Login rejected", "email", form.Email, "message", resp.Message)
		text := resp.Message
		if text == "" {
			text = MsgLoginFailed
		}
		return Result{Notice: Notice{Kind: NoticeError, Text: text}, Cookies: relayed}
	}

	metrics.AuthSubmissions.WithLabelValues("login", "ok").Inc()
	s.logger.Info("Login succeeded", "email", form.Email)
	if s.closeDelay > 0 {
		target.ScheduleClose(s.closeDelay)
	} else if err := target.Close(ctx, authclient.MergeCookies(cookies, relayed)); err != nil {
		s.logger.Debug("Overlay already closed after login", "error", err)
	}

	text := resp.Message
	if text == "" {
		text = MsgLoginSucceeded
	}
	return Result{OK: true, Notice: Notice{Kind: NoticeSuccess, Text: text}, Cookies: relayed}
}

// Register validates and submits the form. Backend failures are logged only;
// success closes the overlay and re-resolves the session with cookies.
func (s *Service) Register(ctx context.Context, target Target, form RegisterForm, cookies []*http.Cookie) Result {
	if form.Password != form.ConfirmPassword {
		metrics.AuthSubmissions.WithLabelValues("register", "invalid").Inc()
		return Result{Notice: Notice{Kind: NoticeError, Text: MsgPasswordMismatch}}
	}
	form.Email = strings.TrimSpace(form.Email)
	if err := s.validate.Struct(form); err != nil {
		metrics.AuthSubmissions.WithLabelValues("register", "invalid").Inc()
		return Result{Notice: Notice{Kind: NoticeError, Text: validationMessage(err)}}
	}

	err := s.backend.Register(ctx, authclient.Registration{
		Username: form.Username,
		Name:     form.Name,
		Phone:    form.Phone,
		Email:    form.Email,
		Password: form.Password,
		Image:    form.Image,
	})
	if err != nil {
		metrics.AuthSubmissions.WithLabelValues("register", "failed").Inc()
		s.logger.Error("Registration failed", "email", form.Email, "error", err)
		return Result{}
	}

	metrics.AuthSubmissions.WithLabelValues("register", "ok").Inc()
	s.logger.Info("Registration succeeded", "email", form.Email)
	if err := target.Close(ctx, cookies); err != nil {
		s.logger.Debug("Overlay already closed after registration", "error", err)
	}
	return Result{OK: true}
}

// Logout calls the backend and clears the session regardless of the outcome.
func (s *Service) Logout(ctx context.Context, target Target, cookies []*http.Cookie) Result {
	relayed, err := s.backend.Logout(ctx, cookies)
	if err != nil {
		metrics.AuthSubmissions.WithLabelValues("logout", "failed").Inc()
		s.logger.Error("Logout failed", "error", err)
	} else {
		metrics.AuthSubmissions.WithLabelValues("logout", "ok").Inc()
	}
	target.SignOut()
	return Result{OK: err == nil, Cookies: relayed}
}

func loginErrorText(err error) string {
	var be *authclient.BackendError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return MsgLoginFailed
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return MsgLoginFailed
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("Please enter your %s.", field)
	case "email":
		return "Please enter a valid email address."
	default:
		return fmt.Sprintf("Invalid %s.", field)
	}
}
