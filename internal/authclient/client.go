// Package authclient is the HTTP client for the auth backend's REST surface.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/ashureev/finboard/internal/domain"
)

// Cookie names issued by the auth backend.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// maxBodySize bounds how much of a backend response body is read.
const maxBodySize = 1 << 20

var (
	// ErrEmptyPayload is returned when the current-user lookup carries no user.
	ErrEmptyPayload = errors.New("current user payload is empty")
)

// BackendError is a non-2xx response from the auth backend.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("auth backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("auth backend returned %d", e.StatusCode)
}

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is the body of POST /login.
type LoginResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Image is an optional profile picture attached to a registration.
type Image struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Registration is the multipart payload of POST /save.
type Registration struct {
	Username string
	Name     string
	Phone    string
	Email    string
	Password string
	Image    *Image
}

// Client talks to the auth backend. Cookies from the browser are forwarded on
// every call and cookies set by the backend are returned for relaying.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client for the auth backend rooted at baseURL.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the root the client is bound to.
func (c *Client) BaseURL() string { return c.baseURL }

// Login posts the credentials. A decoded body is returned even when its status
// flag is false; transport failures and non-2xx responses are errors.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, []*http.Cookie, error) {
	body, err := json.Marshal(creds)
	if err != nil {
		return nil, nil, fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return nil, nil, err
	}
	defer c.closeBody(resp)

	if err := checkStatus(resp); err != nil {
		return nil, nil, err
	}

	var out LoginResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&out); err != nil {
		return nil, nil, fmt.Errorf("decode login response: %w", err)
	}
	return &out, resp.Cookies(), nil
}

// Logout calls GET /logout with the browser's cookies.
func (c *Client) Logout(ctx context.Context, cookies []*http.Cookie) ([]*http.Cookie, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logout", nil)
	if err != nil {
		return nil, fmt.Errorf("build logout request: %w", err)
	}
	addCookies(req, cookies)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer c.closeBody(resp)

	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	return resp.Cookies(), nil
}

// Register posts the multipart registration form to /save.
func (c *Client) Register(ctx context.Context, reg Registration) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"username", reg.Username},
		{"name", reg.Name},
		{"phone", reg.Phone},
		{"email", reg.Email},
		{"password", reg.Password},
	}
	for _, f := range fields {
		if err := mw.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write field %s: %w", f.name, err)
		}
	}

	if reg.Image != nil && reg.Image.Content != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, reg.Image.Filename))
		contentType := reg.Image.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		h.Set("Content-Type", contentType)
		part, err := mw.CreatePart(h)
		if err != nil {
			return fmt.Errorf("create image part: %w", err)
		}
		if _, err := io.Copy(part, reg.Image.Content); err != nil {
			return fmt.Errorf("copy image: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/save", &buf)
	if err != nil {
		return fmt.Errorf("build register request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	return checkStatus(resp)
}

// CurrentUser looks up the user behind the forwarded cookies via GET {AUTH}.
func (c *Client) CurrentUser(ctx context.Context, cookies []*http.Cookie) (domain.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return domain.User{}, fmt.Errorf("build current user request: %w", err)
	}
	addCookies(req, cookies)

	resp, err := c.do(req)
	if err != nil {
		return domain.User{}, err
	}
	defer c.closeBody(resp)

	if err := checkStatus(resp); err != nil {
		return domain.User{}, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodySize)).Decode(&envelope); err != nil {
		return domain.User{}, fmt.Errorf("decode current user: %w", err)
	}
	trimmed := bytes.TrimSpace(envelope.Data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return domain.User{}, ErrEmptyPayload
	}

	var user domain.User
	if err := json.Unmarshal(trimmed, &user); err != nil {
		return domain.User{}, fmt.Errorf("decode current user data: %w", err)
	}
	if user.IsZero() {
		return domain.User{}, ErrEmptyPayload
	}
	return user, nil
}

// Ping checks that the backend answers HTTP at all. Any status code counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	c.closeBody(resp)
	return nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Debug("authclient: failed to close response body", "error", err)
	}
}

func addCookies(req *http.Request, cookies []*http.Cookie) {
	for _, ck := range cookies {
		if ck == nil || ck.Name == "" {
			continue
		}
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
}

// checkStatus turns a non-2xx response into a BackendError, keeping the
// backend's message when the body carries one.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	msg := body.Message
	if msg == "" {
		msg = body.Error
	}
	return &BackendError{StatusCode: resp.StatusCode, Message: msg}
}

// TokenCookies picks the access and refresh cookies out of cookies.
// ok is false when either is missing or empty.
func TokenCookies(cookies []*http.Cookie) (access, refresh *http.Cookie, ok bool) {
	for _, ck := range cookies {
		if ck == nil {
			continue
		}
		switch ck.Name {
		case AccessTokenCookie:
			access = ck
		case RefreshTokenCookie:
			refresh = ck
		}
	}
	ok = access != nil && access.Value != "" && refresh != nil && refresh.Value != ""
	return access, refresh, ok
}

// MergeCookies overlays set on top of base by name. Cookies in set that expire
// the value (MaxAge < 0 or empty value) remove it from the result.
func MergeCookies(base, set []*http.Cookie) []*http.Cookie {
	byName := make(map[string]*http.Cookie, len(base)+len(set))
	order := make([]string, 0, len(base)+len(set))
	for _, list := range [][]*http.Cookie{base, set} {
		for _, ck := range list {
			if ck == nil || ck.Name == "" {
				continue
			}
			if _, seen := byName[ck.Name]; !seen {
				order = append(order, ck.Name)
			}
			byName[ck.Name] = ck
		}
	}
	out := make([]*http.Cookie, 0, len(order))
	for _, name := range order {
		ck := byName[name]
		if ck.MaxAge < 0 || ck.Value == "" {
			continue
		}
		out = append(out, ck)
	}
	return out
}
