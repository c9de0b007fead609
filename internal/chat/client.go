package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrRequestFailed is returned when the chat endpoint answers with a non-2xx status.
var ErrRequestFailed = errors.New("API request failed")

// Reply is the body returned by the finance chat endpoint.
type Reply struct {
	BotResponse string `json:"bot_response,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Text returns the bot response, falling back to the error field.
func (r Reply) Text() string {
	if r.BotResponse != "" {
		return r.BotResponse
	}
	return r.Error
}

// Client posts prompts to the finance chat endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a chat endpoint client.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, httpClient: &http.Client{Timeout: timeout}}
}

// URL returns the endpoint the client posts to.
func (c *Client) URL() string { return c.url }

// Ask sends {prompt} and decodes the reply.
func (c *Client) Ask(ctx context.Context, prompt string) (Reply, error) {
	body, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return Reply{}, fmt.Errorf("encode prompt: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Reply{}, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reply{}, fmt.Errorf("post prompt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return Reply{}, fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}

	var reply Reply
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("decode chat reply: %w", err)
	}
	return reply, nil
}

// Ping checks that the endpoint's host answers HTTP. Any status code counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.url, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping chat endpoint: %w", err)
	}
	return resp.Body.Close()
}
