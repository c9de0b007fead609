package api

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/finboard/internal/chat"
)

// ChatHandler serves the chat widget of the current workspace.
type ChatHandler struct {
	limiter *KeyedLimiter
	logger  *slog.Logger
}

// NewChatHandler creates a new chat handler.
func NewChatHandler(limiter *KeyedLimiter, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{limiter: limiter, logger: logger}
}

// RegisterRoutes registers chat routes. It expects to be mounted under /api.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Get("/chat", h.GetChat)
	r.Post("/chat", h.Send)
}

type chatResponse struct {
	Messages []chat.RenderedMessage `json:"messages"`
	Loading  bool                   `json:"loading"`
	Error    string                 `json:"error,omitempty"`
}

func newChatResponse(s chat.Snapshot) chatResponse {
	return chatResponse{
		Messages: chat.RenderMessages(s.Messages),
		Loading:  s.Loading,
		Error:    s.Error,
	}
}

// GetChat returns the transcript with bot replies rendered as HTML.
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, newChatResponse(ws.Chat().Snapshot()))
}

// Send posts a prompt and waits for the reply.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	ws, ok := workspace(w, r)
	if !ok {
		return
	}
	var req struct {
		Prompt string `json:"prompt"`
	}
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Prompt) == "" {
		Error(w, http.StatusBadRequest, chat.ErrEmptyPrompt.Error())
		return
	}
	if h.limiter != nil && !h.limiter.Allow(ws.ID()) {
		retry := h.limiter.RetryAfter(ws.ID())
		w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(retry.Seconds())))))
		h.logger.Warn("Chat rate limit exceeded", "workspace_id", ws.ID())
		Error(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	_, err := ws.Chat().Send(r.Context(), req.Prompt)
	switch {
	case errors.Is(err, chat.ErrEmptyPrompt):
		Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chat.ErrBusy):
		Error(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.logger.Error("Chat send failed", "workspace_id", ws.ID(), "error", err)
		Error(w, http.StatusInternalServerError, "chat send failed")
		return
	}
	JSON(w, http.StatusOK, newChatResponse(ws.Chat().Snapshot()))
}
