package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/ashureev/finboard/internal/chat"
	"github.com/ashureev/finboard/internal/identity"
)

const writeTimeout = 10 * time.Second

// Limiter throttles chat sends per workspace.
type Limiter interface {
	Allow(key string) bool
}

// Handler upgrades /ws/chat and streams widget snapshots.
type Handler struct {
	hub            *Hub
	limiter        Limiter
	originPatterns []string
	isDev          bool
	logger         *slog.Logger
}

// NewHandler creates a websocket handler. originPatterns are host patterns
// accepted for cross-origin upgrades.
func NewHandler(hub *Hub, limiter Limiter, originPatterns []string, isDev bool, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:            hub,
		limiter:        limiter,
		originPatterns: originPatterns,
		isDev:          isDev,
		logger:         logger,
	}
}

// clientMessage is a frame sent by the browser.
type clientMessage struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

// snapshotFrame is pushed after every widget change.
type snapshotFrame struct {
	Type     string                 `json:"type"`
	Messages []chat.RenderedMessage `json:"messages"`
	Loading  bool                   `json:"loading"`
	Error    string                 `json:"error,omitempty"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func newSnapshotFrame(s chat.Snapshot) snapshotFrame {
	return snapshotFrame{
		Type:     "snapshot",
		Messages: chat.RenderMessages(s.Messages),
		Loading:  s.Loading,
		Error:    s.Error,
	}
}

// ServeHTTP implements http.Handler for the websocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, ok := identity.WorkspaceFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"workspace not found"}`, http.StatusInternalServerError)
		return
	}
	workspaceID := ws.ID()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.originPatterns,
		InsecureSkipVerify: h.isDev,
	})
	if err != nil {
		h.logger.Warn("Failed to accept WebSocket", "error", err, "workspace_id", workspaceID)
		return
	}
	defer func() {
		if closeErr := conn.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "workspace_id", workspaceID)
		}
	}()

	connID := uuid.NewString()
	h.hub.Register(workspaceID, connID, conn)
	defer h.hub.Unregister(workspaceID, connID, conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	widget := ws.Chat()
	updates, unsubscribe := widget.Subscribe()
	defer unsubscribe()

	if err := writeJSON(ctx, conn, newSnapshotFrame(widget.Snapshot())); err != nil {
		return
	}

	go func() {
		defer cancel()
		h.outputLoop(ctx, conn, updates)
	}()

	h.inputLoop(ctx, conn, widget, workspaceID, ws.Touch)
	h.logger.Debug("Chat connection ended", "workspace_id", workspaceID)
}

func (h *Handler) outputLoop(ctx context.Context, conn *websocket.Conn, updates <-chan chat.Snapshot) {
	for {
		select {
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := writeJSON(ctx, conn, newSnapshotFrame(snap)); err != nil {
				if ctx.Err() == nil {
					h.logger.Debug("WebSocket write error", "error", err)
				}
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (h *Handler) inputLoop(ctx context.Context, conn *websocket.Conn, widget *chat.Widget, workspaceID string, touch func()) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 || ctx.Err() != nil {
				h.logger.Debug("WebSocket closed by client", "workspace_id", workspaceID)
			} else {
				h.logger.Warn("WebSocket read error", "error", err, "workspace_id", workspaceID)
			}
			return
		}
		touch()

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = writeJSON(ctx, conn, errorFrame{Type: "error", Error: "invalid message"})
			continue
		}

		switch msg.Type {
		case "send":
			h.handleSend(ctx, conn, widget, workspaceID, msg.Prompt)
		case "ping":
			if err := writeJSON(ctx, conn, map[string]string{"type": "pong"}); err != nil {
				h.logger.Debug("Failed to send pong", "error", err)
			}
		default:
			_ = writeJSON(ctx, conn, errorFrame{Type: "error", Error: "unknown message type"})
		}
	}
}

func (h *Handler) handleSend(ctx context.Context, conn *websocket.Conn, widget *chat.Widget, workspaceID, prompt string) {
	if h.limiter != nil && !h.limiter.Allow(workspaceID) {
		_ = writeJSON(ctx, conn, errorFrame{Type: "error", Error: "rate limit exceeded"})
		return
	}

	pending, err := widget.Submit(prompt)
	if err != nil {
		text := err.Error()
		if !errors.Is(err, chat.ErrEmptyPrompt) && !errors.Is(err, chat.ErrBusy) {
			text = "failed to send message"
		}
		_ = writeJSON(ctx, conn, errorFrame{Type: "error", Error: text})
		return
	}

	// The reply outlives this connection; it still lands in the widget.
	go pending.Await(context.WithoutCancel(ctx))
}

func writeJSON(ctx context.Context, conn *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, data)
}
