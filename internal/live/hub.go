// Package live pushes chat widget updates to the browser over a websocket.
package live

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// Hub tracks the open websocket connections of every workspace. A workspace
// may have several connections, one per open page.
type Hub struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the connection registered for a workspace and connection id.
func (h *Hub) GetActive(workspaceID, connID string) *websocket.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if conns, ok := h.active[workspaceID]; ok {
		return conns[connID]
	}
	return nil
}

// Count returns how many connections a workspace has open.
func (h *Hub) Count(workspaceID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active[workspaceID])
}

// Register adds a connection for a workspace.
func (h *Hub) Register(workspaceID, connID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.active[workspaceID]; !exists {
		h.active[workspaceID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := h.active[workspaceID][connID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}

	h.active[workspaceID][connID] = conn
	slog.Debug("Chat connection registered", "workspace_id", workspaceID, "conn_id", connID)
}

// Unregister removes a connection. A stale conn that was already replaced is ignored.
func (h *Hub) Unregister(workspaceID, connID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.active[workspaceID]; ok {
		if current, exists := conns[connID]; exists && current == conn {
			delete(conns, connID)
			if len(conns) == 0 {
				delete(h.active, workspaceID)
			}
			slog.Debug("Chat connection unregistered", "workspace_id", workspaceID, "conn_id", connID)
		}
	}
}

// CloseWorkspace terminates every connection of a workspace. It is wired to
// workspace eviction.
func (h *Hub) CloseWorkspace(workspaceID string) {
	h.mu.Lock()
	conns := h.active[workspaceID]
	delete(h.active, workspaceID)
	h.mu.Unlock()

	for cid, conn := range conns {
		_ = conn.Close(websocket.StatusGoingAway, "workspace expired")
		slog.Info("Chat connection closed", "workspace_id", workspaceID, "conn_id", cid)
	}
}
