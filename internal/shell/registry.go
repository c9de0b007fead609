package shell

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/finboard/internal/metrics"
)

// Factory builds a fresh workspace for id.
type Factory func(id string) *Workspace

// EvictCallback is called after a workspace is removed from the registry.
type EvictCallback func(id string)

// Registry maps workspace ids to workspaces.
type Registry struct {
	factory Factory
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	items   map[string]*Workspace
	onEvict []EvictCallback
}

// NewRegistry creates a registry whose idle workspaces expire after ttl.
func NewRegistry(factory Factory, ttl time.Duration) *Registry {
	return &Registry{
		factory: factory,
		ttl:     ttl,
		now:     time.Now,
		items:   make(map[string]*Workspace),
	}
}

// OnEvict registers fn to run for every evicted or removed workspace.
func (r *Registry) OnEvict(fn EvictCallback) {
	r.mu.Lock()
	r.onEvict = append(r.onEvict, fn)
	r.mu.Unlock()
}

// Get returns the workspace for id and records activity on it.
func (r *Registry) Get(id string) (*Workspace, bool) {
	r.mu.RLock()
	ws, ok := r.items[id]
	r.mu.RUnlock()
	if ok {
		ws.Touch()
	}
	return ws, ok
}

// GetOrCreate returns the workspace for id, creating it when absent. The
// second result reports whether it was created.
func (r *Registry) GetOrCreate(id string) (*Workspace, bool) {
	if ws, ok := r.Get(id); ok {
		return ws, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.items[id]; ok {
		ws.Touch()
		return ws, false
	}
	ws := r.factory(id)
	r.items[id] = ws
	metrics.ActiveWorkspaces.Set(float64(len(r.items)))
	return ws, true
}

// Remove drops the workspace for id.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.items[id]
	delete(r.items, id)
	metrics.ActiveWorkspaces.Set(float64(len(r.items)))
	callbacks := append([]EvictCallback(nil), r.onEvict...)
	r.mu.Unlock()

	if ok {
		for _, fn := range callbacks {
			fn(id)
		}
	}
}

// Len returns the number of live workspaces.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// Sweep evicts workspaces idle for longer than the TTL and returns their ids.
func (r *Registry) Sweep() []string {
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	var expired []string
	for id, ws := range r.items {
		if ws.LastSeen().Before(cutoff) {
			expired = append(expired, id)
			delete(r.items, id)
		}
	}
	metrics.ActiveWorkspaces.Set(float64(len(r.items)))
	callbacks := append([]EvictCallback(nil), r.onEvict...)
	r.mu.Unlock()

	for _, id := range expired {
		for _, fn := range callbacks {
			fn(id)
		}
	}
	return expired
}

// StartTTLWorker runs a background goroutine that periodically evicts idle
// workspaces until ctx is done.
func StartTTLWorker(ctx context.Context, r *Registry, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("TTL worker started", "interval", interval, "ttl", r.ttl)

		for {
			select {
			case <-ticker.C:
				if expired := r.Sweep(); len(expired) > 0 {
					slog.Info("TTL worker evicted idle workspaces", "count", len(expired), "remaining", r.Len())
				}
			case <-ctx.Done():
				slog.Info("TTL worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

// SweepInterval picks how often to sweep for a given TTL.
func SweepInterval(ttl time.Duration) time.Duration {
	const maxInterval = 5 * time.Minute
	interval := ttl / 4
	if interval <= 0 {
		return time.Second
	}
	if interval > maxInterval {
		return maxInterval
	}
	return interval
}
