// Package probe tracks the reachability of the auth and chat backends and
// publishes it through the standard gRPC health service.
package probe

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ashureev/finboard/internal/metrics"
)

// Pinger reports whether a backend answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Target is a named backend to probe.
type Target struct {
	Name   string
	Pinger Pinger
}

// Checker probes every target and mirrors the results into a health server
// and the backend_up gauge. The overall service ("") is SERVING only while
// every target is up.
type Checker struct {
	targets []Target
	health  *health.Server
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	last map[string]bool
}

// NewChecker creates a Checker. hs may be nil when no gRPC service is exposed.
func NewChecker(hs *health.Server, timeout time.Duration, logger *slog.Logger, targets ...Target) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{
		targets: targets,
		health:  hs,
		timeout: timeout,
		logger:  logger,
		last:    make(map[string]bool, len(targets)),
	}
}

// CheckOnce probes all targets concurrently and returns their reachability.
func (c *Checker) CheckOnce(ctx context.Context) map[string]bool {
	results := make(map[string]bool, len(c.targets))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, t := range c.targets {
		wg.Add(1)
		go func(t Target) {
			defer wg.Done()
			pctx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			err := t.Pinger.Ping(pctx)
			if err != nil {
				c.logger.Debug("Backend probe failed", "backend", t.Name, "error", err)
			}
			mu.Lock()
			results[t.Name] = err == nil
			mu.Unlock()
		}(t)
	}
	wg.Wait()

	c.apply(results)
	return results
}

func (c *Checker) apply(results map[string]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	all := true
	for name, up := range results {
		if prev, seen := c.last[name]; !seen || prev != up {
			c.logger.Info("Backend reachability changed", "backend", name, "up", up)
		}
		c.last[name] = up

		gauge := 0.0
		if up {
			gauge = 1
		}
		metrics.BackendUp.WithLabelValues(name).Set(gauge)
		c.setStatus(name, up)
		all = all && up
	}
	c.setStatus("", all)
}

func (c *Checker) setStatus(service string, up bool) {
	if c.health == nil {
		return
	}
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if up {
		status = healthpb.HealthCheckResponse_SERVING
	}
	c.health.SetServingStatus(service, status)
}

// Up reports the last probe result of a backend and whether it was probed.
func (c *Checker) Up(name string) (up, known bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	up, known = c.last[name]
	return up, known
}

// Start probes immediately and then on every interval until ctx is done.
func (c *Checker) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		c.CheckOnce(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Backend probe stopped")
				return
			case <-ticker.C:
				c.CheckOnce(ctx)
			}
		}
	}()
}
