// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"github.com/ashureev/finboard/internal/domain"
)

// Repository persists chat exchanges for operators. Nothing in it is read back
// into a chat widget.
type Repository interface {
	// RecordExchange stores one finished exchange. An empty ID is assigned.
	RecordExchange(ctx context.Context, e domain.Exchange) error

	// ListExchanges returns the exchanges of a workspace, oldest first.
	// limit <= 0 means no limit.
	ListExchanges(ctx context.Context, workspaceID string, limit int) ([]domain.Exchange, error)

	// CleanupExpired removes exchanges that finished before now minus retention.
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
