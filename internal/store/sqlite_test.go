package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/finboard/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "finboard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListExchanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	start := time.Now().Truncate(time.Millisecond)

	require.NoError(t, s.RecordExchange(ctx, domain.Exchange{
		WorkspaceID: "ws-1", Prompt: "What is APR?", Reply: "APR is...",
		StartedAt: start, FinishedAt: start.Add(time.Second),
	}))
	require.NoError(t, s.RecordExchange(ctx, domain.Exchange{
		WorkspaceID: "ws-1", Prompt: "again", Reply: domain.ErrorPlaceholder,
		Failed: true, Error: "API request failed: status 500",
		StartedAt: start.Add(2 * time.Second), FinishedAt: start.Add(3 * time.Second),
	}))
	require.NoError(t, s.RecordExchange(ctx, domain.Exchange{
		WorkspaceID: "ws-2", Prompt: "other", Reply: "x",
		StartedAt: start, FinishedAt: start,
	}))

	got, err := s.ListExchanges(ctx, "ws-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, "What is APR?", got[0].Prompt)
	assert.False(t, got[0].Failed)
	assert.Empty(t, got[0].Error)
	assert.True(t, got[0].StartedAt.Equal(start))
	assert.Equal(t, time.Second, got[0].Duration())

	assert.True(t, got[1].Failed)
	assert.Equal(t, "API request failed: status 500", got[1].Error)

	limited, err := s.ListExchanges(ctx, "ws-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	none, err := s.ListExchanges(ctx, "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCleanupExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.RecordExchange(ctx, domain.Exchange{
		WorkspaceID: "ws", Prompt: "old", StartedAt: now.Add(-48 * time.Hour), FinishedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, s.RecordExchange(ctx, domain.Exchange{
		WorkspaceID: "ws", Prompt: "new", StartedAt: now, FinishedAt: now,
	}))

	deleted, err := s.CleanupExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	left, err := s.ListExchanges(ctx, "ws", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "new", left[0].Prompt)
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewSQLite(":memory:")
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.RecordExchange(context.Background(), domain.Exchange{WorkspaceID: "ws", Prompt: "p"}))
	got, err := s.ListExchanges(context.Background(), "ws", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestIsSQLiteConflictError(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.True(t, IsSQLiteConflictError(errors.New("SQLITE_BUSY: retry")))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked")))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table")))
}

func TestWithRetry(t *testing.T) {
	var calls int
	err := withRetry(context.Background(), "test", func() error {
		calls++
		if calls < 2 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	plain := errors.New("constraint failed")
	err = withRetry(context.Background(), "test", func() error {
		calls++
		return plain
	})
	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 1, calls)

	calls = 0
	err = withRetry(context.Background(), "test", func() error {
		calls++
		return errors.New("SQLITE_BUSY")
	})
	assert.Error(t, err)
	assert.Equal(t, maxRetries, calls)
}
