package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ashureev/finboard/internal/domain"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository. ":memory:" opens a
// private in-memory database.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	dsn := ":memory:"
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		// Open database with WAL mode for better concurrency.
		dsn = dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dsn == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS chat_exchanges (
		id TEXT PRIMARY KEY,
		workspace_id TEXT NOT NULL,
		prompt TEXT NOT NULL,
		reply TEXT NOT NULL,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_exchanges_workspace ON chat_exchanges(workspace_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_exchanges_finished ON chat_exchanges(finished_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RecordExchange stores one finished exchange.
func (s *SQLiteStore) RecordExchange(ctx context.Context, e domain.Exchange) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	query := `
	INSERT INTO chat_exchanges (id, workspace_id, prompt, reply, failed, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	var errText interface{}
	if e.Error != "" {
		errText = e.Error
	}

	err := withRetry(ctx, "record_exchange", func() error {
		_, err := s.db.ExecContext(ctx, query,
			e.ID, e.WorkspaceID, e.Prompt, e.Reply, e.Failed, errText,
			e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("insert exchange: %w", err)
	}
	return nil
}

// ListExchanges returns the exchanges of a workspace, oldest first.
func (s *SQLiteStore) ListExchanges(ctx context.Context, workspaceID string, limit int) ([]domain.Exchange, error) {
	query := `
		SELECT id, workspace_id, prompt, reply, failed, error, started_at, finished_at
		FROM chat_exchanges WHERE workspace_id = ?
		ORDER BY started_at ASC, rowid ASC`
	args := []interface{}{workspaceID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close exchange rows", "error", closeErr)
		}
	}()

	var out []domain.Exchange
	for rows.Next() {
		var e domain.Exchange
		var errText sql.NullString
		var startedAt, finishedAt int64

		if err := rows.Scan(
			&e.ID, &e.WorkspaceID, &e.Prompt, &e.Reply, &e.Failed, &errText,
			&startedAt, &finishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan exchange row: %w", err)
		}

		e.Error = errText.String
		e.StartedAt = time.UnixMilli(startedAt)
		e.FinishedAt = time.UnixMilli(finishedAt)
		out = append(out, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exchanges: %w", err)
	}
	return out, nil
}

// CleanupExpired removes exchanges older than retention.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	threshold := time.Now().Add(-retention).UnixMilli()

	var result sql.Result
	err := withRetry(ctx, "cleanup_exchanges", func() error {
		var err error
		result, err = s.db.ExecContext(ctx, `DELETE FROM chat_exchanges WHERE finished_at < ?`, threshold)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("cleanup expired exchanges: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// StartRetentionWorker periodically deletes exchanges older than retention
// until ctx is done.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Transcript retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				deleted, err := repo.CleanupExpired(ctx, retention)
				if err != nil {
					slog.Error("Retention worker failed to cleanup exchanges", "error", err)
				} else if deleted > 0 {
					slog.Info("Retention worker removed old exchanges", "count", deleted)
				}
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
