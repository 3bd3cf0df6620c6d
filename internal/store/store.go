// Package store implements domain.ConversationStore against Postgres. It
// wraps a *sql.DB (opened with the lib/pq driver) with transaction support
// for the one multi-step write operation that must execute atomically:
// SaveAI's check for an existing assistant turn with the same content hash
// and request ID, followed by the insert.
//
// Single-query reads (ByHash) are called directly against the pool — there
// is no value in wrapping them in a transaction.
//
// Dependency rule: store imports domain only. It never imports orchestrator,
// prompt, executor, or pool.
//
// Expected schema (owned by deployment migrations, not this package):
//
//	CREATE TABLE conversations (
//	    id         BIGSERIAL PRIMARY KEY,
//	    user_id    BIGINT NOT NULL,
//	    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//
//	CREATE TABLE chat_messages (
//	    id              BIGSERIAL PRIMARY KEY,
//	    conversation_id BIGINT NOT NULL REFERENCES conversations(id),
//	    role            TEXT NOT NULL,
//	    content         TEXT NOT NULL,
//	    message_hash    TEXT NOT NULL,
//	    request_id      TEXT NOT NULL,
//	    is_complete     BOOLEAN NOT NULL DEFAULT false,
//	    metadata        JSONB,
//	    created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE INDEX ON chat_messages (conversation_id, message_hash);
package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// Store holds a *sql.DB used both for single queries and to begin
// transactions for SaveAI's hash-check-then-insert sequence.
type Store struct {
	pool *sql.DB
}

// New wraps an already-open, already-pinged *sql.DB. Callers open the pool
// (e.g. sql.Open("postgres", dsn) followed by db.PingContext) before calling
// New; this package never manages the connection's lifecycle itself.
func New(pool *sql.DB) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool. Safe to call once during shutdown.
func (s *Store) Close() error {
	return s.pool.Close()
}

// txFunc runs inside a transaction; a non-nil return rolls it back.
type txFunc func(ctx context.Context, tx *sql.Tx) error

// withTx begins a transaction, runs fn, and commits on success or rolls back
// on any error (including panics). Serializable isolation guards SaveAI's
// read-then-write shape: a concurrent identical submission must not both
// observe "no hash match yet" and insert a duplicate row.
func (s *Store) withTx(ctx context.Context, fn txFunc) error {
	tx, err := s.pool.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("store: begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: fn error: %w; rollback error: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit transaction: %w", err)
	}
	return nil
}
