// Package postgres implements [journal.Journal] on a PostgreSQL exchanges
// table via pgx.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn)
//	if err != nil { … }
//	defer store.Close()
//	_ = store.Append(ctx, journal.Entry{Utterance: "hi", Response: "Hello."})
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/yoassist/internal/journal"
)

var _ journal.Journal = (*Store)(nil)

// Store is a PostgreSQL-backed exchange journal. All methods are safe for
// concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to dsn and runs [Migrate] once the pool answers a ping.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("journal store: parse dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("journal store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal store: ping: %w", err)
	}

	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("journal store: migrate: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Append implements [journal.Journal]. A nil ID is replaced with a random
// UUID and a zero At with the current time.
func (s *Store) Append(ctx context.Context, e journal.Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	const q = `
		INSERT INTO exchanges (id, utterance, response, created_at)
		VALUES ($1, $2, $3, $4)`

	if _, err := s.pool.Exec(ctx, q, e.ID, e.Utterance, e.Response, e.At); err != nil {
		return fmt.Errorf("journal store: append: %w", err)
	}
	return nil
}

// Recent implements [journal.Journal].
func (s *Store) Recent(ctx context.Context, limit int) ([]journal.Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	// Newest N, then flipped so callers get chronological order.
	const q = `
		SELECT id, utterance, response, created_at FROM (
		    SELECT id, utterance, response, created_at
		    FROM   exchanges
		    ORDER  BY created_at DESC
		    LIMIT  $1
		) recent
		ORDER BY created_at`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("journal store: recent: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (journal.Entry, error) {
		var e journal.Entry
		err := row.Scan(&e.ID, &e.Utterance, &e.Response, &e.At)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("journal store: scan rows: %w", err)
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return entries, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
