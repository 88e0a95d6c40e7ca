package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallnest/agentgraph/store"
)

const (
	columns  = "id, thread_id, parent_id, seq, step, state, next_node, writer, source, created_at"
	pageSize = 100
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresCheckpointStore implements store.CheckpointStore using PostgreSQL
type PostgresCheckpointStore struct {
	pool      DBPool
	tableName string
}

var _ store.CheckpointStore = (*PostgresCheckpointStore)(nil)

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "checkpoints"
}

// NewPostgresCheckpointStore creates a new Postgres checkpoint store
func NewPostgresCheckpointStore(ctx context.Context, opts PostgresOptions) (*PostgresCheckpointStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	return NewPostgresCheckpointStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresCheckpointStoreWithPool creates a new Postgres checkpoint store with an existing pool
// Useful for testing with mocks
func NewPostgresCheckpointStoreWithPool(pool DBPool, tableName string) *PostgresCheckpointStore {
	if tableName == "" {
		tableName = "checkpoints"
	}
	return &PostgresCheckpointStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			seq BIGINT NOT NULL,
			step INTEGER NOT NULL,
			state JSONB NOT NULL,
			next_node TEXT NOT NULL,
			writer TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (thread_id, seq)
		)
	`, s.tableName)

	_, err := s.pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresCheckpointStore) Close() error {
	s.pool.Close()
	return nil
}

// Put stores a checkpoint. The thread's writers are serialized by a
// transaction-scoped advisory lock on the thread id.
func (s *PostgresCheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) (string, error) {
	if cp.ThreadID == "" {
		return "", fmt.Errorf("checkpoint has no thread id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}

	id := store.NewCheckpointID()
	createdAt := time.Now().UTC()
	seq, err := s.insert(ctx, tx, id, createdAt, cp)
	if err != nil {
		_ = tx.Rollback(ctx)
		return "", err
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	cp.ID = id
	cp.Seq = seq
	cp.CreatedAt = createdAt
	return id, nil
}

func (s *PostgresCheckpointStore) insert(ctx context.Context, tx pgx.Tx, id string, createdAt time.Time, cp *store.Checkpoint) (int64, error) {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", cp.ThreadID); err != nil {
		return 0, fmt.Errorf("failed to lock thread %s: %w", cp.ThreadID, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT $1, $2, $3, COALESCE(MAX(seq), 0) + 1, $4, $5, $6, $7, $8, $9
		FROM %s WHERE thread_id = $2
		RETURNING seq
	`, s.tableName, columns, s.tableName)

	var seq int64
	err := tx.QueryRow(ctx, query,
		id,
		cp.ThreadID,
		cp.ParentID,
		cp.Step,
		[]byte(cp.State),
		cp.NextNode,
		cp.Writer,
		cp.Source,
		createdAt,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to save checkpoint: %w", err)
	}
	return seq, nil
}

func scanCheckpoint(row pgx.Row) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	var state []byte
	err := row.Scan(
		&cp.ID,
		&cp.ThreadID,
		&cp.ParentID,
		&cp.Seq,
		&cp.Step,
		&state,
		&cp.NextNode,
		&cp.Writer,
		&cp.Source,
		&cp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	cp.State = state
	return &cp, nil
}

// Get retrieves a checkpoint by ID
func (s *PostgresCheckpointStore) Get(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", columns, s.tableName)

	cp, err := scanCheckpoint(s.pool.QueryRow(ctx, query, checkpointID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// Latest returns the checkpoint with the highest sequence number of a thread.
func (s *PostgresCheckpointStore) Latest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE thread_id = $1 ORDER BY seq DESC LIMIT 1", columns, s.tableName)

	cp, err := scanCheckpoint(s.pool.QueryRow(ctx, query, threadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %s", store.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	return cp, nil
}

// History pages through the thread newest first.
func (s *PostgresCheckpointStore) History(ctx context.Context, threadID string) iter.Seq2[*store.Checkpoint, error] {
	return func(yield func(*store.Checkpoint, error) bool) {
		before := int64(math.MaxInt64)
		for {
			page, err := s.page(ctx, threadID, before)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, cp := range page {
				if !yield(cp, nil) {
					return
				}
			}
			if len(page) < pageSize {
				return
			}
			before = page[len(page)-1].Seq
		}
	}
}

func (s *PostgresCheckpointStore) page(ctx context.Context, threadID string, before int64) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE thread_id = $1 AND seq < $2
		ORDER BY seq DESC
		LIMIT $3
	`, columns, s.tableName)

	rows, err := s.pool.Query(ctx, query, threadID, before, pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*store.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint row: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoint rows: %w", err)
	}
	return checkpoints, nil
}

// DeleteThread removes all checkpoints of a thread
func (s *PostgresCheckpointStore) DeleteThread(ctx context.Context, threadID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = $1", s.tableName)
	_, err := s.pool.Exec(ctx, query, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}
