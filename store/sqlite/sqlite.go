package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/smallnest/agentgraph/store"
)

const (
	columns  = "id, thread_id, parent_id, seq, step, state, next_node, writer, source, created_at"
	pageSize = 100
)

// SqliteCheckpointStore implements store.CheckpointStore using SQLite
type SqliteCheckpointStore struct {
	db        *sql.DB
	tableName string
}

var _ store.CheckpointStore = (*SqliteCheckpointStore)(nil)

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "checkpoints"
}

// NewSqliteCheckpointStore creates a new SQLite checkpoint store.
// Write transactions are opened with BEGIN IMMEDIATE so that writers of a
// thread are serialized by the database lock.
func NewSqliteCheckpointStore(opts SqliteOptions) (*SqliteCheckpointStore, error) {
	path := opts.Path
	if path == "" {
		path = ":memory:"
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", path+sep+"_txlock=immediate&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}
	if strings.Contains(path, ":memory:") {
		// Every connection would see its own in-memory database.
		db.SetMaxOpenConns(1)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "checkpoints"
	}

	s := &SqliteCheckpointStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteCheckpointStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			parent_id TEXT NOT NULL DEFAULT '',
			seq INTEGER NOT NULL,
			step INTEGER NOT NULL,
			state TEXT NOT NULL,
			next_node TEXT NOT NULL,
			writer TEXT NOT NULL,
			source TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (thread_id, seq)
		);
	`, s.tableName)

	_, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteCheckpointStore) Close() error {
	return s.db.Close()
}

// Put stores a checkpoint with the next sequence number of its thread.
func (s *SqliteCheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) (string, error) {
	if cp.ThreadID == "" {
		return "", fmt.Errorf("checkpoint has no thread id")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	query := fmt.Sprintf("SELECT COALESCE(MAX(seq), 0) + 1 FROM %s WHERE thread_id = ?", s.tableName)
	if err := tx.QueryRowContext(ctx, query, cp.ThreadID).Scan(&seq); err != nil {
		return "", fmt.Errorf("failed to read sequence: %w", err)
	}

	id := store.NewCheckpointID()
	createdAt := time.Now().UTC()

	query = fmt.Sprintf(`
		INSERT INTO %s (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName, columns)
	_, err = tx.ExecContext(ctx, query,
		id,
		cp.ThreadID,
		cp.ParentID,
		seq,
		cp.Step,
		string(cp.State),
		cp.NextNode,
		cp.Writer,
		cp.Source,
		createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("failed to save checkpoint: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit checkpoint: %w", err)
	}

	cp.ID = id
	cp.Seq = seq
	cp.CreatedAt = createdAt
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	var state string
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
	cp.State = []byte(state)
	return &cp, nil
}

// Get retrieves a checkpoint by ID
func (s *SqliteCheckpointStore) Get(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", columns, s.tableName)

	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, query, checkpointID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	return cp, nil
}

// Latest returns the checkpoint with the highest sequence number of a thread.
func (s *SqliteCheckpointStore) Latest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE thread_id = ? ORDER BY seq DESC LIMIT 1", columns, s.tableName)

	cp, err := scanCheckpoint(s.db.QueryRowContext(ctx, query, threadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: thread %s", store.ErrNotFound, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest checkpoint: %w", err)
	}
	return cp, nil
}

// History pages through the thread newest first. No connection is held while
// the caller consumes a checkpoint.
func (s *SqliteCheckpointStore) History(ctx context.Context, threadID string) iter.Seq2[*store.Checkpoint, error] {
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

func (s *SqliteCheckpointStore) page(ctx context.Context, threadID string, before int64) ([]*store.Checkpoint, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE thread_id = ? AND seq < ?
		ORDER BY seq DESC
		LIMIT ?
	`, columns, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, threadID, before, pageSize)
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
func (s *SqliteCheckpointStore) DeleteThread(ctx context.Context, threadID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE thread_id = ?", s.tableName)
	_, err := s.db.ExecContext(ctx, query, threadID)
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}
