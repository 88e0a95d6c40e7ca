// Package sqlite provides SQLite-backed checkpoint storage using
// github.com/mattn/go-sqlite3.
//
// # Basic Usage
//
//	s, err := sqlite.NewSqliteCheckpointStore(sqlite.SqliteOptions{
//		Path:      "./checkpoints.db",
//		TableName: "checkpoints", // optional
//	})
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	runnable, err := g.Compile(graph.WithCheckpointer(s))
//
// An empty Path or ":memory:" opens a private in-memory database limited to a
// single connection.
//
// # Concurrency
//
// Transactions are started with BEGIN IMMEDIATE (the _txlock=immediate DSN
// parameter), so the sequence number read and the insert of Put happen under the
// database write lock. Readers are never blocked by History: it pages through a
// thread with keyset pagination and releases the connection between pages.
//
// # Schema
//
//	CREATE TABLE checkpoints (
//		id TEXT PRIMARY KEY,
//		thread_id TEXT NOT NULL,
//		parent_id TEXT NOT NULL DEFAULT '',
//		seq INTEGER NOT NULL,
//		step INTEGER NOT NULL,
//		state TEXT NOT NULL,
//		next_node TEXT NOT NULL,
//		writer TEXT NOT NULL,
//		source TEXT NOT NULL,
//		created_at DATETIME NOT NULL,
//		UNIQUE (thread_id, seq)
//	);
package sqlite
