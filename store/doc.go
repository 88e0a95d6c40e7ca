// Package store defines the checkpoint persistence contract of agentgraph.
//
// A Checkpoint is an immutable record of a thread's full state (JSON encoded by
// the graph's schema) together with the node scheduled to run next. The
// CheckpointStore interface is implemented by several backends:
//
//   - memory: in-process maps, the default checkpointer
//   - file: one JSON file per checkpoint under a directory
//   - sqlite: github.com/mattn/go-sqlite3
//   - postgres: github.com/jackc/pgx/v5
//   - redis: github.com/redis/go-redis/v9
//
// Every backend assigns checkpoint ids (UUIDv7), per-thread sequence numbers and
// creation times in Put, and serializes writes per thread. History is a lazy,
// restartable iter.Seq2 ordered newest first:
//
//	for cp, err := range s.History(ctx, "thread-1") {
//		if err != nil {
//			return err
//		}
//		fmt.Println(cp.Seq, cp.Writer, cp.NextNode)
//	}
//
// The storetest package holds the behaviour every backend must satisfy.
package store
