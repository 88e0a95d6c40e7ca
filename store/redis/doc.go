// Package redis provides Redis-backed checkpoint storage using
// github.com/redis/go-redis/v9.
//
// # Basic Usage
//
//	s := redis.NewRedisCheckpointStore(redis.RedisOptions{
//		Addr:   "localhost:6379",
//		Prefix: "myapp:",      // optional, defaults to "agentgraph:"
//		TTL:    24 * time.Hour, // optional, 0 keeps checkpoints forever
//	})
//	defer s.Close()
//
//	runnable, err := g.Compile(graph.WithCheckpointer(s))
//
// # Layout
//
// Each checkpoint is a JSON string under <prefix>checkpoint:<id>. A thread owns
// a counter, <prefix>thread:<thread>:seq, incremented atomically by Put, and a
// sorted set, <prefix>thread:<thread>:checkpoints, holding checkpoint ids scored
// by sequence number. History reads the sorted set newest first in pages and
// fetches records with MGET.
//
// With a TTL, records expire individually; History and Latest skip index entries
// whose record is gone.
package redis
