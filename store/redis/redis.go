package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/smallnest/agentgraph/store"
)

const pageSize = 100

// RedisCheckpointStore implements store.CheckpointStore using Redis.
//
// Keys:
//
//	<prefix>checkpoint:<id>              checkpoint JSON
//	<prefix>thread:<thread>:seq          sequence counter (INCR)
//	<prefix>thread:<thread>:checkpoints  sorted set of ids scored by seq
type RedisCheckpointStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.CheckpointStore = (*RedisCheckpointStore)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "agentgraph:"
	TTL      time.Duration // Expiration for checkpoints, default 0 (no expiration)
}

// NewRedisCheckpointStore creates a new Redis checkpoint store
func NewRedisCheckpointStore(opts RedisOptions) *RedisCheckpointStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "agentgraph:"
	}

	return &RedisCheckpointStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

func (s *RedisCheckpointStore) checkpointKey(id string) string {
	return fmt.Sprintf("%scheckpoint:%s", s.prefix, id)
}

func (s *RedisCheckpointStore) seqKey(threadID string) string {
	return fmt.Sprintf("%sthread:%s:seq", s.prefix, threadID)
}

func (s *RedisCheckpointStore) threadKey(threadID string) string {
	return fmt.Sprintf("%sthread:%s:checkpoints", s.prefix, threadID)
}

// Put stores a checkpoint. The sequence number comes from INCR on the thread
// counter; the record and its index entry are written in one MULTI block.
func (s *RedisCheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) (string, error) {
	if cp.ThreadID == "" {
		return "", fmt.Errorf("checkpoint has no thread id")
	}

	seq, err := s.client.Incr(ctx, s.seqKey(cp.ThreadID)).Result()
	if err != nil {
		return "", fmt.Errorf("failed to allocate sequence: %w", err)
	}

	record := *cp
	record.ID = store.NewCheckpointID()
	record.Seq = seq
	record.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(&record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	threadKey := s.threadKey(cp.ThreadID)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.checkpointKey(record.ID), data, s.ttl)
		pipe.ZAdd(ctx, threadKey, redis.Z{Score: float64(seq), Member: record.ID})
		if s.ttl > 0 {
			pipe.Expire(ctx, threadKey, s.ttl)
			pipe.Expire(ctx, s.seqKey(cp.ThreadID), s.ttl)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to save checkpoint to redis: %w", err)
	}

	cp.ID = record.ID
	cp.Seq = record.Seq
	cp.CreatedAt = record.CreatedAt
	return cp.ID, nil
}

func decode(data []byte) (*store.Checkpoint, error) {
	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// Get retrieves a checkpoint by ID
func (s *RedisCheckpointStore) Get(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	data, err := s.client.Get(ctx, s.checkpointKey(checkpointID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint from redis: %w", err)
	}
	return decode(data)
}

// Latest returns the checkpoint with the highest sequence number of a thread.
func (s *RedisCheckpointStore) Latest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	for cp, err := range s.History(ctx, threadID) {
		return cp, err
	}
	return nil, fmt.Errorf("%w: thread %s", store.ErrNotFound, threadID)
}

// History walks the thread index newest first, one page at a time.
// Index entries whose record has expired are skipped.
func (s *RedisCheckpointStore) History(ctx context.Context, threadID string) iter.Seq2[*store.Checkpoint, error] {
	return func(yield func(*store.Checkpoint, error) bool) {
		upper := "+inf"
		for {
			entries, err := s.client.ZRevRangeByScoreWithScores(ctx, s.threadKey(threadID), &redis.ZRangeBy{
				Min:   "-inf",
				Max:   upper,
				Count: pageSize,
			}).Result()
			if err != nil {
				yield(nil, fmt.Errorf("failed to list checkpoints for thread %s: %w", threadID, err))
				return
			}
			if len(entries) == 0 {
				return
			}

			keys := make([]string, len(entries))
			for i, e := range entries {
				keys[i] = s.checkpointKey(e.Member.(string))
			}
			values, err := s.client.MGet(ctx, keys...).Result()
			if err != nil {
				yield(nil, fmt.Errorf("failed to fetch checkpoints: %w", err))
				return
			}

			for _, v := range values {
				str, ok := v.(string)
				if !ok {
					continue
				}
				cp, err := decode([]byte(str))
				if !yield(cp, err) || err != nil {
					return
				}
			}

			if len(entries) < pageSize {
				return
			}
			upper = "(" + strconv.FormatInt(int64(entries[len(entries)-1].Score), 10)
		}
	}
}

// DeleteThread removes the checkpoints, the index and the counter of a thread.
func (s *RedisCheckpointStore) DeleteThread(ctx context.Context, threadID string) error {
	threadKey := s.threadKey(threadID)
	ids, err := s.client.ZRange(ctx, threadKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("failed to get checkpoints for deletion: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.checkpointKey(id))
		}
		pipe.Del(ctx, threadKey, s.seqKey(threadID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete thread: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisCheckpointStore) Close() error {
	return s.client.Close()
}
