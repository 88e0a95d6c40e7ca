package memory

import (
	"context"
	"fmt"
	"iter"
	"sync"
	"time"

	"github.com/smallnest/agentgraph/store"
)

// MemoryCheckpointStore keeps checkpoints in process memory.
// It is the default checkpointer of a compiled graph.
type MemoryCheckpointStore struct {
	mu          sync.RWMutex
	checkpoints map[string]*store.Checkpoint
	threads     map[string]*thread
}

type thread struct {
	mu  sync.Mutex
	ids []string // in Seq order
}

var _ store.CheckpointStore = (*MemoryCheckpointStore)(nil)

// NewMemoryCheckpointStore creates an empty in-memory store.
func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		checkpoints: make(map[string]*store.Checkpoint),
		threads:     make(map[string]*thread),
	}
}

func (m *MemoryCheckpointStore) thread(threadID string, create bool) *thread {
	m.mu.RLock()
	th, ok := m.threads[threadID]
	m.mu.RUnlock()
	if ok || !create {
		return th
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if th, ok = m.threads[threadID]; !ok {
		th = &thread{}
		m.threads[threadID] = th
	}
	return th
}

// Put stores a copy of cp.
func (m *MemoryCheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if cp.ThreadID == "" {
		return "", fmt.Errorf("checkpoint has no thread id")
	}

	th := m.thread(cp.ThreadID, true)
	th.mu.Lock()
	defer th.mu.Unlock()

	cp.ID = store.NewCheckpointID()
	cp.Seq = int64(len(th.ids)) + 1
	cp.CreatedAt = time.Now().UTC()

	m.mu.Lock()
	m.checkpoints[cp.ID] = cp.Clone()
	m.mu.Unlock()
	th.ids = append(th.ids, cp.ID)

	return cp.ID, nil
}

// Get retrieves a checkpoint by ID
func (m *MemoryCheckpointStore) Get(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	m.mu.RLock()
	cp, ok := m.checkpoints[checkpointID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	return cp.Clone(), nil
}

// Latest returns the newest checkpoint of a thread.
func (m *MemoryCheckpointStore) Latest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	ids := m.snapshot(threadID)
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: thread %s", store.ErrNotFound, threadID)
	}
	return m.Get(ctx, ids[len(ids)-1])
}

// History yields the checkpoints of a thread, newest first.
func (m *MemoryCheckpointStore) History(ctx context.Context, threadID string) iter.Seq2[*store.Checkpoint, error] {
	return func(yield func(*store.Checkpoint, error) bool) {
		ids := m.snapshot(threadID)
		for i := len(ids) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			cp, err := m.Get(ctx, ids[i])
			if !yield(cp, err) || err != nil {
				return
			}
		}
	}
}

func (m *MemoryCheckpointStore) snapshot(threadID string) []string {
	th := m.thread(threadID, false)
	if th == nil {
		return nil
	}
	th.mu.Lock()
	defer th.mu.Unlock()
	ids := make([]string, len(th.ids))
	copy(ids, th.ids)
	return ids
}

// DeleteThread removes every checkpoint of a thread.
func (m *MemoryCheckpointStore) DeleteThread(_ context.Context, threadID string) error {
	m.mu.Lock()
	th, ok := m.threads[threadID]
	delete(m.threads, threadID)
	m.mu.Unlock()
	if !ok {
		return nil
	}

	th.mu.Lock()
	ids := th.ids
	th.ids = nil
	th.mu.Unlock()

	m.mu.Lock()
	for _, id := range ids {
		delete(m.checkpoints, id)
	}
	m.mu.Unlock()
	return nil
}

// Close is a no-op.
func (m *MemoryCheckpointStore) Close() error {
	return nil
}
