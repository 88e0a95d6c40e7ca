package graph

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/store/file"
	"github.com/smallnest/agentgraph/store/memory"
)

// Checkpoint is an alias for store.Checkpoint
type Checkpoint = store.Checkpoint

// CheckpointStore is an alias for store.CheckpointStore
type CheckpointStore = store.CheckpointStore

// NewMemoryCheckpointStore creates a new in-memory checkpoint store
func NewMemoryCheckpointStore() store.CheckpointStore {
	return memory.NewMemoryCheckpointStore()
}

// NewFileCheckpointStore creates a new file-based checkpoint store
func NewFileCheckpointStore(path string) (store.CheckpointStore, error) {
	return file.NewFileCheckpointStore(path)
}

// StateSnapshot is a decoded checkpoint.
type StateSnapshot struct {
	ThreadID     string
	CheckpointID string
	ParentID     string
	Values       State
	// Next is the node that runs when execution continues from here.
	Next      string
	Writer    string
	Source    string
	Step      int
	Seq       int64
	CreatedAt time.Time
}

func (r *Runnable) snapshot(cp *store.Checkpoint) (*StateSnapshot, error) {
	values, err := r.schema.Decode(cp.State)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", cp.ID, err)
	}
	return &StateSnapshot{
		ThreadID:     cp.ThreadID,
		CheckpointID: cp.ID,
		ParentID:     cp.ParentID,
		Values:       values,
		Next:         cp.NextNode,
		Writer:       cp.Writer,
		Source:       cp.Source,
		Step:         cp.Step,
		Seq:          cp.Seq,
		CreatedAt:    cp.CreatedAt,
	}, nil
}

func (r *Runnable) latest(ctx context.Context, threadID string) (*store.Checkpoint, error) {
	cp, err := r.Store().Latest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, threadID)
	}
	return cp, err
}

func (r *Runnable) checkpoint(ctx context.Context, checkpointID string) (*store.Checkpoint, error) {
	cp, err := r.Store().Get(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", checkpointID, err)
	}
	return cp, nil
}

// GetState returns the current state of a thread.
func (r *Runnable) GetState(ctx context.Context, threadID string) (*StateSnapshot, error) {
	cp, err := r.latest(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(cp)
}

// GetCheckpoint returns a checkpoint by id, from any thread.
func (r *Runnable) GetCheckpoint(ctx context.Context, checkpointID string) (*StateSnapshot, error) {
	cp, err := r.checkpoint(ctx, checkpointID)
	if err != nil {
		return nil, err
	}
	return r.snapshot(cp)
}

// History yields the checkpoints of a thread, newest first.
// Each call starts a new, independent traversal.
func (r *Runnable) History(ctx context.Context, threadID string) iter.Seq2[*StateSnapshot, error] {
	return func(yield func(*StateSnapshot, error) bool) {
		for cp, err := range r.Store().History(ctx, threadID) {
			if err != nil {
				yield(nil, err)
				return
			}
			snap, err := r.snapshot(cp)
			if !yield(snap, err) || err != nil {
				return
			}
		}
	}
}

// Replay continues execution from a past checkpoint. New checkpoints are chained
// off checkpointID; everything written after it in the original lineage stays
// intact. With WithThread naming another thread, the checkpoint is first copied
// into that thread as a fork and the run continues there.
//
// A pending interrupt on the checkpoint's next node does not fire.
func (r *Runnable) Replay(ctx context.Context, checkpointID string, opts ...RunOption) (*Result, error) {
	cfg := newRunConfig(opts)

	cp, err := r.checkpoint(ctx, checkpointID)
	if err != nil {
		return nil, err
	}

	threadID := cp.ThreadID
	if cfg.threadID != "" {
		threadID = cfg.threadID
	}

	unlock := r.lock(threadID)
	defer unlock()

	state, err := r.schema.Decode(cp.State)
	if err != nil {
		return nil, err
	}

	if threadID != cp.ThreadID {
		fork := &store.Checkpoint{
			ThreadID: threadID,
			ParentID: cp.ID,
			NextNode: cp.NextNode,
			Writer:   cp.Writer,
			Source:   store.SourceFork,
			Step:     cp.Step + 1,
		}
		if err := r.put(ctx, fork, state); err != nil {
			return nil, err
		}
		r.logger.Info("forked checkpoint %s into thread %s as %s", cp.ID, threadID, fork.ID)
		cp = fork
	} else {
		r.logger.Info("replaying thread %s from checkpoint %s", threadID, cp.ID)
	}

	return r.run(ctx, cp, state, true, cfg)
}

// UpdateState merges update onto the state of checkpointID and records the
// result as a new checkpoint whose parent is checkpointID. The target itself is
// never modified.
//
// The next node of the new checkpoint is the successor of asNode when given,
// as if asNode had produced the update. Otherwise the routing of the node that
// wrote the target is evaluated again on the merged state. It returns the new
// checkpoint id; the new checkpoint becomes the thread's latest.
func (r *Runnable) UpdateState(ctx context.Context, checkpointID string, update State, asNode string) (string, error) {
	cp, err := r.checkpoint(ctx, checkpointID)
	if err != nil {
		return "", err
	}

	unlock := r.lock(cp.ThreadID)
	defer unlock()

	return r.updateState(ctx, cp, update, asNode)
}

// UpdateThreadState applies UpdateState to the latest checkpoint of a thread.
func (r *Runnable) UpdateThreadState(ctx context.Context, threadID string, update State, asNode string) (string, error) {
	unlock := r.lock(threadID)
	defer unlock()

	cp, err := r.latest(ctx, threadID)
	if err != nil {
		return "", err
	}
	return r.updateState(ctx, cp, update, asNode)
}

func (r *Runnable) updateState(ctx context.Context, cp *store.Checkpoint, update State, asNode string) (string, error) {
	current, err := r.schema.Decode(cp.State)
	if err != nil {
		return "", err
	}
	merged, err := r.schema.Update(current, update)
	if err != nil {
		return "", err
	}

	writer := cp.Writer
	if asNode != "" {
		writer = asNode
	}
	next, err := r.successor(ctx, writer, merged)
	if err != nil {
		return "", err
	}

	child := &store.Checkpoint{
		ThreadID: cp.ThreadID,
		ParentID: cp.ID,
		NextNode: next,
		Writer:   writer,
		Source:   store.SourceUpdate,
		Step:     cp.Step + 1,
	}
	if err := r.put(ctx, child, merged); err != nil {
		return "", err
	}
	r.logger.Info("thread %s: state updated as %s, next %s (checkpoint %s)", cp.ThreadID, writer, next, child.ID)
	return child.ID, nil
}

// successor returns the node that runs after writer produced state.
func (r *Runnable) successor(ctx context.Context, writer string, state State) (string, error) {
	if writer == START {
		return r.entryPoint, nil
	}
	node, ok := r.nodes[writer]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNodeNotFound, writer)
	}
	return r.route(ctx, node, state)
}
