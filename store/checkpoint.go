package store

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a checkpoint or a thread has no stored record.
var ErrNotFound = errors.New("checkpoint not found")

// Checkpoint sources.
const (
	SourceInput  = "input"
	SourceLoop   = "loop"
	SourceUpdate = "update"
	SourceFork   = "fork"
)

// Checkpoint is an immutable snapshot of a thread's full state plus the node
// scheduled to run next. Checkpoints of a thread form a tree through ParentID.
type Checkpoint struct {
	ThreadID string `json:"thread_id"`
	ID       string `json:"id"`
	// ParentID is empty for the first checkpoint of a lineage.
	ParentID string          `json:"parent_id,omitempty"`
	State    json.RawMessage `json:"state"`
	// NextNode is the node to run from this checkpoint, END when the run is over.
	NextNode string `json:"next_node"`
	// Writer is the node whose update produced this checkpoint.
	Writer string `json:"writer"`
	Source string `json:"source"`
	// Step is the depth of the checkpoint in its lineage.
	Step int `json:"step"`
	// Seq totally orders the writes of a thread. Assigned by Put.
	Seq       int64     `json:"seq"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone returns a deep copy of the checkpoint.
func (c *Checkpoint) Clone() *Checkpoint {
	cp := *c
	cp.State = slices.Clone(c.State)
	return &cp
}

// CheckpointStore defines the interface for checkpoint persistence.
// Implementations serialize writes per thread and never modify a stored checkpoint.
type CheckpointStore interface {
	// Put stores a new checkpoint. It assigns ID, Seq and CreatedAt on cp and
	// returns the new id.
	Put(ctx context.Context, cp *Checkpoint) (string, error)

	// Latest returns the checkpoint with the highest Seq of the thread.
	Latest(ctx context.Context, threadID string) (*Checkpoint, error)

	// Get retrieves a checkpoint by ID
	Get(ctx context.Context, checkpointID string) (*Checkpoint, error)

	// History yields the checkpoints of a thread, newest first.
	// Every range over the returned sequence reads the store again.
	History(ctx context.Context, threadID string) iter.Seq2[*Checkpoint, error]

	// DeleteThread removes every checkpoint of a thread.
	DeleteThread(ctx context.Context, threadID string) error

	// Close releases the resources held by the store.
	Close() error
}

// NewCheckpointID returns a time-ordered unique checkpoint id.
func NewCheckpointID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Collect drains a history sequence into a slice.
func Collect(seq iter.Seq2[*Checkpoint, error]) ([]*Checkpoint, error) {
	var out []*Checkpoint
	for cp, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// ErrorSeq returns a sequence yielding err once.
func ErrorSeq(err error) iter.Seq2[*Checkpoint, error] {
	return func(yield func(*Checkpoint, error) bool) {
		yield(nil, err)
	}
}
