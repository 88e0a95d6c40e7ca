package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smallnest/agentgraph/store"
)

const (
	threadsDir = "threads"
	idsDir     = "ids"
	ext        = ".json"
)

// FileCheckpointStore writes one JSON file per checkpoint:
//
//	<root>/threads/<thread>/<seq>.json   the checkpoint
//	<root>/ids/<id>                      the relative path of the checkpoint file
//
// Writes are serialized per thread within one process.
type FileCheckpointStore struct {
	root  string
	locks sync.Map // thread id -> *sync.Mutex
}

var _ store.CheckpointStore = (*FileCheckpointStore)(nil)

// NewFileCheckpointStore creates a store rooted at path, creating the directory if needed.
func NewFileCheckpointStore(path string) (*FileCheckpointStore, error) {
	for _, dir := range []string{threadsDir, idsDir} {
		if err := os.MkdirAll(filepath.Join(path, dir), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}
	return &FileCheckpointStore{root: path}, nil
}

func (f *FileCheckpointStore) lock(threadID string) *sync.Mutex {
	mu, _ := f.locks.LoadOrStore(threadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (f *FileCheckpointStore) threadDir(threadID string) string {
	return filepath.Join(f.root, threadsDir, url.PathEscape(threadID))
}

// seqFiles lists the checkpoint files of a thread in Seq order.
func (f *FileCheckpointStore) seqFiles(threadID string) ([]string, error) {
	entries, err := os.ReadDir(f.threadDir(threadID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list thread %s: %w", threadID, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ext) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func seqName(seq int64) string {
	return fmt.Sprintf("%020d%s", seq, ext)
}

// Put writes the checkpoint file and its id index entry.
func (f *FileCheckpointStore) Put(ctx context.Context, cp *store.Checkpoint) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if cp.ThreadID == "" {
		return "", fmt.Errorf("checkpoint has no thread id")
	}

	mu := f.lock(cp.ThreadID)
	mu.Lock()
	defer mu.Unlock()

	names, err := f.seqFiles(cp.ThreadID)
	if err != nil {
		return "", err
	}
	var seq int64 = 1
	if len(names) > 0 {
		last, err := strconv.ParseInt(strings.TrimSuffix(names[len(names)-1], ext), 10, 64)
		if err != nil {
			return "", fmt.Errorf("malformed checkpoint file %s: %w", names[len(names)-1], err)
		}
		seq = last + 1
	}

	cp.ID = store.NewCheckpointID()
	cp.Seq = seq
	cp.CreatedAt = time.Now().UTC()

	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal checkpoint: %w", err)
	}

	dir := f.threadDir(cp.ThreadID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create thread directory: %w", err)
	}
	name := seqName(seq)
	if err := writeAtomic(filepath.Join(dir, name), data); err != nil {
		return "", err
	}
	rel := filepath.Join(threadsDir, url.PathEscape(cp.ThreadID), name)
	if err := writeAtomic(filepath.Join(f.root, idsDir, cp.ID), []byte(rel)); err != nil {
		return "", err
	}

	return cp.ID, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to commit checkpoint: %w", err)
	}
	return nil
}

func readCheckpoint(path string) (*store.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cp store.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint %s: %w", path, err)
	}
	return &cp, nil
}

// Get retrieves a checkpoint by ID
func (f *FileCheckpointStore) Get(_ context.Context, checkpointID string) (*store.Checkpoint, error) {
	if checkpointID == "" || strings.ContainsAny(checkpointID, `/\`) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	rel, err := os.ReadFile(filepath.Join(f.root, idsDir, checkpointID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read checkpoint index: %w", err)
	}
	cp, err := readCheckpoint(filepath.Join(f.root, string(rel)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", store.ErrNotFound, checkpointID)
	}
	return cp, err
}

// Latest returns the newest checkpoint of a thread.
func (f *FileCheckpointStore) Latest(_ context.Context, threadID string) (*store.Checkpoint, error) {
	names, err := f.seqFiles(threadID)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: thread %s", store.ErrNotFound, threadID)
	}
	return readCheckpoint(filepath.Join(f.threadDir(threadID), names[len(names)-1]))
}

// History reads the checkpoint files of a thread one at a time, newest first.
func (f *FileCheckpointStore) History(ctx context.Context, threadID string) iter.Seq2[*store.Checkpoint, error] {
	return func(yield func(*store.Checkpoint, error) bool) {
		names, err := f.seqFiles(threadID)
		if err != nil {
			yield(nil, err)
			return
		}
		dir := f.threadDir(threadID)
		for i := len(names) - 1; i >= 0; i-- {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			cp, err := readCheckpoint(filepath.Join(dir, names[i]))
			if !yield(cp, err) || err != nil {
				return
			}
		}
	}
}

// DeleteThread removes the thread directory and its index entries.
func (f *FileCheckpointStore) DeleteThread(_ context.Context, threadID string) error {
	mu := f.lock(threadID)
	mu.Lock()
	defer mu.Unlock()

	names, err := f.seqFiles(threadID)
	if err != nil {
		return err
	}
	dir := f.threadDir(threadID)
	for _, name := range names {
		cp, err := readCheckpoint(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(f.root, idsDir, cp.ID)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove checkpoint index: %w", err)
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove thread %s: %w", threadID, err)
	}
	return nil
}

// Close is a no-op.
func (f *FileCheckpointStore) Close() error {
	return nil
}
