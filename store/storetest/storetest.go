// Package storetest provides the behaviour checks shared by every
// store.CheckpointStore backend.
package storetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/smallnest/agentgraph/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store for one sub-test.
type Factory func(t *testing.T) store.CheckpointStore

// Run exercises the CheckpointStore contract against the stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("put assigns id seq and time", func(t *testing.T) {
		testPutAssigns(t, newStore(t))
	})
	t.Run("get and latest", func(t *testing.T) {
		testGetLatest(t, newStore(t))
	})
	t.Run("missing records", func(t *testing.T) {
		testNotFound(t, newStore(t))
	})
	t.Run("history newest first and restartable", func(t *testing.T) {
		testHistory(t, newStore(t))
	})
	t.Run("history stops early", func(t *testing.T) {
		testHistoryBreak(t, newStore(t))
	})
	t.Run("threads are independent", func(t *testing.T) {
		testThreads(t, newStore(t))
	})
	t.Run("delete thread", func(t *testing.T) {
		testDeleteThread(t, newStore(t))
	})
	t.Run("concurrent writers get distinct seqs", func(t *testing.T) {
		testConcurrentPut(t, newStore(t))
	})
}

func checkpoint(thread, parent string, step int, state string) *store.Checkpoint {
	return &store.Checkpoint{
		ThreadID: thread,
		ParentID: parent,
		State:    json.RawMessage(state),
		NextNode: "node",
		Writer:   "writer",
		Source:   store.SourceLoop,
		Step:     step,
	}
}

func testPutAssigns(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	cp := checkpoint("t1", "", 0, `{"count":0}`)
	id, err := s.Put(ctx, cp)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, cp.ID)
	assert.Equal(t, int64(1), cp.Seq)
	assert.False(t, cp.CreatedAt.IsZero())

	cp2 := checkpoint("t1", id, 1, `{"count":1}`)
	id2, err := s.Put(ctx, cp2)
	require.NoError(t, err)
	assert.NotEqual(t, id, id2)
	assert.Equal(t, int64(2), cp2.Seq)
}

func testGetLatest(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	first := checkpoint("t1", "", 0, `{"count":0}`)
	first.Source = store.SourceInput
	first.Writer = "START"
	id1, err := s.Put(ctx, first)
	require.NoError(t, err)

	id2, err := s.Put(ctx, checkpoint("t1", id1, 1, `{"count":1}`))
	require.NoError(t, err)

	got, err := s.Get(ctx, id1)
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ThreadID)
	assert.Equal(t, id1, got.ID)
	assert.Empty(t, got.ParentID)
	assert.JSONEq(t, `{"count":0}`, string(got.State))
	assert.Equal(t, "node", got.NextNode)
	assert.Equal(t, "START", got.Writer)
	assert.Equal(t, store.SourceInput, got.Source)
	assert.Equal(t, 0, got.Step)
	assert.Equal(t, int64(1), got.Seq)

	latest, err := s.Latest(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, id2, latest.ID)
	assert.Equal(t, id1, latest.ParentID)
	assert.Equal(t, 1, latest.Step)
	assert.JSONEq(t, `{"count":1}`, string(latest.State))
}

func testNotFound(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	_, err := s.Get(ctx, store.NewCheckpointID())
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Latest(ctx, "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := store.Collect(s.History(ctx, "nobody"))
	require.NoError(t, err)
	assert.Empty(t, all)
}

func testHistory(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	var ids []string
	parent := ""
	for i := range 4 {
		id, err := s.Put(ctx, checkpoint("t1", parent, i, fmt.Sprintf(`{"count":%d}`, i)))
		require.NoError(t, err)
		ids = append(ids, id)
		parent = id
	}

	history := s.History(ctx, "t1")
	first, err := store.Collect(history)
	require.NoError(t, err)
	require.Len(t, first, 4)
	for i, cp := range first {
		assert.Equal(t, ids[len(ids)-1-i], cp.ID)
		assert.Equal(t, int64(len(ids)-i), cp.Seq)
	}

	// A second range over the same sequence sees later writes too.
	_, err = s.Put(ctx, checkpoint("t1", parent, 4, `{"count":4}`))
	require.NoError(t, err)

	second, err := store.Collect(history)
	require.NoError(t, err)
	assert.Len(t, second, 5)
}

func testHistoryBreak(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	for i := range 3 {
		_, err := s.Put(ctx, checkpoint("t1", "", i, `{}`))
		require.NoError(t, err)
	}

	seen := 0
	for cp, err := range s.History(ctx, "t1") {
		require.NoError(t, err)
		require.NotNil(t, cp)
		seen++
		if seen == 1 {
			break
		}
	}
	assert.Equal(t, 1, seen)
}

func testThreads(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	a1, err := s.Put(ctx, checkpoint("a", "", 0, `{"who":"a"}`))
	require.NoError(t, err)
	b1 := checkpoint("b", "", 0, `{"who":"b"}`)
	_, err = s.Put(ctx, b1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b1.Seq)

	latestA, err := s.Latest(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, a1, latestA.ID)

	all, err := store.Collect(s.History(ctx, "b"))
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ThreadID)
}

func testDeleteThread(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()

	id, err := s.Put(ctx, checkpoint("gone", "", 0, `{}`))
	require.NoError(t, err)
	kept, err := s.Put(ctx, checkpoint("kept", "", 0, `{}`))
	require.NoError(t, err)

	require.NoError(t, s.DeleteThread(ctx, "gone"))

	_, err = s.Get(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.Latest(ctx, "gone")
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.Get(ctx, kept)
	require.NoError(t, err)
	assert.Equal(t, "kept", got.ThreadID)

	assert.NoError(t, s.DeleteThread(ctx, "never-existed"))
}

func testConcurrentPut(t *testing.T, s store.CheckpointStore) {
	ctx := context.Background()
	const writers = 8

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Put(ctx, checkpoint("busy", "", i, `{}`))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := store.Collect(s.History(ctx, "busy"))
	require.NoError(t, err)
	require.Len(t, all, writers)
	seen := make(map[int64]bool)
	for _, cp := range all {
		assert.False(t, seen[cp.Seq], "duplicate seq %d", cp.Seq)
		seen[cp.Seq] = true
	}
}
