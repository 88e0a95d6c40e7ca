package graph

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/store/memory"
)

// DefaultRecursionLimit bounds the number of node executions of a single call.
const DefaultRecursionLimit = 25

// Status is the state of a thread when a call returns.
type Status string

const (
	// StatusReady means the thread can continue with Next; returned when a call
	// stops early because of WithMaxSteps.
	StatusReady Status = "ready"
	// StatusInterrupted means the thread paused before Next.
	StatusInterrupted Status = "interrupted"
	// StatusDone means the thread reached END.
	StatusDone Status = "done"
)

// Result is what Invoke, Resume and Replay return.
type Result struct {
	ThreadID string
	// CheckpointID is the thread's checkpoint the call stopped at.
	CheckpointID string
	State        State
	Status       Status
	// Next is the node that runs on resume, END when done.
	Next string
}

// Interrupted reports whether the run paused before a node.
func (r *Result) Interrupted() bool { return r.Status == StatusInterrupted }

type compiledNode struct {
	Node
	next string
	cond *ConditionalEdge
}

type compileConfig struct {
	store           store.CheckpointStore
	interruptBefore []string
	logger          log.Logger
	tracer          *Tracer
	recursionLimit  int
}

func defaultCompileConfig() *compileConfig {
	return &compileConfig{
		logger:         log.GetDefaultLogger(),
		recursionLimit: DefaultRecursionLimit,
	}
}

// CompileOption configures Compile.
type CompileOption func(*compileConfig)

// WithCheckpointer sets the checkpoint store. The default is an in-memory store.
func WithCheckpointer(s store.CheckpointStore) CompileOption {
	return func(c *compileConfig) { c.store = s }
}

// WithInterruptBefore pauses execution before the given nodes.
func WithInterruptBefore(nodes ...string) CompileOption {
	return func(c *compileConfig) { c.interruptBefore = append(c.interruptBefore, nodes...) }
}

// WithLogger sets the logger of the runnable.
func WithLogger(l log.Logger) CompileOption {
	return func(c *compileConfig) { c.logger = l }
}

// WithTracer emits trace spans for calls, nodes, checkpoints and interrupts.
func WithTracer(t *Tracer) CompileOption {
	return func(c *compileConfig) { c.tracer = t }
}

// WithRecursionLimit bounds the number of node executions per call.
func WithRecursionLimit(n int) CompileOption {
	return func(c *compileConfig) { c.recursionLimit = n }
}

type runConfig struct {
	threadID  string
	listeners []StepListener
	maxSteps  int
}

// RunOption configures a single Invoke, Resume or Replay call.
type RunOption func(*runConfig)

// WithThread makes Replay continue in another thread, forking the checkpoint.
func WithThread(threadID string) RunOption {
	return func(c *runConfig) { c.threadID = threadID }
}

// WithListener receives the step events of the call.
func WithListener(l StepListener) RunOption {
	return func(c *runConfig) { c.listeners = append(c.listeners, l) }
}

// WithMaxSteps stops the call with StatusReady after n node executions.
func WithMaxSteps(n int) RunOption {
	return func(c *runConfig) { c.maxSteps = n }
}

// Runnable is a compiled graph bound to a checkpoint store.
// It is safe for concurrent use; calls on the same thread are serialized.
type Runnable struct {
	graph           *StateGraph
	schema          *MapSchema
	nodes           map[string]*compiledNode
	entryPoint      string
	interruptBefore map[string]bool
	store           store.CheckpointStore
	logger          log.Logger
	tracer          *Tracer
	recursionLimit  int

	initStore sync.Once
	locks     sync.Map // thread id -> *sync.Mutex
}

// Graph returns the graph the runnable was compiled from.
func (r *Runnable) Graph() *StateGraph { return r.graph }

// Schema returns the state schema used for merges and checkpoint encoding.
func (r *Runnable) Schema() *MapSchema { return r.schema }

// Store returns the checkpoint store.
func (r *Runnable) Store() store.CheckpointStore {
	r.initStore.Do(func() {
		if r.store == nil {
			r.store = memory.NewMemoryCheckpointStore()
		}
	})
	return r.store
}

func (r *Runnable) lock(threadID string) func() {
	mu, _ := r.locks.LoadOrStore(threadID, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

func newRunConfig(opts []RunOption) *runConfig {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Invoke starts a run on a thread. The input is merged onto the thread's latest
// state (or an empty state), recorded as an input checkpoint scheduled at the
// entry point, and execution proceeds until END, an interrupt or an error.
func (r *Runnable) Invoke(ctx context.Context, input State, threadID string, opts ...RunOption) (*Result, error) {
	cfg := newRunConfig(opts)
	unlock := r.lock(threadID)
	defer unlock()

	latest, err := r.Store().Latest(ctx, threadID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	base := State{}
	cp := &store.Checkpoint{
		ThreadID: threadID,
		NextNode: r.entryPoint,
		Writer:   START,
		Source:   store.SourceInput,
	}
	if latest != nil {
		if base, err = r.schema.Decode(latest.State); err != nil {
			return nil, err
		}
		cp.ParentID = latest.ID
		cp.Step = latest.Step + 1
	}

	state, err := r.schema.Update(base, input)
	if err != nil {
		return nil, err
	}
	if err := r.put(ctx, cp, state); err != nil {
		return nil, err
	}
	r.logger.Debug("thread %s: input checkpoint %s", threadID, cp.ID)

	return r.run(ctx, cp, state, false, cfg)
}

// Resume continues a thread from its latest checkpoint. A pending interrupt on
// the next node does not fire again.
func (r *Runnable) Resume(ctx context.Context, threadID string, opts ...RunOption) (*Result, error) {
	cfg := newRunConfig(opts)
	unlock := r.lock(threadID)
	defer unlock()

	latest, err := r.Store().Latest(ctx, threadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoint, threadID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load thread %s: %w", threadID, err)
	}

	state, err := r.schema.Decode(latest.State)
	if err != nil {
		return nil, err
	}
	return r.run(ctx, latest, state, true, cfg)
}

func (r *Runnable) put(ctx context.Context, cp *store.Checkpoint, state State) error {
	data, err := r.schema.Encode(state)
	if err != nil {
		return err
	}
	cp.State = data
	if _, err := r.Store().Put(ctx, cp); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}
	if r.tracer != nil {
		r.tracer.TraceCheckpoint(ctx, cp.ThreadID, cp.ID, cp.Writer)
	}
	return nil
}

// run drives the loop from cur. resuming suppresses the interrupt on the first
// node reached.
func (r *Runnable) run(ctx context.Context, cur *store.Checkpoint, state State, resuming bool, cfg *runConfig) (res *Result, err error) {
	threadID := cur.ThreadID

	if r.tracer != nil {
		span := r.tracer.StartThreadSpan(ctx, threadID)
		ctx = ContextWithSpan(ctx, span)
		defer func() {
			var final any
			if res != nil {
				final = res.State
			}
			r.tracer.EndSpan(ctx, span, final, err)
		}()
	}

	result := func(status Status) *Result {
		return &Result{
			ThreadID:     threadID,
			CheckpointID: cur.ID,
			State:        state,
			Status:       status,
			Next:         cur.NextNode,
		}
	}

	for steps := 0; ; steps++ {
		next := cur.NextNode

		if next == END {
			r.logger.Info("thread %s: done at checkpoint %s", threadID, cur.ID)
			r.notify(ctx, cfg, StepEvent{Event: EventChainEnd, ThreadID: threadID, State: state, CheckpointID: cur.ID, Next: END})
			return result(StatusDone), nil
		}

		if r.interruptBefore[next] && !(resuming && steps == 0) {
			r.logger.Info("thread %s: interrupted before %s", threadID, next)
			if r.tracer != nil {
				r.tracer.TraceInterrupt(ctx, threadID, next)
			}
			r.notify(ctx, cfg, StepEvent{Event: NodeEventInterrupt, ThreadID: threadID, NodeName: next, State: state, CheckpointID: cur.ID, Next: next})
			return result(StatusInterrupted), nil
		}

		if cfg.maxSteps > 0 && steps >= cfg.maxSteps {
			return result(StatusReady), nil
		}

		if steps >= r.recursionLimit {
			return nil, fmt.Errorf("%w: %d steps on thread %s", ErrRecursionLimit, r.recursionLimit, threadID)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node, ok := r.nodes[next]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, next)
		}

		r.logger.Debug("thread %s: step %d running %s", threadID, steps, next)
		start := time.Now()
		update, err := r.execute(ctx, node, state, threadID, cfg)
		if err != nil {
			r.logger.Error("thread %s: node %s failed: %v", threadID, next, err)
			return nil, fmt.Errorf("node %s: %w", next, err)
		}

		merged, err := r.schema.Update(state, update)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", next, err)
		}

		target, err := r.route(ctx, node, merged)
		if err != nil {
			return nil, err
		}
		if r.tracer != nil {
			r.tracer.TraceEdgeTraversal(ctx, next, target)
		}

		child := &store.Checkpoint{
			ThreadID: threadID,
			ParentID: cur.ID,
			NextNode: target,
			Writer:   next,
			Source:   store.SourceLoop,
			Step:     cur.Step + 1,
		}
		if err := r.put(ctx, child, merged); err != nil {
			return nil, err
		}

		cur, state = child, merged
		r.notify(ctx, cfg, StepEvent{
			Event:        NodeEventComplete,
			ThreadID:     threadID,
			NodeName:     next,
			Update:       update,
			State:        state,
			CheckpointID: cur.ID,
			Next:         target,
			Duration:     time.Since(start),
		})
	}
}

// execute calls the node function, turning a panic into an error.
func (r *Runnable) execute(ctx context.Context, node *compiledNode, state State, threadID string, cfg *runConfig) (update State, err error) {
	r.notify(ctx, cfg, StepEvent{Event: NodeEventStart, ThreadID: threadID, NodeName: node.Name, State: state})

	var span *TraceSpan
	if r.tracer != nil {
		span = r.tracer.StartSpan(ctx, TraceEventNodeStart, node.Name)
		ctx = ContextWithSpan(ctx, span)
	}

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if span != nil {
			r.tracer.EndSpan(ctx, span, update, err)
		}
		if err != nil {
			r.notify(ctx, cfg, StepEvent{Event: NodeEventError, ThreadID: threadID, NodeName: node.Name, State: state, Error: err})
		}
	}()

	// Nodes get a copy so that in-place edits cannot reach the previous state.
	return node.Function(ctx, cloneState(state))
}

// route picks the successor of node for the merged state.
func (r *Runnable) route(ctx context.Context, node *compiledNode, state State) (string, error) {
	if node.cond == nil {
		return node.next, nil
	}
	label := node.cond.Condition.Fn(ctx, state)
	target, ok := node.cond.Targets[label]
	if !ok {
		return "", &UnknownLabelError{Node: node.Name, Label: label}
	}
	return target, nil
}

func (r *Runnable) notify(ctx context.Context, cfg *runConfig, event StepEvent) {
	if len(cfg.listeners) == 0 {
		return
	}
	event.Timestamp = time.Now()
	for _, l := range cfg.listeners {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logger.Warn("step listener panicked: %v", p)
				}
			}()
			l.OnStep(ctx, event)
		}()
	}
}

func cloneState(s State) State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
