package graph

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// TraceEvent represents different types of events in graph execution
type TraceEvent string

const (
	// TraceEventGraphStart indicates the start of a run on a thread
	TraceEventGraphStart TraceEvent = "graph_start"

	// TraceEventGraphEnd indicates the end of a run on a thread
	TraceEventGraphEnd TraceEvent = "graph_end"

	// TraceEventNodeStart indicates the start of node execution
	TraceEventNodeStart TraceEvent = "node_start"

	// TraceEventNodeEnd indicates the end of node execution
	TraceEventNodeEnd TraceEvent = "node_end"

	// TraceEventNodeError indicates an error occurred in node execution
	TraceEventNodeError TraceEvent = "node_error"

	// TraceEventEdgeTraversal indicates traversal from one node to another
	TraceEventEdgeTraversal TraceEvent = "edge_traversal"

	// TraceEventCheckpoint indicates a checkpoint was written
	TraceEventCheckpoint TraceEvent = "checkpoint"

	// TraceEventInterrupt indicates a run paused before a node
	TraceEventInterrupt TraceEvent = "interrupt"
)

// TraceSpan represents a span of execution with timing and metadata
type TraceSpan struct {
	// ID is a unique identifier for this span
	ID string

	// ParentID is the ID of the parent span (empty for root spans)
	ParentID string

	// Event indicates the type of event this span represents
	Event TraceEvent

	// ThreadID is the thread the span belongs to
	ThreadID string

	// NodeName is the name of the node being executed (if applicable)
	NodeName string

	// FromNode is the source node for edge traversals
	FromNode string

	// ToNode is the destination node for edge traversals
	ToNode string

	// CheckpointID is set on checkpoint events
	CheckpointID string

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// State is the update or final state, set when the span ends
	State any

	// Error contains any error that occurred during execution
	Error error

	// Metadata contains additional key-value pairs for observability
	Metadata map[string]any
}

// TraceHook defines the interface for trace event handlers.
// Hooks are called synchronously from the executing goroutine.
type TraceHook interface {
	// OnEvent is called when a trace event occurs
	OnEvent(ctx context.Context, span *TraceSpan)
}

// TraceHookFunc is a function adapter for TraceHook
type TraceHookFunc func(ctx context.Context, span *TraceSpan)

// OnEvent implements the TraceHook interface
func (f TraceHookFunc) OnEvent(ctx context.Context, span *TraceSpan) {
	f(ctx, span)
}

// Tracer manages trace collection and hooks
type Tracer struct {
	mu    sync.RWMutex
	hooks []TraceHook
	spans map[string]*TraceSpan
}

// NewTracer creates a new tracer instance
func NewTracer() *Tracer {
	return &Tracer{
		spans: make(map[string]*TraceSpan),
	}
}

// AddHook registers a new trace hook
func (t *Tracer) AddHook(hook TraceHook) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hooks = append(t.hooks, hook)
}

func (t *Tracer) newSpan(ctx context.Context, event TraceEvent) *TraceSpan {
	span := &TraceSpan{
		ID:        uuid.NewString(),
		Event:     event,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
	}
	if parent := SpanFromContext(ctx); parent != nil {
		span.ParentID = parent.ID
		span.ThreadID = parent.ThreadID
	}
	return span
}

func (t *Tracer) emit(ctx context.Context, span *TraceSpan) {
	t.mu.Lock()
	t.spans[span.ID] = span
	hooks := t.hooks
	t.mu.Unlock()

	for _, hook := range hooks {
		hook.OnEvent(ctx, span)
	}
}

// StartSpan creates a new trace span. The thread and parent are taken from the
// span in ctx, if any.
func (t *Tracer) StartSpan(ctx context.Context, event TraceEvent, nodeName string) *TraceSpan {
	span := t.newSpan(ctx, event)
	span.NodeName = nodeName
	t.emit(ctx, span)
	return span
}

// StartThreadSpan starts the root span of a run on threadID.
func (t *Tracer) StartThreadSpan(ctx context.Context, threadID string) *TraceSpan {
	span := t.newSpan(ctx, TraceEventGraphStart)
	span.ThreadID = threadID
	t.emit(ctx, span)
	return span
}

// EndSpan completes a trace span
func (t *Tracer) EndSpan(ctx context.Context, span *TraceSpan, state any, err error) {
	t.mu.Lock()
	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	span.State = state
	span.Error = err

	switch span.Event {
	case TraceEventNodeStart:
		if err != nil {
			span.Event = TraceEventNodeError
		} else {
			span.Event = TraceEventNodeEnd
		}
	case TraceEventGraphStart:
		span.Event = TraceEventGraphEnd
	}
	hooks := t.hooks
	t.mu.Unlock()

	for _, hook := range hooks {
		hook.OnEvent(ctx, span)
	}
}

func (t *Tracer) instant(ctx context.Context, span *TraceSpan) {
	span.EndTime = span.StartTime
	t.emit(ctx, span)
}

// TraceEdgeTraversal records an edge traversal event
func (t *Tracer) TraceEdgeTraversal(ctx context.Context, fromNode, toNode string) {
	span := t.newSpan(ctx, TraceEventEdgeTraversal)
	span.FromNode = fromNode
	span.ToNode = toNode
	t.instant(ctx, span)
}

// TraceCheckpoint records that writer produced checkpoint id on threadID.
func (t *Tracer) TraceCheckpoint(ctx context.Context, threadID, id, writer string) {
	span := t.newSpan(ctx, TraceEventCheckpoint)
	span.ThreadID = threadID
	span.CheckpointID = id
	span.NodeName = writer
	t.instant(ctx, span)
}

// TraceInterrupt records a pause before node on threadID.
func (t *Tracer) TraceInterrupt(ctx context.Context, threadID, node string) {
	span := t.newSpan(ctx, TraceEventInterrupt)
	span.ThreadID = threadID
	span.NodeName = node
	t.instant(ctx, span)
}

// GetSpans returns a copy of all collected spans
func (t *Tracer) GetSpans() map[string]*TraceSpan {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]*TraceSpan, len(t.spans))
	for k, v := range t.spans {
		out[k] = v
	}
	return out
}

// Clear removes all collected spans
func (t *Tracer) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = make(map[string]*TraceSpan)
}

// Context keys for span storage
type contextKey string

const spanContextKey contextKey = "agentgraph_span"

// ContextWithSpan returns a new context with the span stored
func ContextWithSpan(ctx context.Context, span *TraceSpan) context.Context {
	return context.WithValue(ctx, spanContextKey, span)
}

// SpanFromContext extracts a span from context
func SpanFromContext(ctx context.Context) *TraceSpan {
	if span, ok := ctx.Value(spanContextKey).(*TraceSpan); ok {
		return span
	}
	return nil
}
