package graph

import (
	"context"
	"time"

	"github.com/smallnest/agentgraph/log"
)

// NodeEvent represents different types of step events
type NodeEvent string

const (
	// NodeEventStart indicates a node has started execution
	NodeEventStart NodeEvent = "start"

	// NodeEventComplete indicates a node finished and its checkpoint was written
	NodeEventComplete NodeEvent = "complete"

	// NodeEventError indicates a node encountered an error
	NodeEventError NodeEvent = "error"

	// NodeEventInterrupt indicates the run paused before a node
	NodeEventInterrupt NodeEvent = "interrupt"

	// EventChainEnd indicates the thread reached END
	EventChainEnd NodeEvent = "chain_end"
)

// StepEvent describes one step of a run.
type StepEvent struct {
	// Timestamp when the event occurred
	Timestamp time.Time

	ThreadID string

	// NodeName is the node the event is about
	NodeName string

	// Event is the type of event
	Event NodeEvent

	// Update is the partial state returned by the node (complete events only)
	Update State

	// State is the thread state at the time of the event
	State State

	// CheckpointID is the checkpoint the event refers to, when there is one
	CheckpointID string

	// Next is the node scheduled after this event
	Next string

	// Error contains the node error (error events only)
	Error error

	// Duration is how long the node took (complete events only)
	Duration time.Duration
}

// StepListener receives the step events of a run. It is called synchronously on
// the executing goroutine; a panicking listener is logged and ignored.
type StepListener interface {
	OnStep(ctx context.Context, event StepEvent)
}

// StepListenerFunc is a function adapter for StepListener
type StepListenerFunc func(ctx context.Context, event StepEvent)

// OnStep implements the StepListener interface
func (f StepListenerFunc) OnStep(ctx context.Context, event StepEvent) {
	f(ctx, event)
}

// ChannelListener forwards events to a channel.
type ChannelListener struct {
	events chan StepEvent
}

// NewChannelListener creates a listener with a buffered channel of the given size.
// Events are dropped when the buffer is full.
func NewChannelListener(buffer int) *ChannelListener {
	return &ChannelListener{events: make(chan StepEvent, buffer)}
}

// Events returns the channel events are delivered on.
func (l *ChannelListener) Events() <-chan StepEvent { return l.events }

// OnStep implements StepListener.
func (l *ChannelListener) OnStep(_ context.Context, event StepEvent) {
	select {
	case l.events <- event:
	default:
	}
}

// LoggingListener logs every step event.
type LoggingListener struct {
	logger log.Logger
}

// NewLoggingListener creates a listener writing to logger, or the default logger when nil.
func NewLoggingListener(logger log.Logger) *LoggingListener {
	if logger == nil {
		logger = log.GetDefaultLogger()
	}
	return &LoggingListener{logger: logger}
}

// OnStep implements StepListener.
func (l *LoggingListener) OnStep(_ context.Context, event StepEvent) {
	switch event.Event {
	case NodeEventStart:
		l.logger.Debug("[%s] %s started", event.ThreadID, event.NodeName)
	case NodeEventComplete:
		l.logger.Info("[%s] %s completed in %v, next %s (checkpoint %s)", event.ThreadID, event.NodeName, event.Duration, event.Next, event.CheckpointID)
	case NodeEventError:
		l.logger.Error("[%s] %s failed: %v", event.ThreadID, event.NodeName, event.Error)
	case NodeEventInterrupt:
		l.logger.Info("[%s] interrupted before %s", event.ThreadID, event.NodeName)
	case EventChainEnd:
		l.logger.Info("[%s] finished at checkpoint %s", event.ThreadID, event.CheckpointID)
	}
}
