package observability

import (
	"context"
	"sync"

	"github.com/smallnest/agentgraph/graph"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName is the tracer and meter name used by OTelHook.
const InstrumentationName = "github.com/smallnest/agentgraph"

// Attribute keys set on spans and metrics.
const (
	AttrThreadID     = attribute.Key("agentgraph.thread_id")
	AttrNode         = attribute.Key("agentgraph.node")
	AttrCheckpointID = attribute.Key("agentgraph.checkpoint_id")
	AttrStatus       = attribute.Key("agentgraph.status")
)

// Config configures an OTelHook. Nil providers fall back to the global ones.
type Config struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// OTelHook turns graph trace events into OpenTelemetry spans and metrics.
// A run on a thread becomes a span with one child per node execution;
// checkpoints, interrupts and edge traversals become span events.
//
// Register it with graph.Tracer.AddHook and compile with graph.WithTracer.
type OTelHook struct {
	tracer trace.Tracer

	nodeDuration metric.Float64Histogram
	nodeRuns     metric.Int64Counter
	runs         metric.Int64Counter
	checkpoints  metric.Int64Counter
	interrupts   metric.Int64Counter

	mu    sync.Mutex
	spans map[string]trace.Span
}

var _ graph.TraceHook = (*OTelHook)(nil)

// NewOTelHook creates the hook and its instruments.
func NewOTelHook(cfg Config) (*OTelHook, error) {
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(InstrumentationName)

	h := &OTelHook{
		tracer: tp.Tracer(InstrumentationName),
		spans:  make(map[string]trace.Span),
	}

	var err error
	if h.nodeDuration, err = meter.Float64Histogram("agentgraph.node.duration",
		metric.WithDescription("Time spent executing each graph node"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if h.nodeRuns, err = meter.Int64Counter("agentgraph.node.executions",
		metric.WithDescription("Number of node executions by outcome"),
	); err != nil {
		return nil, err
	}
	if h.runs, err = meter.Int64Counter("agentgraph.runs",
		metric.WithDescription("Number of finished runs by outcome"),
	); err != nil {
		return nil, err
	}
	if h.checkpoints, err = meter.Int64Counter("agentgraph.checkpoints",
		metric.WithDescription("Number of checkpoints written"),
	); err != nil {
		return nil, err
	}
	if h.interrupts, err = meter.Int64Counter("agentgraph.interrupts",
		metric.WithDescription("Number of runs paused before a node"),
	); err != nil {
		return nil, err
	}
	return h, nil
}

// OnEvent implements graph.TraceHook.
func (h *OTelHook) OnEvent(ctx context.Context, span *graph.TraceSpan) {
	switch span.Event {
	case graph.TraceEventGraphStart:
		h.start(ctx, span, "agentgraph.run", AttrThreadID.String(span.ThreadID))

	case graph.TraceEventNodeStart:
		h.start(ctx, span, "agentgraph.node "+span.NodeName,
			AttrThreadID.String(span.ThreadID),
			AttrNode.String(span.NodeName),
		)

	case graph.TraceEventNodeEnd, graph.TraceEventNodeError:
		attrs := metric.WithAttributes(AttrNode.String(span.NodeName), AttrStatus.String(outcome(span.Error)))
		h.nodeDuration.Record(ctx, span.Duration.Seconds(), attrs)
		h.nodeRuns.Add(ctx, 1, attrs)
		h.end(span)

	case graph.TraceEventGraphEnd:
		h.runs.Add(ctx, 1, metric.WithAttributes(AttrStatus.String(outcome(span.Error))))
		h.end(span)

	case graph.TraceEventCheckpoint:
		h.checkpoints.Add(ctx, 1, metric.WithAttributes(AttrNode.String(span.NodeName)))
		h.event(span.ParentID, "checkpoint",
			AttrCheckpointID.String(span.CheckpointID),
			AttrNode.String(span.NodeName),
		)

	case graph.TraceEventInterrupt:
		h.interrupts.Add(ctx, 1, metric.WithAttributes(AttrNode.String(span.NodeName)))
		h.event(span.ParentID, "interrupt", AttrNode.String(span.NodeName))

	case graph.TraceEventEdgeTraversal:
		h.event(span.ParentID, "edge",
			attribute.String("agentgraph.from", span.FromNode),
			attribute.String("agentgraph.to", span.ToNode),
		)
	}
}

func (h *OTelHook) start(ctx context.Context, span *graph.TraceSpan, name string, attrs ...attribute.KeyValue) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if parent, ok := h.spans[span.ParentID]; ok {
		ctx = trace.ContextWithSpan(ctx, parent)
	}
	_, s := h.tracer.Start(ctx, name,
		trace.WithTimestamp(span.StartTime),
		trace.WithAttributes(attrs...),
	)
	h.spans[span.ID] = s
}

func (h *OTelHook) end(span *graph.TraceSpan) {
	h.mu.Lock()
	s, ok := h.spans[span.ID]
	delete(h.spans, span.ID)
	h.mu.Unlock()
	if !ok {
		return
	}

	if span.Error != nil {
		s.RecordError(span.Error)
		s.SetStatus(codes.Error, span.Error.Error())
	} else {
		s.SetStatus(codes.Ok, "")
	}
	s.End(trace.WithTimestamp(span.EndTime))
}

func (h *OTelHook) event(parentID, name string, attrs ...attribute.KeyValue) {
	h.mu.Lock()
	s, ok := h.spans[parentID]
	h.mu.Unlock()
	if ok {
		s.AddEvent(name, trace.WithAttributes(attrs...))
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
