package graph

import (
	"fmt"
	"maps"
	"slices"
)

// StateGraph is the build-time description of a graph: nodes, edges and an entry
// point. It is turned into an executable Runnable by Compile.
type StateGraph struct {
	// nodes is a map of node names to their corresponding Node objects
	nodes map[string]Node

	// order keeps node names in insertion order for deterministic reports
	order []string

	// duplicates records names added more than once
	duplicates []string

	// edges is a slice of Edge objects representing the connections between nodes
	edges []Edge

	// conditionalEdges holds the label-routed edges
	conditionalEdges []ConditionalEdge

	// entryPoint is the name of the entry point node in the graph
	entryPoint string

	// Schema defines the state structure and update logic
	Schema *MapSchema
}

// NewStateGraph creates a new instance of StateGraph.
// Without a schema every field is overwritten by updates.
func NewStateGraph() *StateGraph {
	return &StateGraph{
		nodes: make(map[string]Node),
	}
}

// NewMessageGraph creates a StateGraph whose "messages" field holds []Message
// merged by identity.
func NewMessageGraph() *StateGraph {
	g := NewStateGraph()
	schema := NewMapSchema()
	schema.RegisterField(MessagesKey, MergeByIDReducer, []Message(nil))
	g.SetSchema(schema)
	return g
}

// AddNode adds a new node to the state graph with the given name, description and function
func (g *StateGraph) AddNode(name string, description string, fn NodeFunc) {
	if _, exists := g.nodes[name]; exists {
		g.duplicates = append(g.duplicates, name)
		return
	}
	g.nodes[name] = Node{
		Name:        name,
		Description: description,
		Function:    fn,
	}
	g.order = append(g.order, name)
}

// AddEdge adds a new edge to the state graph between the "from" and "to" nodes
func (g *StateGraph) AddEdge(from, to string) {
	g.edges = append(g.edges, Edge{
		From: from,
		To:   to,
	})
}

// AddConditionalEdge routes from a node by the label its condition returns.
// Every label must map to a node or END.
func (g *StateGraph) AddConditionalEdge(from string, condition Condition, targets map[string]string) {
	g.conditionalEdges = append(g.conditionalEdges, ConditionalEdge{
		From:      from,
		Condition: condition,
		Targets:   maps.Clone(targets),
	})
}

// SetEntryPoint sets the entry point node name for the state graph
func (g *StateGraph) SetEntryPoint(name string) {
	g.entryPoint = name
}

// SetSchema sets the state schema for the graph
func (g *StateGraph) SetSchema(schema *MapSchema) {
	g.Schema = schema
}

// Nodes returns the nodes in the order they were added.
func (g *StateGraph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Edges returns the unconditional edges.
func (g *StateGraph) Edges() []Edge {
	return slices.Clone(g.edges)
}

// ConditionalEdges returns the conditional edges.
func (g *StateGraph) ConditionalEdges() []ConditionalEdge {
	return slices.Clone(g.conditionalEdges)
}

// EntryPoint returns the entry node name.
func (g *StateGraph) EntryPoint() string {
	return g.entryPoint
}

func (g *StateGraph) isTarget(name string) bool {
	if name == END {
		return true
	}
	_, ok := g.nodes[name]
	return ok
}

// validate returns every structural problem of the graph.
func (g *StateGraph) validate(interruptBefore []string) []string {
	var violations []string
	report := func(format string, args ...any) {
		violations = append(violations, fmt.Sprintf(format, args...))
	}

	if g.entryPoint == "" {
		report("%s", ErrEntryPointNotSet)
	} else if _, ok := g.nodes[g.entryPoint]; !ok {
		report("entry point %q is not a node", g.entryPoint)
	}

	for _, name := range g.duplicates {
		report("duplicate node name %q", name)
	}

	for _, name := range g.order {
		switch name {
		case "", START, END:
			report("node name %q is reserved", name)
		}
		if g.nodes[name].Function == nil {
			report("node %q has no function", name)
		}
	}

	outgoing := make(map[string]int)
	unconditional := make(map[string]bool)
	for _, e := range g.edges {
		if _, ok := g.nodes[e.From]; !ok {
			report("edge from unknown node %q", e.From)
			continue
		}
		if !g.isTarget(e.To) {
			report("edge %s -> %s targets unknown node %q", e.From, e.To, e.To)
		}
		if unconditional[e.From] {
			report("duplicate edge from %q", e.From)
		}
		unconditional[e.From] = true
		outgoing[e.From]++
	}

	conditional := make(map[string]bool)
	for _, ce := range g.conditionalEdges {
		if _, ok := g.nodes[ce.From]; !ok {
			report("conditional edge from unknown node %q", ce.From)
			continue
		}
		if conditional[ce.From] {
			report("duplicate conditional edge from %q", ce.From)
		}
		conditional[ce.From] = true
		if unconditional[ce.From] {
			report("node %q has both an edge and a conditional edge", ce.From)
		}
		outgoing[ce.From]++

		if ce.Condition.Fn == nil {
			report("conditional edge from %q has no condition", ce.From)
		}
		if len(ce.Targets) == 0 {
			report("conditional edge from %q has no targets", ce.From)
		}
		for _, label := range slices.Sorted(maps.Keys(ce.Targets)) {
			if to := ce.Targets[label]; !g.isTarget(to) {
				report("conditional edge from %q label %q targets unknown node %q", ce.From, label, to)
			}
		}
		if ce.Condition.Labels != nil {
			for _, label := range ce.Condition.Labels {
				if _, ok := ce.Targets[label]; !ok {
					report("conditional edge from %q: label %q has no target", ce.From, label)
				}
			}
			for _, label := range slices.Sorted(maps.Keys(ce.Targets)) {
				if !slices.Contains(ce.Condition.Labels, label) {
					report("conditional edge from %q: target label %q is never returned", ce.From, label)
				}
			}
		}
	}

	for _, name := range g.order {
		if outgoing[name] == 0 {
			report("node %q has no outgoing edge", name)
		}
	}

	for _, name := range interruptBefore {
		if _, ok := g.nodes[name]; !ok {
			report("interrupt-before node %q is not a node", name)
		}
	}

	return violations
}

// Compile validates the graph and returns a Runnable.
// All structural problems are reported at once in a *GraphValidationError.
func (g *StateGraph) Compile(opts ...CompileOption) (*Runnable, error) {
	cfg := defaultCompileConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if violations := g.validate(cfg.interruptBefore); len(violations) > 0 {
		return nil, &GraphValidationError{Violations: violations}
	}

	schema := g.Schema
	if schema == nil {
		schema = NewMapSchema()
	}

	table := make(map[string]*compiledNode, len(g.nodes))
	for _, name := range g.order {
		table[name] = &compiledNode{Node: g.nodes[name]}
	}
	for _, e := range g.edges {
		table[e.From].next = e.To
	}
	for i := range g.conditionalEdges {
		ce := g.conditionalEdges[i]
		table[ce.From].cond = &ce
	}

	interrupts := make(map[string]bool, len(cfg.interruptBefore))
	for _, name := range cfg.interruptBefore {
		interrupts[name] = true
	}

	return &Runnable{
		graph:           g,
		schema:          schema,
		nodes:           table,
		entryPoint:      g.entryPoint,
		interruptBefore: interrupts,
		store:           cfg.store,
		logger:          cfg.logger,
		tracer:          cfg.tracer,
		recursionLimit:  cfg.recursionLimit,
	}, nil
}
