package graph

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Exporter renders a graph as a diagram.
type Exporter struct {
	graph *StateGraph
}

// NewExporter creates a new graph exporter for the given graph
func NewExporter(graph *StateGraph) *Exporter {
	return &Exporter{graph: graph}
}

// GetGraphForRunnable returns an Exporter for the compiled graph
func GetGraphForRunnable(r *Runnable) *Exporter {
	return NewExporter(r.graph)
}

// MermaidOptions defines configuration for Mermaid diagram generation
type MermaidOptions struct {
	// Direction of the flowchart (e.g., "TD", "LR")
	Direction string
}

type labelledEdge struct {
	from, to, label string
}

// edges lists unconditional edges followed by conditional ones, sorted by label.
func (ge *Exporter) edges() (plain, conditional []labelledEdge) {
	for _, e := range ge.graph.edges {
		plain = append(plain, labelledEdge{from: e.From, to: e.To})
	}
	for _, ce := range ge.graph.conditionalEdges {
		for _, label := range slices.Sorted(maps.Keys(ce.Targets)) {
			conditional = append(conditional, labelledEdge{from: ce.From, to: ce.Targets[label], label: label})
		}
	}
	return plain, conditional
}

func (ge *Exporter) referencesEnd() bool {
	plain, conditional := ge.edges()
	for _, e := range append(plain, conditional...) {
		if e.to == END {
			return true
		}
	}
	return false
}

// DrawMermaid generates a Mermaid diagram representation of the graph
func (ge *Exporter) DrawMermaid() string {
	return ge.DrawMermaidWithOptions(MermaidOptions{Direction: "TD"})
}

// DrawMermaidWithOptions generates a Mermaid diagram with custom options
func (ge *Exporter) DrawMermaidWithOptions(opts MermaidOptions) string {
	var sb strings.Builder

	direction := opts.Direction
	if direction == "" {
		direction = "TD"
	}
	fmt.Fprintf(&sb, "flowchart %s\n", direction)

	entry := ge.graph.entryPoint
	if entry != "" {
		sb.WriteString("    START([\"START\"])\n")
		sb.WriteString("    style START fill:#90EE90\n")
	}

	for _, name := range ge.graph.order {
		if name == entry {
			fmt.Fprintf(&sb, "    %s[[\"%s\"]]\n", name, name)
			continue
		}
		fmt.Fprintf(&sb, "    %s[\"%s\"]\n", name, name)
	}

	if ge.referencesEnd() {
		sb.WriteString("    END([\"END\"])\n")
		sb.WriteString("    style END fill:#FFB6C1\n")
	}

	if entry != "" {
		fmt.Fprintf(&sb, "    START --> %s\n", entry)
	}

	plain, conditional := ge.edges()
	for _, e := range plain {
		fmt.Fprintf(&sb, "    %s --> %s\n", e.from, e.to)
	}
	for _, e := range conditional {
		fmt.Fprintf(&sb, "    %s -.->|%s| %s\n", e.from, e.label, e.to)
	}

	if entry != "" {
		fmt.Fprintf(&sb, "    style %s fill:#87CEEB\n", entry)
	}

	return sb.String()
}

// DrawDOT generates a DOT (Graphviz) representation of the graph
func (ge *Exporter) DrawDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph G {\n")
	sb.WriteString("    rankdir=TD;\n")
	sb.WriteString("    node [shape=box];\n")

	entry := ge.graph.entryPoint
	if entry != "" {
		sb.WriteString("    START [label=\"START\", shape=ellipse, style=filled, fillcolor=lightgreen];\n")
		fmt.Fprintf(&sb, "    %q [style=filled, fillcolor=lightblue];\n", entry)
	}

	if ge.referencesEnd() {
		sb.WriteString("    END [label=\"END\", shape=ellipse, style=filled, fillcolor=lightpink];\n")
	}

	if entry != "" {
		fmt.Fprintf(&sb, "    START -> %q;\n", entry)
	}

	plain, conditional := ge.edges()
	for _, e := range plain {
		fmt.Fprintf(&sb, "    %q -> %q;\n", e.from, e.to)
	}
	for _, e := range conditional {
		fmt.Fprintf(&sb, "    %q -> %q [style=dashed, label=%q];\n", e.from, e.to, e.label)
	}

	sb.WriteString("}\n")
	return sb.String()
}
