package graph

import (
	"context"
	"strconv"
)

const (
	// START is the writer name recorded on checkpoints created from caller input.
	START = "START"

	// END is a special constant used to represent the end node in the graph.
	END = "END"
)

// NodeFunc is the computation of a node: it reads the full state and returns a
// partial update, which the schema merges into the state.
type NodeFunc func(ctx context.Context, state State) (State, error)

// Node represents a node in the graph.
type Node struct {
	// Name is the unique identifier for the node.
	Name string

	// Description describes the functionality of the node.
	Description string

	// Function is the function associated with the node.
	Function NodeFunc
}

// Edge represents an edge in the graph.
type Edge struct {
	// From is the name of the node from which the edge originates.
	From string

	// To is the name of the node to which the edge points.
	To string
}

// Condition picks a label from the merged state after its source node ran.
// Labels, when set, is the complete set of labels Fn may return; Compile checks
// it against the edge's target map.
type Condition struct {
	Labels []string
	Fn     func(ctx context.Context, state State) string
}

// When builds a Condition declaring the labels fn may return.
func When(fn func(ctx context.Context, state State) string, labels ...string) Condition {
	return Condition{Labels: labels, Fn: fn}
}

// WhenBool builds a Condition from a predicate, labelled "true" and "false".
func WhenBool(fn func(ctx context.Context, state State) bool) Condition {
	return Condition{
		Labels: []string{"true", "false"},
		Fn: func(ctx context.Context, state State) string {
			return strconv.FormatBool(fn(ctx, state))
		},
	}
}

// ConditionalEdge routes from a node to one of several targets by label.
type ConditionalEdge struct {
	From      string
	Condition Condition
	// Targets maps each label to a node name or END.
	Targets map[string]string
}
