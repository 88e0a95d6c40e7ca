package graph

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEntryPointNotSet is reported when the entry point of the graph is not set.
	ErrEntryPointNotSet = errors.New("entry point not set")

	// ErrNodeNotFound is returned when a node is not found in the graph.
	ErrNodeNotFound = errors.New("node not found")

	// ErrGraphValidation matches every *GraphValidationError.
	ErrGraphValidation = errors.New("graph validation failed")

	// ErrSchemaViolation matches every *SchemaViolationError.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrNoCheckpoint is returned when resuming a thread that has no checkpoint.
	ErrNoCheckpoint = errors.New("no checkpoint for thread")

	// ErrRecursionLimit is returned when a single call executes more steps than allowed.
	ErrRecursionLimit = errors.New("recursion limit reached")
)

// GraphValidationError lists every structural problem found by Compile.
type GraphValidationError struct {
	Violations []string
}

func (e *GraphValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGraphValidation, strings.Join(e.Violations, "; "))
}

// Is makes errors.Is(err, ErrGraphValidation) hold.
func (e *GraphValidationError) Is(target error) bool {
	return target == ErrGraphValidation
}

// SchemaViolationError is returned when a field value cannot be combined by its reducer.
type SchemaViolationError struct {
	// Field is the state key being merged
	Field string
	// Err is the reducer failure
	Err error
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("%s: field %q: %v", ErrSchemaViolation, e.Field, e.Err)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrSchemaViolation) hold.
func (e *SchemaViolationError) Is(target error) bool {
	return target == ErrSchemaViolation
}

// UnknownLabelError is returned when a condition yields a label that has no mapped target.
type UnknownLabelError struct {
	Node  string
	Label string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("conditional edge from %s returned unknown label %q", e.Node, e.Label)
}
