// Package executor defines the uniform contract every node type implements
// and the registry that resolves a node's declared type to its executor.
package executor

import (
	"context"

	"github.com/fluxionhq/fluxion/pkg/models"
)

// PublishFunc emits a lifecycle status event on the node-type channel.
// Executors call it before work starts and on completion or failure;
// delivery is best-effort and the persisted step record stays the system
// of record.
type PublishFunc func(status models.NodeStatus)

// StepFunc is the side-effecting unit of work wrapped by a durable step.
type StepFunc func(ctx context.Context) (map[string]any, error)

// Step is the durable-checkpoint invoker. Run executes fn at most
// effectively-once per run: the result is memoized under the label so a
// retried or resumed run does not repeat the wrapped side effect. Network
// calls, uploads, and message sends must live inside Run.
type Step interface {
	Run(ctx context.Context, label string, fn StepFunc) (map[string]any, error)
}

// Input carries everything an executor may consult. Context is the
// accumulated execution context and is read-only from the executor's
// point of view; the orchestrator owns the merge.
type Input struct {
	NodeID   string
	NodeName string
	Data     map[string]any
	UserID   string
	Context  map[string]any
	Seed     map[string]any // triggering payload, consumed by trigger executors
	Step     Step
	Publish  PublishFunc
}

// Executor implements one node type's runtime behavior. The returned
// fragment is merged into the execution context keyed by the node's
// configured variable name. Terminal configuration errors must be wrapped
// with flowerr.NonRetriable (after publishing an error status); anything
// else is treated as transient and retried.
type Executor interface {
	Execute(ctx context.Context, input Input) (map[string]any, error)
}

// Branching is implemented by decision executors. After a successful
// Execute, ActivePort inspects the output fragment and names the output
// port traversal continues on; every other port's subtree is pruned.
type Branching interface {
	ActivePort(output map[string]any) string
}

// Factory describes one registrable node type.
type Factory interface {
	// Type returns the node type this factory serves.
	Type() string

	// Category reports whether the node is a trigger or an action.
	Category() models.CategoryType

	// Schema returns the JSON schema its config is validated against.
	Schema() map[string]any

	// New builds the executor. Called once at engine start.
	New() Executor
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, input Input) (map[string]any, error)

func (f Func) Execute(ctx context.Context, input Input) (map[string]any, error) {
	return f(ctx, input)
}
