// ABOUTME: Stack manager loop handler for the pipeline runner.
// ABOUTME: Records loop configuration; actual child pipeline management is an external collaborator's job.
package attractor

import (
	"context"
)

// ManagerLoopHandler handles stack manager loop nodes (shape=house). It reads
// loop configuration from node and graph attributes and records it in context.
type ManagerLoopHandler struct{}

// Type returns the handler type string "stack.manager_loop".
func (h *ManagerLoopHandler) Type() string {
	return "stack.manager_loop"
}

// Execute reads manager loop configuration and records it in the outcome.
func (h *ManagerLoopHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pollInterval := node.Attrs.GetString("manager.poll_interval", "45s")
	maxCycles := node.Attrs.GetString("manager.max_cycles", "1000")
	stopCondition := node.Attrs.GetString("manager.stop_condition", "")
	actions := node.Attrs.GetString("manager.actions", "observe,wait")
	childDotfile := graph.Attrs.GetString("stack.child_dotfile", "")

	o := NewOutcome(StatusSuccess)
	o.Notes = "manager loop configured at node: " + node.ID
	o.ContextUpdates["last_stage"] = node.ID
	o.ContextUpdates["manager.poll_interval"] = pollInterval
	o.ContextUpdates["manager.max_cycles"] = maxCycles
	o.ContextUpdates["manager.actions"] = actions
	if childDotfile != "" {
		o.ContextUpdates["manager.child_dotfile"] = childDotfile
	}
	if stopCondition != "" {
		o.ContextUpdates["manager.stop_condition"] = stopCondition
	}
	return o, nil
}
