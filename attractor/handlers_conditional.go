// ABOUTME: Conditional branching handler for the pipeline runner.
// ABOUTME: Passes through the prior node's outcome so edge conditions evaluate against the real status.
package attractor

import (
	"context"
)

// ConditionalHandler handles conditional routing nodes (shape=diamond). It
// passes through the outcome status recorded by the preceding node so that
// edge conditions like "outcome=fail" evaluate correctly -- without this
// pass-through, edge selection would always see success.
type ConditionalHandler struct{}

// Type returns the handler type string "conditional".
func (h *ConditionalHandler) Type() string {
	return "conditional"
}

// Execute reads the previous node's status from context and returns it as
// this node's own status.
func (h *ConditionalHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	status := StatusSuccess
	if prev := pctx.Get("_last_status", ""); prev != "" {
		status = StageStatus(prev)
	}

	o := NewOutcome(status)
	o.Notes = "conditional node evaluated: " + node.ID
	o.ContextUpdates["last_stage"] = node.ID
	return o, nil
}
