// ABOUTME: Start node handler for the pipeline runner.
// ABOUTME: Performs no domain work beyond recording a start timestamp and returning success.
package attractor

import (
	"context"
	"time"
)

// StartHandler handles the pipeline entry point node (shape=Mdiamond).
type StartHandler struct{}

// Type returns the handler type string "start".
func (h *StartHandler) Type() string {
	return "start"
}

// Execute records a start timestamp in context and returns success.
func (h *StartHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := NewOutcome(StatusSuccess)
	o.Notes = "pipeline started at node: " + node.ID
	o.ContextUpdates["_started_at"] = time.Now().Format(time.RFC3339Nano)
	return o, nil
}
