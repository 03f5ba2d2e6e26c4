// ABOUTME: Exit node handler for the pipeline runner.
// ABOUTME: Records the finish time and returns success at the terminal node.
package attractor

import (
	"context"
	"time"
)

// ExitHandler handles the pipeline exit point node (shape=Msquare). Goal gate
// enforcement happens in the runner, not here.
type ExitHandler struct{}

// Type returns the handler type string "exit".
func (h *ExitHandler) Type() string {
	return "exit"
}

// Execute records the finish timestamp and returns success.
func (h *ExitHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := NewOutcome(StatusSuccess)
	o.Notes = "pipeline exited at node: " + node.ID
	o.ContextUpdates["_finished_at"] = time.Now().Format(time.RFC3339Nano)
	return o, nil
}
