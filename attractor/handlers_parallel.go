// ABOUTME: Parallel fan-out handler for the pipeline runner.
// ABOUTME: Records outgoing branches and join configuration for the runner to execute concurrently.
package attractor

import (
	"context"
	"strconv"
	"strings"
)

// ParallelHandler handles parallel fan-out nodes (shape=component). It
// identifies all outgoing edges as parallel branches and records them, along
// with join/error policy configuration, for the runner to dispatch via
// ExecuteParallelBranches.
type ParallelHandler struct{}

// Type returns the handler type string "parallel".
func (h *ParallelHandler) Type() string {
	return "parallel"
}

// Execute identifies outgoing branches and returns an outcome listing them in
// context updates. If there are no outgoing edges, it returns a failure.
func (h *ParallelHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	joinPolicy := node.Attrs.GetString("join_policy", "wait_all")
	errorPolicy := node.Attrs.GetString("error_policy", "continue")
	maxParallel := node.Attrs.GetInt("max_parallel", 4)
	joinK := node.Attrs.GetFloat("join_k", 0)

	edges := graph.OutgoingEdges(node.ID)
	branchIDs := make([]string, 0, len(edges))
	for _, e := range edges {
		branchIDs = append(branchIDs, e.To)
	}

	if len(branchIDs) == 0 {
		o := NewOutcome(StatusFail)
		o.FailureReason = "no outgoing branches for parallel node: " + node.ID
		return o, nil
	}

	o := NewOutcome(StatusSuccess)
	o.Notes = "parallel fan-out spawning branches from: " + node.ID
	o.ContextUpdates["last_stage"] = node.ID
	o.ContextUpdates["parallel.branches"] = strings.Join(branchIDs, ",")
	o.ContextUpdates["parallel.join_policy"] = joinPolicy
	o.ContextUpdates["parallel.error_policy"] = errorPolicy
	o.ContextUpdates["parallel.max_parallel"] = strconv.FormatInt(maxParallel, 10)
	if joinK != 0 {
		o.ContextUpdates["parallel.join_k"] = strconv.FormatFloat(joinK, 'g', -1, 64)
	}
	return o, nil
}
