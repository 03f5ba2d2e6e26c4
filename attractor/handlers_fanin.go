// ABOUTME: Parallel fan-in handler for the pipeline runner.
// ABOUTME: Selects the best candidate among merged branch results and records it in context.
package attractor

import (
	"context"
	"encoding/json"
	"sort"
)

// FanInHandler handles parallel fan-in nodes (shape=tripleoctagon). It reads
// the serialized parallel results the runner wrote after resolving a fan-out,
// selects the best candidate branch, and records it in context. Fails if no
// parallel results are available.
type FanInHandler struct{}

// Type returns the handler type string "parallel.fan_in".
func (h *FanInHandler) Type() string {
	return "parallel.fan_in"
}

type fanInResult struct {
	NodeID string `json:"nodeId"`
	Status string `json:"status"`
	Notes  string `json:"notes"`
	Score  float64 `json:"score"`
}

// Execute reads parallel branch results from context, selects the best
// candidate (ranked by status, then ascending node ID), and records
// parallel.fan_in.best_id / parallel.fan_in.best_outcome in context.
func (h *FanInHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw := pctx.Get("parallel.results", "")
	if raw == "" {
		o := NewOutcome(StatusFail)
		o.FailureReason = "no parallel results to evaluate for fan-in node: " + node.ID
		return o, nil
	}

	var results []fanInResult
	if err := json.Unmarshal([]byte(raw), &results); err != nil || len(results) == 0 {
		o := NewOutcome(StatusFail)
		o.FailureReason = "malformed parallel results for fan-in node: " + node.ID
		return o, nil
	}

	sort.SliceStable(results, func(i, j int) bool {
		ri, rj := statusRank(StageStatus(results[i].Status)), statusRank(StageStatus(results[j].Status))
		if ri != rj {
			return ri < rj
		}
		return results[i].NodeID < results[j].NodeID
	})

	best := results[0]
	if statusRank(StageStatus(best.Status)) >= statusRank(StatusFail) {
		o := NewOutcome(StatusFail)
		o.FailureReason = "all parallel branches failed at fan-in node: " + node.ID
		return o, nil
	}

	o := NewOutcome(StatusSuccess)
	o.Notes = "fan-in merged parallel results at node: " + node.ID
	o.ContextUpdates["last_stage"] = node.ID
	o.ContextUpdates["parallel.fan_in.best_id"] = best.NodeID
	o.ContextUpdates["parallel.fan_in.best_outcome"] = best.Status
	o.ContextUpdates["parallel.fan_in.completed"] = "true"
	return o, nil
}
