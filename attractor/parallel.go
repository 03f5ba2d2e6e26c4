// ABOUTME: Parallel branch execution and result resolution for concurrent pipeline fan-out/fan-in.
// ABOUTME: Implements the four join policies (wait_all, first_success, k_of_n, quorum) and event emission.
package attractor

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/attractor-run/attractor/emit"
)

// BranchResult holds the outcome of executing a single parallel branch.
type BranchResult struct {
	NodeID        string
	Outcome       *Outcome
	BranchContext *Context
	Error         error
}

// serializedBranchResult is the JSON shape written to context["parallel.results"].
type serializedBranchResult struct {
	NodeID         string            `json:"nodeId"`
	Status         string            `json:"status"`
	Notes          string            `json:"notes"`
	Score          float64           `json:"score"`
	ContextUpdates map[string]string `json:"contextUpdates"`
}

// ParallelConfig holds parsed configuration for a parallel fan-out.
type ParallelConfig struct {
	MaxParallel int
	JoinPolicy  string
	ErrorPolicy string
	JoinK       float64 // k_of_n: integer count; quorum: fraction in (0,1]
}

// ParallelConfigFromContext reads parallel configuration values written by the
// ParallelHandler into the pipeline context, applying defaults for anything missing.
func ParallelConfigFromContext(pctx *Context) ParallelConfig {
	config := ParallelConfig{
		MaxParallel: 4,
		JoinPolicy:  "wait_all",
		ErrorPolicy: "continue",
	}

	if policy := pctx.Get("parallel.join_policy", ""); policy != "" {
		config.JoinPolicy = policy
	}
	if policy := pctx.Get("parallel.error_policy", ""); policy != "" {
		config.ErrorPolicy = policy
	}
	if maxStr := pctx.Get("parallel.max_parallel", ""); maxStr != "" {
		if n, err := strconv.Atoi(maxStr); err == nil && n > 0 {
			config.MaxParallel = n
		}
	}
	if kStr := pctx.Get("parallel.join_k", ""); kStr != "" {
		if f, err := strconv.ParseFloat(kStr, 64); err == nil {
			config.JoinK = f
		}
	}

	return config
}

// resolveK computes the number of successful branches required to resolve a
// k_of_n or quorum join, given the total branch count n.
func (c ParallelConfig) resolveK(n int) int {
	switch c.JoinPolicy {
	case "quorum":
		frac := c.JoinK
		if frac <= 0 {
			frac = 0.5
		}
		return int(math.Ceil(frac * float64(n)))
	case "k_of_n":
		k := int(c.JoinK)
		if k <= 0 {
			k = n
		}
		return k
	default:
		return n
	}
}

// emitEvent is a nil-safe convenience wrapper around emitter.Emit.
func emitEvent(emitter *emit.Emitter, pipelineID string, kind emit.Kind, data map[string]any) {
	if emitter == nil {
		return
	}
	emitter.Emit(emit.Event{Kind: kind, Timestamp: time.Now(), PipelineID: pipelineID, Data: data})
}

// ExecuteParallelBranches forks the context for each branch and executes them
// concurrently, respecting MaxParallel via a counting semaphore. Each branch
// walks edges from its start node until it reaches a fan-in node (shape=
// tripleoctagon), a terminal node, or runs out of edges.
//
// Resolution is evaluated once after every branch completion according to the
// join policy (see resolvePolicy). Once resolved, branches that have not yet
// started are marked SKIPPED with a "Cancelled" note rather than executed;
// branches already in flight run to completion -- the core never forcibly
// interrupts a handler.
func ExecuteParallelBranches(
	ctx context.Context,
	graph *Graph,
	pctx *Context,
	registry *HandlerRegistry,
	branches []string,
	config ParallelConfig,
	emitter *emit.Emitter,
	pipelineID string,
) ([]BranchResult, error) {
	if len(branches) == 0 {
		return nil, fmt.Errorf("no branches to execute")
	}

	maxParallel := config.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 4
	}
	n := len(branches)

	emitEvent(emitter, pipelineID, emit.KindParallelStarted, map[string]any{"branchCount": n})

	results := make([]BranchResult, n)
	semaphore := make(chan struct{}, maxParallel)

	var mu sync.Mutex
	var wg sync.WaitGroup
	aborted := false
	successCount := 0
	failureCount := 0
	doneCount := 0

	checkResolution := func() {
		if aborted {
			return
		}
		k := config.resolveK(n)
		remaining := n - doneCount
		switch config.JoinPolicy {
		case "first_success":
			if successCount >= 1 {
				aborted = true
			}
		case "k_of_n", "quorum":
			if successCount >= k {
				aborted = true
			} else if successCount+remaining < k {
				aborted = true
			}
		default: // wait_all
			if config.ErrorPolicy == "fail_fast" && failureCount > 0 {
				aborted = true
			}
		}
	}

	for i, branchID := range branches {
		wg.Add(1)
		go func(idx int, nodeID string) {
			defer wg.Done()

			select {
			case semaphore <- struct{}{}:
			case <-ctx.Done():
				mu.Lock()
				results[idx] = BranchResult{NodeID: nodeID, Error: ctx.Err()}
				failureCount++
				doneCount++
				checkResolution()
				mu.Unlock()
				return
			}
			defer func() { <-semaphore }()

			mu.Lock()
			if aborted {
				mu.Unlock()
				o := NewOutcome(StatusSkipped)
				o.Notes = "Cancelled"
				mu.Lock()
				results[idx] = BranchResult{NodeID: nodeID, Outcome: o}
				doneCount++
				checkResolution()
				mu.Unlock()
				return
			}
			mu.Unlock()

			emitEvent(emitter, pipelineID, emit.KindParallelBranchStarted, map[string]any{"branch": nodeID})

			forkedCtx := pctx.Clone()
			outcome, err := executeBranchChain(ctx, graph, forkedCtx, registry, nodeID)

			success := err == nil && outcome != nil && outcome.Status == StatusSuccess

			mu.Lock()
			results[idx] = BranchResult{NodeID: nodeID, Outcome: outcome, BranchContext: forkedCtx, Error: err}
			if success {
				successCount++
			} else if err != nil || (outcome != nil && outcome.Status == StatusFail) {
				failureCount++
			}
			doneCount++
			checkResolution()
			mu.Unlock()

			emitEvent(emitter, pipelineID, emit.KindParallelBranchDone, map[string]any{"branch": nodeID, "success": success})
		}(i, branchID)
	}

	wg.Wait()

	emitEvent(emitter, pipelineID, emit.KindParallelCompleted, map[string]any{
		"successCount": successCount,
		"failureCount": failureCount,
	})

	return results, nil
}

// executeBranchChain runs nodes starting from startNodeID, following edges
// until it reaches a fan-in node (shape=tripleoctagon), a terminal node, or
// runs out of edges. It returns the outcome of the last executed node.
func executeBranchChain(
	ctx context.Context,
	graph *Graph,
	pctx *Context,
	registry *HandlerRegistry,
	startNodeID string,
) (*Outcome, error) {
	currentNodeID := startNodeID
	var lastOutcome *Outcome

	const maxSteps = 1000
	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		node := graph.FindNode(currentNodeID)
		if node == nil {
			return nil, fmt.Errorf("branch node %q not found in graph", currentNodeID)
		}

		if node.Attrs.GetString("shape", "") == "tripleoctagon" || isTerminal(node) {
			if lastOutcome == nil {
				return NewOutcome(StatusSuccess), nil
			}
			return lastOutcome, nil
		}

		handler := registry.Resolve(node)
		if handler == nil {
			return nil, fmt.Errorf("no handler found for branch node %q", currentNodeID)
		}

		policy := buildRetryPolicy(node, graph)
		outcome, err := ExecuteNodeWithRetry(ctx, handler, node, pctx, graph, policy, nil)
		if err != nil {
			return nil, err
		}
		lastOutcome = outcome

		pctx.ApplyUpdates(outcome.ContextUpdates)
		pctx.Set("_last_status", string(outcome.Status))
		if outcome.PreferredLabel != "" {
			pctx.Set("_last_preferred_label", outcome.PreferredLabel)
		}

		if outcome.Status == StatusFail {
			return outcome, nil
		}

		nextEdge := SelectEdge(node, outcome, pctx, graph)
		if nextEdge == nil {
			return outcome, nil
		}
		currentNodeID = nextEdge.To
	}

	return nil, fmt.Errorf("branch execution exceeded maximum steps (%d)", maxSteps)
}

// branchScore extracts an optional numeric "score" a branch's outcome recorded
// into its context updates, defaulting to 0 when absent or unparseable.
func branchScore(o *Outcome) float64 {
	if o == nil || o.ContextUpdates == nil {
		return 0
	}
	if s, ok := o.ContextUpdates["score"]; ok {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return 0
}

// ResolveParallelResults applies the join policy's resolution table to the
// completed branch results and serializes every branch's result into
// context["parallel.results"] as JSON. Branch context updates are never
// merged into parent here -- folding branch state back in is the fan-in
// handler's explicit job, reading parallel.results. Returns the resolved
// Outcome for the parallel node itself.
func ResolveParallelResults(parent *Context, branches []BranchResult, config ParallelConfig) *Outcome {
	n := len(branches)
	successCount := 0
	failureCount := 0
	var anySuccess bool
	for _, b := range branches {
		if b.Error == nil && b.Outcome != nil && b.Outcome.Status == StatusSuccess {
			successCount++
			anySuccess = true
		} else if b.Error != nil || (b.Outcome != nil && b.Outcome.Status == StatusFail) {
			failureCount++
		}
	}

	serialized := make([]serializedBranchResult, 0, n)
	for _, b := range branches {
		status := "SKIPPED"
		notes := ""
		updates := map[string]string{}
		var score float64
		if b.Outcome != nil {
			status = string(b.Outcome.Status)
			notes = b.Outcome.Notes
			updates = b.Outcome.ContextUpdates
			score = branchScore(b.Outcome)
		} else if b.Error != nil {
			status = string(StatusFail)
			notes = b.Error.Error()
		}
		serialized = append(serialized, serializedBranchResult{
			NodeID:         b.NodeID,
			Status:         status,
			Notes:          notes,
			Score:          score,
			ContextUpdates: updates,
		})
	}
	if payload, err := json.Marshal(serialized); err == nil {
		parent.Set("parallel.results", string(payload))
	}

	parent.AppendLog(fmt.Sprintf("[parallel] resolved %q join: %d success, %d failure, %d total", config.JoinPolicy, successCount, failureCount, n))

	switch config.JoinPolicy {
	case "first_success":
		if anySuccess {
			return NewOutcome(StatusSuccess)
		}
		o := NewOutcome(StatusFail)
		o.FailureReason = "no branch succeeded under first_success join policy"
		return o

	case "k_of_n", "quorum":
		k := config.resolveK(n)
		if successCount >= k {
			return NewOutcome(StatusSuccess)
		}
		o := NewOutcome(StatusFail)
		o.FailureReason = fmt.Sprintf("%s join policy requires %d successful branch(es) but only %d of %d succeeded", config.JoinPolicy, k, successCount, n)
		return o

	default: // wait_all
		if config.ErrorPolicy == "ignore" {
			return NewOutcome(StatusSuccess)
		}
		if config.ErrorPolicy == "fail_fast" && failureCount > 0 {
			o := NewOutcome(StatusFail)
			o.FailureReason = fmt.Sprintf("wait_all join policy failed: %d of %d branch(es) failed", failureCount, n)
			return o
		}
		if failureCount == 0 {
			return NewOutcome(StatusSuccess)
		}
		if successCount == 0 {
			o := NewOutcome(StatusFail)
			o.FailureReason = fmt.Sprintf("wait_all join policy failed: all %d branch(es) failed", n)
			return o
		}
		return NewOutcome(StatusPartialSuccess)
	}
}

// findFanInNode locates the fan-in node (shape=tripleoctagon) that the given
// branch nodes converge to, searching forward from each branch start.
func findFanInNode(graph *Graph, branchIDs []string) *Node {
	visited := make(map[string]bool)
	queue := append([]string{}, branchIDs...)

	for len(queue) > 0 {
		nodeID := queue[0]
		queue = queue[1:]

		if visited[nodeID] {
			continue
		}
		visited[nodeID] = true

		node := graph.FindNode(nodeID)
		if node == nil {
			continue
		}
		if node.Attrs.GetString("shape", "") == "tripleoctagon" {
			return node
		}
		for _, edge := range graph.OutgoingEdges(nodeID) {
			if !visited[edge.To] {
				queue = append(queue, edge.To)
			}
		}
	}

	return nil
}

// parseBranchIDs splits a comma-joined branch ID list written by ParallelHandler.
func parseBranchIDs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			ids = append(ids, t)
		}
	}
	return ids
}
