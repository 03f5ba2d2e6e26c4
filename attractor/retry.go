// ABOUTME: Retry policy resolution and exponential backoff delay calculation for node execution.
// ABOUTME: Also implements goal-gate checking and the retry-target redirect used to satisfy them.
package attractor

import (
	"math"
	"time"
)

// RetryPolicy controls how many times a node execution is retried, and whether
// a FAIL outcome (as opposed to RETRY, which is always retryable) is retried.
type RetryPolicy struct {
	MaxAttempts int // minimum 1 (1 = no retries)
	Backoff     BackoffConfig
	RetryOnFail bool
}

// BackoffConfig controls delay timing between retry attempts.
type BackoffConfig struct {
	Base       time.Duration // default 1s
	Multiplier float64       // default 2.0
	Max        time.Duration // default 60s
}

// DelayForAttempt calculates the delay before the given attempt number (1-indexed:
// the delay before attempt 2 uses attempt=1). Formula: Base * Multiplier^(attempt-1),
// capped at Max.
func (b BackoffConfig) DelayForAttempt(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	baseNanos := float64(b.Base.Nanoseconds()) * math.Pow(b.Multiplier, float64(attempt-1))
	maxNanos := float64(b.Max.Nanoseconds())
	delayNanos := math.Min(baseNanos, maxNanos)
	return time.Duration(int64(delayNanos))
}

// DefaultBackoff returns the spec's default backoff configuration.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Base:       1 * time.Second,
		Multiplier: 2.0,
		Max:        60 * time.Second,
	}
}

// buildRetryPolicy resolves a node's retry policy from its own attributes, the
// graph's defaults, and finally hardcoded defaults. max_attempts defaults to 1
// (no retry). retry_on_fail gates whether a FAIL outcome may be retried; RETRY
// outcomes are always retryable regardless of this flag.
func buildRetryPolicy(node *Node, graph *Graph) RetryPolicy {
	policy := RetryPolicy{
		MaxAttempts: 1,
		Backoff:     DefaultBackoff(),
		RetryOnFail: false,
	}

	if graph.Attrs.Has("max_attempts") {
		policy.MaxAttempts = int(graph.Attrs.GetInt("max_attempts", int64(policy.MaxAttempts)))
	}
	if graph.Attrs.Has("backoff_base") {
		policy.Backoff.Base = graph.Attrs.GetDuration("backoff_base", policy.Backoff.Base)
	}
	if graph.Attrs.Has("backoff_multiplier") {
		policy.Backoff.Multiplier = graph.Attrs.GetFloat("backoff_multiplier", policy.Backoff.Multiplier)
	}
	if graph.Attrs.Has("backoff_max") {
		policy.Backoff.Max = graph.Attrs.GetDuration("backoff_max", policy.Backoff.Max)
	}
	if graph.Attrs.Has("retry_on_fail") {
		policy.RetryOnFail = graph.Attrs.GetBool("retry_on_fail", policy.RetryOnFail)
	}

	if node.Attrs.Has("max_attempts") {
		policy.MaxAttempts = int(node.Attrs.GetInt("max_attempts", int64(policy.MaxAttempts)))
	}
	if node.Attrs.Has("retries") {
		policy.MaxAttempts = int(node.Attrs.GetInt("retries", int64(policy.MaxAttempts-1))) + 1
	}
	if node.Attrs.Has("backoff_base") {
		policy.Backoff.Base = node.Attrs.GetDuration("backoff_base", policy.Backoff.Base)
	}
	if node.Attrs.Has("retry_delay") {
		policy.Backoff.Base = node.Attrs.GetDuration("retry_delay", policy.Backoff.Base)
	}
	if node.Attrs.Has("retry_backoff") {
		policy.Backoff.Multiplier = node.Attrs.GetFloat("retry_backoff", policy.Backoff.Multiplier)
	}
	if node.Attrs.Has("backoff_multiplier") {
		policy.Backoff.Multiplier = node.Attrs.GetFloat("backoff_multiplier", policy.Backoff.Multiplier)
	}
	if node.Attrs.Has("backoff_max") {
		policy.Backoff.Max = node.Attrs.GetDuration("backoff_max", policy.Backoff.Max)
	}
	if node.Attrs.Has("retry_on_fail") {
		policy.RetryOnFail = node.Attrs.GetBool("retry_on_fail", policy.RetryOnFail)
	}

	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	return policy
}

// isRetryable reports whether the outcome's status warrants another attempt
// under the given policy. RETRY is always retryable; FAIL is retryable only
// when the policy's RetryOnFail flag is set.
func isRetryable(status StageStatus, policy RetryPolicy) bool {
	switch status {
	case StatusRetry:
		return true
	case StatusFail:
		return policy.RetryOnFail
	default:
		return false
	}
}

// checkGoalGates checks every node marked goal_gate=true that has been visited
// (has a recorded outcome) and verifies its most recent outcome was SUCCESS or
// PARTIAL_SUCCESS. Returns (true, nil) if every gate is satisfied, or
// (false, failedNode) for the first unsatisfied gate encountered in declaration order.
func checkGoalGates(graph *Graph, outcomes map[string]*Outcome) (bool, *Node) {
	for _, id := range graph.orderedIDs() {
		node := graph.Nodes[id]
		if !node.Attrs.GetBool("goal_gate", false) {
			continue
		}
		outcome, visited := outcomes[node.ID]
		if !visited {
			continue
		}
		if !outcome.IsSuccessLike() {
			return false, node
		}
	}
	return true, nil
}

// getRetryTarget resolves the retry target node ID to redirect to when a goal
// gate fails, checking in priority order: the failed gate's own retry_target,
// its fallback_retry_target, the graph's retry_target, and finally the graph's
// fallback_retry_target. Returns "" if none is configured, meaning the pipeline
// must fail.
func getRetryTarget(node *Node, graph *Graph) string {
	if t := node.Attrs.GetString("retry_target", ""); t != "" {
		return t
	}
	if t := node.Attrs.GetString("fallback_retry_target", ""); t != "" {
		return t
	}
	if t := graph.Attrs.GetString("retry_target", ""); t != "" {
		return t
	}
	if t := graph.Attrs.GetString("fallback_retry_target", ""); t != "" {
		return t
	}
	return ""
}

// nodesOnPaths returns the set of node IDs that lie on some path from fromID to
// toID (inclusive of both endpoints), computed as the intersection of nodes
// forward-reachable from fromID and nodes that can reach toID. Used by the goal
// gate redirect to clear completed-node/outcome records for re-execution.
func nodesOnPaths(graph *Graph, fromID, toID string) map[string]bool {
	forward := reachableFrom(graph, fromID, false)
	backward := reachableFrom(graph, toID, true)

	result := make(map[string]bool)
	for id := range forward {
		if backward[id] {
			result[id] = true
		}
	}
	return result
}

// reachableFrom performs a BFS over the graph's edges starting at id, following
// edges in their normal direction or reversed when reverse is true.
func reachableFrom(graph *Graph, id string, reverse bool) map[string]bool {
	visited := map[string]bool{id: true}
	queue := []string{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		var next []*Edge
		if reverse {
			next = graph.IncomingEdges(current)
		} else {
			next = graph.OutgoingEdges(current)
		}

		for _, e := range next {
			neighbor := e.To
			if reverse {
				neighbor = e.From
			}
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	return visited
}
