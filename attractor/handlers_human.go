// ABOUTME: Wait-for-human handler for the pipeline runner.
// ABOUTME: Presents choices derived from outgoing edges to a human via the Interviewer interface.
package attractor

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Interviewer is the human interaction frontend a WaitForHumanHandler delegates
// to. Implementations are supplied by the caller; none is provided by this package.
type Interviewer interface {
	Ask(ctx context.Context, question string, options []string) (string, error)
}

// WaitForHumanHandler handles human gate nodes (shape=hexagon). It presents
// choices derived from outgoing edges to a human via the Interviewer interface
// and returns their selection.
type WaitForHumanHandler struct {
	// Interviewer is the human interaction frontend. If nil, the handler
	// returns a failure indicating no interviewer is available.
	Interviewer Interviewer
}

// Type returns the handler type string "wait.human".
func (h *WaitForHumanHandler) Type() string {
	return "wait.human"
}

// Execute presents choices to a human and returns their selection.
//
// Supports optional node attributes:
//   - timeout: duration limiting how long to wait for human input.
//   - default_choice: edge label to select if the timeout expires.
//   - reminder_interval: duration for periodic re-prompting (parsed and
//     validated, effective only if the Interviewer supports it).
//
// Context updates always include human.timed_out and human.response_time_ms.
func (h *WaitForHumanHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	edges := graph.OutgoingEdges(node.ID)
	if len(edges) == 0 {
		o := NewOutcome(StatusFail)
		o.FailureReason = "no outgoing edges for human gate: " + node.ID
		return o, nil
	}

	options := make([]string, 0, len(edges))
	edgeMap := make(map[string]*Edge)
	for _, e := range edges {
		label := e.Attrs.GetString("label", e.To)
		options = append(options, label)
		edgeMap[NormalizeLabel(label)] = e
	}

	if h.Interviewer == nil {
		o := NewOutcome(StatusFail)
		o.FailureReason = "no interviewer available for human gate: " + node.ID
		return o, nil
	}

	var timeout time.Duration
	hasTimeout := node.Attrs.Has("timeout")
	if hasTimeout {
		timeout = node.Attrs.GetDuration("timeout", 0)
	}

	defaultChoice := node.Attrs.GetString("default_choice", "")

	if riAttr, ok := node.Attrs["reminder_interval"]; ok && riAttr.Kind != KindDuration {
		o := NewOutcome(StatusFail)
		o.FailureReason = fmt.Sprintf("invalid reminder_interval duration %q", riAttr.AsString())
		return o, nil
	}

	question := node.Attrs.GetString("label", "")
	if question == "" {
		question = "Select an option:"
	}

	askCtx := ctx
	var cancelTimeout context.CancelFunc
	if hasTimeout {
		askCtx, cancelTimeout = context.WithTimeout(ctx, timeout)
		defer cancelTimeout()
	}

	startTime := time.Now()
	answer, err := h.Interviewer.Ask(askCtx, question, options)
	elapsed := time.Since(startTime)
	responseTimeMs := elapsed.Milliseconds()

	if err != nil && hasTimeout && askCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		return h.handleTimeout(defaultChoice, edges, edgeMap, node, responseTimeMs)
	}

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o := NewOutcome(StatusFail)
		o.FailureReason = "interviewer error: " + err.Error()
		o.ContextUpdates["human.timed_out"] = "false"
		o.ContextUpdates["human.response_time_ms"] = fmt.Sprintf("%d", responseTimeMs)
		return o, nil
	}

	selectedEdge := h.findEdgeByAnswer(answer, edges, edgeMap)
	selectedLabel := selectedEdge.Attrs.GetString("label", selectedEdge.To)
	selectedKey := parseAcceleratorKey(selectedLabel)

	o := NewOutcome(StatusSuccess)
	o.SuggestedNextIDs = []string{selectedEdge.To}
	o.Notes = "human selected: " + selectedLabel
	o.ContextUpdates["human.gate.selected"] = selectedKey
	o.ContextUpdates["human.gate.label"] = selectedLabel
	o.ContextUpdates["human.timed_out"] = "false"
	o.ContextUpdates["human.response_time_ms"] = fmt.Sprintf("%d", responseTimeMs)
	return o, nil
}

// handleTimeout processes a timeout event, selecting the default_choice edge if
// configured, or returning a failure if no default is set or the default doesn't
// match any edge.
func (h *WaitForHumanHandler) handleTimeout(defaultChoice string, edges []*Edge, edgeMap map[string]*Edge, node *Node, responseTimeMs int64) (*Outcome, error) {
	if defaultChoice == "" {
		o := NewOutcome(StatusFail)
		o.FailureReason = fmt.Sprintf("human gate %q timed out with no default_choice configured", node.ID)
		o.ContextUpdates["human.timed_out"] = "true"
		o.ContextUpdates["human.response_time_ms"] = fmt.Sprintf("%d", responseTimeMs)
		return o, nil
	}

	selectedEdge := h.findEdgeByAnswer(defaultChoice, edges, edgeMap)
	selectedLabel := selectedEdge.Attrs.GetString("label", selectedEdge.To)
	if NormalizeLabel(selectedLabel) != NormalizeLabel(defaultChoice) {
		o := NewOutcome(StatusFail)
		o.FailureReason = fmt.Sprintf("default_choice %q does not match any outgoing edge of node %q", defaultChoice, node.ID)
		o.ContextUpdates["human.timed_out"] = "true"
		o.ContextUpdates["human.response_time_ms"] = fmt.Sprintf("%d", responseTimeMs)
		return o, nil
	}

	selectedKey := parseAcceleratorKey(selectedLabel)

	o := NewOutcome(StatusSuccess)
	o.PreferredLabel = defaultChoice
	o.SuggestedNextIDs = []string{selectedEdge.To}
	o.Notes = fmt.Sprintf("human gate timed out; selected default choice: %s", defaultChoice)
	o.ContextUpdates["human.gate.selected"] = selectedKey
	o.ContextUpdates["human.gate.label"] = selectedLabel
	o.ContextUpdates["human.timed_out"] = "true"
	o.ContextUpdates["human.response_time_ms"] = fmt.Sprintf("%d", responseTimeMs)
	return o, nil
}

// findEdgeByAnswer looks up an edge by normalized label match, accelerator key
// match, or falls back to the first edge.
func (h *WaitForHumanHandler) findEdgeByAnswer(answer string, edges []*Edge, edgeMap map[string]*Edge) *Edge {
	normalizedAnswer := NormalizeLabel(answer)
	for normLabel, e := range edgeMap {
		if normLabel == normalizedAnswer {
			return e
		}
	}

	for _, e := range edges {
		label := e.Attrs.GetString("label", e.To)
		key := parseAcceleratorKey(label)
		if strings.EqualFold(key, answer) {
			return e
		}
	}

	if len(edges) > 0 {
		return edges[0]
	}
	return nil
}

// parseAcceleratorKey extracts shortcut keys from edge labels.
// Patterns: "[K] Label" -> K, "K) Label" -> K, "K - Label" -> K, else first char.
func parseAcceleratorKey(label string) string {
	s := strings.TrimSpace(label)
	if s == "" {
		return ""
	}
	if len(s) >= 4 && s[0] == '[' && s[2] == ']' {
		return string(s[1])
	}
	if len(s) >= 2 && s[1] == ')' {
		return string(s[0])
	}
	if len(s) >= 4 && s[1] == ' ' && s[2] == '-' {
		return string(s[0])
	}
	return string(s[0])
}
