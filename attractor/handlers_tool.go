// ABOUTME: External tool handler for the pipeline runner.
// ABOUTME: Records the configured tool command/name; actual process invocation is an external collaborator's job.
package attractor

import (
	"context"
)

// ToolHandler handles external tool execution nodes (shape=parallelogram). It
// reads tool_command/tool_name from node attributes and records what would be
// run; invoking the tool itself is outside this package's scope.
type ToolHandler struct{}

// Type returns the handler type string "tool".
func (h *ToolHandler) Type() string {
	return "tool"
}

// Execute reads tool configuration from node attributes and records it in context.
func (h *ToolHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	command := node.Attrs.GetString("tool_command", "")
	toolName := node.Attrs.GetString("tool_name", "")

	if command == "" && toolName == "" {
		o := NewOutcome(StatusFail)
		o.FailureReason = "no tool_command or tool_name specified for tool node: " + node.ID
		return o, nil
	}

	o := NewOutcome(StatusSuccess)
	o.ContextUpdates["last_stage"] = node.ID
	if command != "" {
		o.ContextUpdates["tool.command"] = command
	}
	if toolName != "" {
		o.ContextUpdates["tool.name"] = toolName
	}

	if command != "" {
		o.Notes = "tool recorded: " + command
	} else {
		o.Notes = "tool recorded: " + toolName
	}
	return o, nil
}
