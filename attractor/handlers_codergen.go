// ABOUTME: Default work-node handler for the pipeline runner (shape=box, type=codergen).
// ABOUTME: Records the node's prompt/label/model configuration; invoking an actual LLM provider is out of scope.
package attractor

import (
	"context"
)

// CodergenHandler handles generic work nodes (shape=box). This is the registry's
// default handler for nodes whose type does not resolve otherwise. It records
// the node's configuration without invoking any external LLM provider --
// wiring an actual provider is the concern of a caller-supplied collaborator.
type CodergenHandler struct{}

// Type returns the handler type string "codergen".
func (h *CodergenHandler) Type() string {
	return "codergen"
}

// Execute reads prompt/label/model attributes and records them in context.
func (h *CodergenHandler) Execute(ctx context.Context, node *Node, pctx *Context, graph *Graph) (*Outcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prompt := node.Attrs.GetString("prompt", "")
	if prompt == "" {
		prompt = node.Attrs.GetString("label", "")
	}
	if prompt == "" {
		prompt = node.ID
	}

	label := node.Attrs.GetString("label", node.ID)
	llmModel := node.Attrs.GetString("llm_model", "")

	o := NewOutcome(StatusSuccess)
	o.Notes = "stage completed: " + label
	o.ContextUpdates["last_stage"] = node.ID
	o.ContextUpdates["codergen.prompt"] = prompt
	if llmModel != "" {
		o.ContextUpdates["codergen.model"] = llmModel
	}
	return o, nil
}
