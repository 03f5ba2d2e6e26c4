// ABOUTME: Tests for the default codergen work-node handler's prompt/label/model fallback chain.
package attractor

import (
	"context"
	"testing"
)

func TestCodergenHandlerUsesExplicitPrompt(t *testing.T) {
	n := &Node{ID: "implement", Attrs: Attrs{"prompt": StringAttr("write the thing"), "label": StringAttr("Implement")}}

	h := &CodergenHandler{}
	o, err := h.Execute(context.Background(), n, NewContext(), &Graph{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if o.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", o.Status)
	}
	if got := o.ContextUpdates["codergen.prompt"]; got != "write the thing" {
		t.Errorf("expected explicit prompt, got %q", got)
	}
}

func TestCodergenHandlerFallsBackToLabelThenID(t *testing.T) {
	h := &CodergenHandler{}

	withLabel := &Node{ID: "implement", Attrs: Attrs{"label": StringAttr("Implement feature")}}
	o, err := h.Execute(context.Background(), withLabel, NewContext(), &Graph{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := o.ContextUpdates["codergen.prompt"]; got != "Implement feature" {
		t.Errorf("expected prompt to fall back to label, got %q", got)
	}

	bare := &Node{ID: "implement", Attrs: Attrs{}}
	o, err = h.Execute(context.Background(), bare, NewContext(), &Graph{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := o.ContextUpdates["codergen.prompt"]; got != "implement" {
		t.Errorf("expected prompt to fall back to node ID, got %q", got)
	}
}

func TestCodergenHandlerRecordsModelWhenPresent(t *testing.T) {
	n := &Node{ID: "implement", Attrs: Attrs{"llm_model": StringAttr("sonnet")}}

	h := &CodergenHandler{}
	o, err := h.Execute(context.Background(), n, NewContext(), &Graph{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := o.ContextUpdates["codergen.model"]; got != "sonnet" {
		t.Errorf("expected model recorded, got %q", got)
	}
}

func TestCodergenHandlerOmitsModelWhenAbsent(t *testing.T) {
	n := &Node{ID: "implement", Attrs: Attrs{}}

	h := &CodergenHandler{}
	o, err := h.Execute(context.Background(), n, NewContext(), &Graph{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if _, ok := o.ContextUpdates["codergen.model"]; ok {
		t.Error("expected no codergen.model entry when llm_model is absent")
	}
}

func TestCodergenHandlerRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &CodergenHandler{}
	if _, err := h.Execute(ctx, &Node{ID: "implement"}, NewContext(), &Graph{}); err == nil {
		t.Error("expected error for a cancelled context")
	}
}
