// ABOUTME: Tests for the stack manager loop handler's configuration recording.
package attractor

import (
	"context"
	"testing"
)

func TestManagerLoopHandlerRecordsDefaults(t *testing.T) {
	n := &Node{ID: "manage", Attrs: Attrs{}}
	g := &Graph{Attrs: Attrs{}}

	h := &ManagerLoopHandler{}
	o, err := h.Execute(context.Background(), n, NewContext(), g)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if o.Status != StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", o.Status)
	}
	if got := o.ContextUpdates["manager.poll_interval"]; got != "45s" {
		t.Errorf("expected default poll_interval '45s', got %q", got)
	}
	if got := o.ContextUpdates["manager.max_cycles"]; got != "1000" {
		t.Errorf("expected default max_cycles '1000', got %q", got)
	}
	if got := o.ContextUpdates["manager.actions"]; got != "observe,wait" {
		t.Errorf("expected default actions 'observe,wait', got %q", got)
	}
	if _, ok := o.ContextUpdates["manager.child_dotfile"]; ok {
		t.Error("expected no child_dotfile recorded when graph attribute is absent")
	}
	if _, ok := o.ContextUpdates["manager.stop_condition"]; ok {
		t.Error("expected no stop_condition recorded when node attribute is absent")
	}
}

func TestManagerLoopHandlerRecordsOverridesAndGraphDotfile(t *testing.T) {
	n := &Node{ID: "manage", Attrs: Attrs{
		"manager.poll_interval": StringAttr("10s"),
		"manager.max_cycles":    StringAttr("5"),
		"manager.stop_condition": StringAttr("outcome=SUCCESS"),
	}}
	g := &Graph{Attrs: Attrs{"stack.child_dotfile": StringAttr("child.dot")}}

	h := &ManagerLoopHandler{}
	o, err := h.Execute(context.Background(), n, NewContext(), g)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if got := o.ContextUpdates["manager.poll_interval"]; got != "10s" {
		t.Errorf("expected overridden poll_interval '10s', got %q", got)
	}
	if got := o.ContextUpdates["manager.child_dotfile"]; got != "child.dot" {
		t.Errorf("expected child_dotfile from graph attribute, got %q", got)
	}
	if got := o.ContextUpdates["manager.stop_condition"]; got != "outcome=SUCCESS" {
		t.Errorf("expected stop_condition recorded, got %q", got)
	}
}

func TestManagerLoopHandlerRejectsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	h := &ManagerLoopHandler{}
	if _, err := h.Execute(ctx, &Node{ID: "manage"}, NewContext(), &Graph{}); err == nil {
		t.Error("expected error for a cancelled context")
	}
}
