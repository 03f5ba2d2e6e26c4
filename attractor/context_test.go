// ABOUTME: Tests for the ordered Context store: get/set, snapshot, clone independence, and log ordering.
package attractor

import "testing"

func TestContextGetDefault(t *testing.T) {
	ctx := NewContext()
	if got := ctx.Get("missing", "fallback"); got != "fallback" {
		t.Errorf("expected fallback, got %q", got)
	}
}

func TestContextSetGetOrder(t *testing.T) {
	ctx := NewContext()
	ctx.Set("b", "2")
	ctx.Set("a", "1")
	ctx.Set("b", "20")

	if got := ctx.Get("b", ""); got != "20" {
		t.Errorf("expected overwritten value 20, got %q", got)
	}
	keys := ctx.Keys()
	if len(keys) != 2 || keys[0] != "b" || keys[1] != "a" {
		t.Errorf("expected insertion order [b a], got %v", keys)
	}
}

func TestContextCloneIndependence(t *testing.T) {
	ctx := NewContext()
	ctx.Set("k", "v")
	ctx.AppendLog("line1")

	clone := ctx.Clone()
	clone.Set("k", "mutated")
	clone.AppendLog("line2")

	if got := ctx.Get("k", ""); got != "v" {
		t.Errorf("mutating clone affected original: got %q", got)
	}
	if len(ctx.Logs()) != 1 {
		t.Errorf("expected original log untouched, got %v", ctx.Logs())
	}
	if got := clone.Get("k", ""); got != "mutated" {
		t.Errorf("expected clone to hold mutated value, got %q", got)
	}
}

func TestContextApplyUpdatesOverwrites(t *testing.T) {
	ctx := NewContext()
	ctx.Set("k", "old")
	ctx.ApplyUpdates(map[string]string{"k": "new", "k2": "v2"})

	if got := ctx.Get("k", ""); got != "new" {
		t.Errorf("expected overwritten value, got %q", got)
	}
	if got := ctx.Get("k2", ""); got != "v2" {
		t.Errorf("expected new key applied, got %q", got)
	}
}

func TestContextSeedFromGraphAttrs(t *testing.T) {
	g := &Graph{Attrs: Attrs{"goal": StringAttr("ship it")}}
	ctx := NewContext()
	ctx.SeedFromGraphAttrs(g)

	if got := ctx.Get("graph.goal", ""); got != "ship it" {
		t.Errorf("expected graph.goal seeded, got %q", got)
	}
}

func TestContextHasAndSize(t *testing.T) {
	ctx := NewContext()
	if ctx.Has("k") {
		t.Error("expected Has false on empty context")
	}
	ctx.Set("k", "v")
	if !ctx.Has("k") {
		t.Error("expected Has true after Set")
	}
	if ctx.Size() != 1 {
		t.Errorf("expected size 1, got %d", ctx.Size())
	}
}
