// ABOUTME: Tests for checkpoint save/load round-tripping, backfill of optional fields, and restore semantics.
package attractor

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointSaveLoadRoundTrip(t *testing.T) {
	ctx := NewContext()
	ctx.Set("goal", "ship it")
	ctx.AppendLog("started")

	cp := NewCheckpoint("run-1", ctx, "implement",
		[]string{"start", "implement"},
		map[string]int{"implement": 1},
		map[string]Outcome{"implement": *NewOutcome(StatusSuccess)})

	path := filepath.Join(t.TempDir(), "checkpoint.json")
	if err := cp.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.PipelineID != "run-1" {
		t.Errorf("expected pipeline ID run-1, got %q", loaded.PipelineID)
	}
	if loaded.CurrentNode != "implement" {
		t.Errorf("expected current node implement, got %q", loaded.CurrentNode)
	}
	if len(loaded.CompletedNodes) != 2 {
		t.Errorf("expected 2 completed nodes, got %v", loaded.CompletedNodes)
	}
	if loaded.NodeRetries["implement"] != 1 {
		t.Errorf("expected node retry count 1, got %d", loaded.NodeRetries["implement"])
	}
	if loaded.NodeOutcomes["implement"].Status != StatusSuccess {
		t.Errorf("expected restored outcome status SUCCESS, got %s", loaded.NodeOutcomes["implement"].Status)
	}
}

func TestLoadCheckpointMissingTimestampRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"pipeline_id":"x"}`), 0644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	if _, err := LoadCheckpoint(path); err == nil {
		t.Error("expected error loading checkpoint with zero timestamp")
	}
}

func TestLoadCheckpointBackfillsOptionalFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	body := `{"pipeline_id":"","timestamp":"2026-01-01T00:00:00Z","current_node":"a"}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("setup write failed: %v", err)
	}

	cp, err := LoadCheckpoint(path)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if cp.PipelineID == "" {
		t.Error("expected a generated pipeline ID when absent from file")
	}
	if cp.NodeRetries == nil || cp.NodeOutcomes == nil || cp.ContextValues == nil {
		t.Error("expected nil maps backfilled to empty maps")
	}
}

func TestCheckpointRestoreContext(t *testing.T) {
	cp := &Checkpoint{
		ContextValues: map[string]string{"b": "2", "a": "1"},
		Logs:          []string{"line1", "line2"},
	}

	ctx := cp.RestoreContext()
	if got := ctx.Get("a", ""); got != "1" {
		t.Errorf("expected restored value 1, got %q", got)
	}
	if got := ctx.Get("b", ""); got != "2" {
		t.Errorf("expected restored value 2, got %q", got)
	}
	keys := ctx.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("expected deterministic sorted restore order [a b], got %v", keys)
	}
	if len(ctx.Logs()) != 2 {
		t.Errorf("expected 2 restored log lines, got %v", ctx.Logs())
	}
}
