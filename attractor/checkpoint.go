// ABOUTME: Checkpoint serialization for persisting execution state to disk.
// ABOUTME: Supports JSON save/load for resuming pipeline runs from a known point.
package attractor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a serializable snapshot of execution state, written after
// each completed node so a run can be resumed from the last known point.
type Checkpoint struct {
	PipelineID     string            `json:"pipeline_id"`
	Timestamp      time.Time         `json:"timestamp"`
	CurrentNode    string            `json:"current_node"`
	CompletedNodes []string          `json:"completed_nodes"`
	NodeRetries    map[string]int    `json:"node_retries"`
	NodeOutcomes   map[string]Outcome `json:"node_outcomes"`
	ContextValues  map[string]string `json:"context_values"`
	Logs           []string          `json:"logs"`
}

// NewCheckpoint creates a checkpoint from the current execution state.
func NewCheckpoint(pipelineID string, ctx *Context, currentNode string, completedNodes []string, nodeRetries map[string]int, nodeOutcomes map[string]Outcome) *Checkpoint {
	return &Checkpoint{
		PipelineID:     pipelineID,
		Timestamp:      time.Now(),
		CurrentNode:    currentNode,
		CompletedNodes: completedNodes,
		NodeRetries:    nodeRetries,
		NodeOutcomes:   nodeOutcomes,
		ContextValues:  ctx.Snapshot(),
		Logs:           ctx.Logs(),
	}
}

// Save serializes the checkpoint to JSON and writes it to the given path,
// creating missing parent directories.
func (cp *Checkpoint) Save(path string) error {
	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadCheckpoint deserializes a checkpoint from JSON at the given path,
// backfilling optional fields absent from older checkpoint files. A
// checkpoint with a zero Timestamp is rejected: a timestamp cannot be
// reconstructed after the fact and its absence means the file is not a
// real checkpoint.
func LoadCheckpoint(path string) (*Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, err
	}

	if cp.Timestamp.IsZero() {
		return nil, fmt.Errorf("checkpoint at %s is missing a timestamp", path)
	}

	if cp.PipelineID == "" {
		cp.PipelineID = uuid.NewString()
	}
	if cp.NodeRetries == nil {
		cp.NodeRetries = make(map[string]int)
	}
	if cp.NodeOutcomes == nil {
		cp.NodeOutcomes = make(map[string]Outcome)
	}
	if cp.ContextValues == nil {
		cp.ContextValues = make(map[string]string)
	}

	return &cp, nil
}

// RestoreContext builds a Context populated from the checkpoint's saved
// values and log history.
func (cp *Checkpoint) RestoreContext() *Context {
	ctx := NewContext()
	for _, k := range orderedContextKeys(cp.ContextValues) {
		ctx.Set(k, cp.ContextValues[k])
	}
	for _, line := range cp.Logs {
		ctx.AppendLog(line)
	}
	return ctx
}

// orderedContextKeys returns the keys of m in a deterministic (sorted) order
// so restored context preserves a stable, reproducible key ordering.
func orderedContextKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
