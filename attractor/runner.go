// ABOUTME: Pipeline execution engine implementing the PARSE, VALIDATE, INITIALIZE, EXECUTE, FINALIZE lifecycle.
// ABOUTME: Orchestrates graph traversal, handler dispatch, retry logic, checkpointing, parallel fan-out, and edge selection.
package attractor

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/attractor-run/attractor/emit"
)

// defaultGoalGateMaxRetries bounds how many times a single goal gate may
// redirect execution back to its retry target before the pipeline gives up,
// guarding against a gate that can never be satisfied looping until
// maxIterations is exhausted.
const defaultGoalGateMaxRetries = 10

// RunnerConfig holds configuration for a pipeline Runner.
type RunnerConfig struct {
	CheckpointDir      string           // directory for per-node checkpoint files (empty = no checkpoints)
	AutoCheckpointPath string           // path overwritten with the latest checkpoint after each successful node (empty = disabled)
	Transforms         []Transform      // transforms to apply (nil = DefaultTransforms)
	ExtraLintRules     []LintRule       // additional validation rules
	Handlers           *HandlerRegistry // nil = DefaultHandlerRegistry
	Emitter            *emit.Emitter    // nil = events are dropped
	FileDefaults       *FileConfig      // nil = no operator-wide backoff defaults
	GoalGateMaxRetries int              // max redirects per goal gate before the pipeline fails (0 = defaultGoalGateMaxRetries)
}

// goalGateRetryLimit returns the configured per-gate redirect limit, or the
// default if unset.
func (r *Runner) goalGateRetryLimit() int {
	if r.config.GoalGateMaxRetries > 0 {
		return r.config.GoalGateMaxRetries
	}
	return defaultGoalGateMaxRetries
}

// Runner executes attractor graph pipelines.
type Runner struct {
	config RunnerConfig
}

// NewRunner creates a pipeline Runner with the given configuration.
func NewRunner(config RunnerConfig) *Runner {
	return &Runner{config: config}
}

// PipelineResult holds the final state of a completed pipeline run.
type PipelineResult struct {
	PipelineID     string
	FinalOutcome   *Outcome
	CompletedNodes []string
	NodeOutcomes   map[string]*Outcome
	Context        *Context
}

// Run parses DOT source, then runs the resulting graph through the full lifecycle.
func (r *Runner) Run(ctx context.Context, source string) (*PipelineResult, error) {
	graph, err := Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return r.RunGraph(ctx, graph)
}

// RunGraph runs an already-parsed graph through VALIDATE, INITIALIZE, EXECUTE, and FINALIZE.
func (r *Runner) RunGraph(ctx context.Context, graph *Graph) (*PipelineResult, error) {
	transforms := r.config.Transforms
	if transforms == nil {
		transforms = DefaultTransforms()
	}
	graph = ApplyTransforms(graph, transforms...)

	if r.config.FileDefaults != nil {
		r.config.FileDefaults.ApplyGraphDefaults(graph)
	}

	if _, err := ValidateOrRaise(graph, r.config.ExtraLintRules...); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	pipelineID := uuid.NewString()

	pctx := NewContext()
	pctx.SeedFromGraphAttrs(graph)

	registry := r.config.Handlers
	if registry == nil {
		registry = DefaultHandlerRegistry()
	}

	r.emit(pipelineID, emit.KindPipelineStarted, nil)

	result, err := r.executeGraph(ctx, graph, pctx, registry, pipelineID, nil)
	if err != nil {
		r.emit(pipelineID, emit.KindPipelineFailed, map[string]any{"error": err.Error()})
		return result, err
	}

	r.emit(pipelineID, emit.KindPipelineCompleted, nil)
	return result, nil
}

// ResumeFromCheckpoint loads a checkpoint and resumes execution from the node
// after the checkpointed one, restoring context, completed-node history, and
// retry counters.
func (r *Runner) ResumeFromCheckpoint(ctx context.Context, graph *Graph, checkpointPath string) (*PipelineResult, error) {
	cp, err := LoadCheckpoint(checkpointPath)
	if err != nil {
		return nil, &CheckpointError{Path: checkpointPath, Err: err}
	}

	cpNode := graph.FindNode(cp.CurrentNode)
	if cpNode == nil {
		return nil, newRunnerError(cp.CurrentNode, "checkpoint references a node that no longer exists in the graph", nil)
	}

	pctx := cp.RestoreContext()

	cpOutcome := NewOutcome(StatusSuccess)
	if status := pctx.Get("_last_status", ""); status != "" {
		cpOutcome.Status = StageStatus(status)
	}
	if label := pctx.Get("_last_preferred_label", ""); label != "" {
		cpOutcome.PreferredLabel = label
	}

	selectedEdge := SelectEdge(cpNode, cpOutcome, pctx, graph)
	if selectedEdge == nil {
		outEdges := graph.OutgoingEdges(cp.CurrentNode)
		if len(outEdges) == 0 {
			return nil, newRunnerError(cp.CurrentNode, "checkpoint node has no outgoing edges, cannot resume", nil)
		}
		selectedEdge = outEdges[0]
	}

	nextNode := graph.FindNode(selectedEdge.To)
	if nextNode == nil {
		return nil, newRunnerError(cp.CurrentNode, fmt.Sprintf("edge points to nonexistent node %q", selectedEdge.To), nil)
	}

	registry := r.config.Handlers
	if registry == nil {
		registry = DefaultHandlerRegistry()
	}

	pipelineID := cp.PipelineID
	if pipelineID == "" {
		pipelineID = uuid.NewString()
	}

	r.emit(pipelineID, emit.KindPipelineRestarted, map[string]any{"from_node": cp.CurrentNode})

	rs := &resumeState{
		completedNodes: cp.CompletedNodes,
		nodeRetries:    cp.NodeRetries,
		nodeOutcomes:   cp.NodeOutcomes,
	}

	result, err := r.executeGraph(ctx, graph, pctx, registry, pipelineID, &resumeFrom{node: nextNode, state: rs})
	if err != nil {
		r.emit(pipelineID, emit.KindPipelineFailed, map[string]any{"error": err.Error()})
		return result, err
	}

	r.emit(pipelineID, emit.KindPipelineCompleted, map[string]any{"resumed": true})
	return result, nil
}

// resumeState carries forward previously completed nodes, retry counters, and
// outcomes from a loaded checkpoint.
type resumeState struct {
	completedNodes []string
	nodeRetries    map[string]int
	nodeOutcomes   map[string]Outcome
}

// resumeFrom bundles the node to start at with the resume state to seed.
type resumeFrom struct {
	node  *Node
	state *resumeState
}

// executeGraph implements the core traversal loop: sequential node execution
// with retry, parallel fan-out/fan-in dispatch, goal-gate redirect, and
// per-node checkpointing.
func (r *Runner) executeGraph(
	ctx context.Context,
	graph *Graph,
	pctx *Context,
	registry *HandlerRegistry,
	pipelineID string,
	resume *resumeFrom,
) (*PipelineResult, error) {
	var currentNode *Node
	if resume != nil {
		currentNode = resume.node
	} else {
		startNode := graph.FindStartNode()
		if startNode == nil {
			return nil, newRunnerError("", "graph has no start node (shape=Mdiamond)", nil)
		}
		currentNode = startNode
	}

	completedNodes := make([]string, 0)
	nodeOutcomes := make(map[string]*Outcome)
	nodeRetries := make(map[string]int)

	if resume != nil && resume.state != nil {
		completedNodes = append(completedNodes, resume.state.completedNodes...)
		for k, v := range resume.state.nodeRetries {
			nodeRetries[k] = v
		}
		for k, v := range resume.state.nodeOutcomes {
			o := v
			nodeOutcomes[k] = &o
		}
	}

	var finalOutcome *Outcome

	const maxIterations = 10000
	iteration := 0

	for {
		iteration++
		if iteration > maxIterations {
			return nil, newRunnerError(currentNode.ID, fmt.Sprintf("execution exceeded maximum iterations (%d), possible infinite loop", maxIterations), nil)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		node := currentNode

		if isTerminal(node) {
			handler := registry.Resolve(node)
			if handler != nil {
				r.emit(pipelineID, emit.KindStageStarted, map[string]any{"node": node.ID})
				outcome, err := safeExecute(ctx, handler, node, pctx, graph)
				if err != nil {
					r.emit(pipelineID, emit.KindStageFailed, map[string]any{"node": node.ID, "reason": err.Error()})
					return nil, newRunnerError(node.ID, "terminal node handler error", err)
				}
				nodeOutcomes[node.ID] = outcome
				pctx.ApplyUpdates(outcome.ContextUpdates)
				r.emit(pipelineID, emit.KindStageCompleted, map[string]any{"node": node.ID})
				finalOutcome = outcome
			}

			redirectNode, gateErr := r.applyGoalGateCheck(graph, nodeOutcomes, &completedNodes, nodeRetries)
			if gateErr != nil {
				return nil, gateErr
			}
			if redirectNode != nil {
				currentNode = redirectNode
				continue
			}

			break
		}

		handler := registry.Resolve(node)
		if handler == nil {
			return nil, newRunnerError(node.ID, "no handler found for node", nil)
		}

		r.emit(pipelineID, emit.KindStageStarted, map[string]any{"node": node.ID})

		retryPolicy := buildRetryPolicy(node, graph)
		outcome, err := ExecuteNodeWithRetry(ctx, handler, node, pctx, graph, retryPolicy, func(attempt int, delay time.Duration, reason string) {
			nodeRetries[node.ID]++
			r.emit(pipelineID, emit.KindStageRetrying, map[string]any{
				"node":    node.ID,
				"attempt": attempt,
				"delayMs": delay.Milliseconds(),
				"reason":  reason,
			})
		})
		if err != nil {
			r.emit(pipelineID, emit.KindStageFailed, map[string]any{"node": node.ID, "reason": err.Error()})
			return nil, newRunnerError(node.ID, "execution error", err)
		}

		completedNodes = append(completedNodes, node.ID)
		nodeOutcomes[node.ID] = outcome

		if outcome.IsSuccessLike() {
			r.emit(pipelineID, emit.KindStageCompleted, map[string]any{"node": node.ID})
		} else {
			data := map[string]any{"node": node.ID, "status": string(outcome.Status)}
			if outcome.FailureReason != "" {
				data["reason"] = outcome.FailureReason
			}
			r.emit(pipelineID, emit.KindStageFailed, data)
		}

		pctx.ApplyUpdates(outcome.ContextUpdates)
		pctx.Set("_last_status", string(outcome.Status))
		if outcome.PreferredLabel != "" {
			pctx.Set("_last_preferred_label", outcome.PreferredLabel)
		}

		if branchIDsRaw := pctx.Get("parallel.branches", ""); branchIDsRaw != "" {
			branchIDs := parseBranchIDs(branchIDsRaw)
			if len(branchIDs) > 0 {
				parallelCfg := ParallelConfigFromContext(pctx)
				branchResults, parallelErr := ExecuteParallelBranches(ctx, graph, pctx, registry, branchIDs, parallelCfg, r.config.Emitter, pipelineID)
				if parallelErr != nil {
					return nil, newRunnerError(node.ID, "parallel execution failed", parallelErr)
				}

				ResolveParallelResults(pctx, branchResults, parallelCfg)

				for _, br := range branchResults {
					completedNodes = append(completedNodes, br.NodeID)
					if br.Outcome != nil {
						nodeOutcomes[br.NodeID] = br.Outcome
					}
				}

				pctx.Set("parallel.branches", "")

				if fanInNode := findFanInNode(graph, branchIDs); fanInNode != nil {
					currentNode = fanInNode
					continue
				}
			}
		}

		if r.config.CheckpointDir != "" {
			cpOutcomes := snapshotOutcomes(nodeOutcomes)
			cp := NewCheckpoint(pipelineID, pctx, node.ID, completedNodes, nodeRetries, cpOutcomes)
			cpPath := filepath.Join(r.config.CheckpointDir, fmt.Sprintf("checkpoint_%s_%d.json", sanitizeNodeID(node.ID), time.Now().UnixNano()))
			if saveErr := cp.Save(cpPath); saveErr != nil {
				pctx.AppendLog(fmt.Sprintf("warning: failed to save checkpoint: %v", saveErr))
			} else {
				r.emit(pipelineID, emit.KindCheckpointSaved, map[string]any{"node": node.ID, "path": cpPath})
			}
		}

		if r.config.AutoCheckpointPath != "" && outcome.IsSuccessLike() {
			cpOutcomes := snapshotOutcomes(nodeOutcomes)
			cp := NewCheckpoint(pipelineID, pctx, node.ID, completedNodes, nodeRetries, cpOutcomes)
			if saveErr := cp.Save(r.config.AutoCheckpointPath); saveErr != nil {
				pctx.AppendLog(fmt.Sprintf("warning: failed to save auto-checkpoint: %v", saveErr))
			}
		}

		nextEdge := SelectEdge(node, outcome, pctx, graph)

		redirectNode, gateErr := r.applyGoalGateCheck(graph, nodeOutcomes, &completedNodes, nodeRetries)
		if gateErr != nil {
			return nil, gateErr
		}
		if redirectNode != nil {
			currentNode = redirectNode
			continue
		}

		// A FAIL outcome continues only along a conditional edge that matched
		// it (a fail edge) or through the goal-gate redirect above.
		if outcome.Status == StatusFail && (nextEdge == nil || nextEdge.Attrs.GetString("condition", "") == "") {
			return nil, newRunnerError(node.ID, "stage failed with no outgoing fail edge", nil)
		}

		if nextEdge == nil {
			finalOutcome = outcome
			break
		}

		nextNode := graph.FindNode(nextEdge.To)
		if nextNode == nil {
			return nil, newRunnerError(node.ID, fmt.Sprintf("edge points to nonexistent node %q", nextEdge.To), nil)
		}
		currentNode = nextNode
	}

	return &PipelineResult{
		PipelineID:     pipelineID,
		FinalOutcome:   finalOutcome,
		CompletedNodes: completedNodes,
		NodeOutcomes:   nodeOutcomes,
		Context:        pctx,
	}, nil
}

// applyGoalGateCheck runs the goal-gate check after a completed node. If the
// gate set is satisfied, it returns (nil, nil) and the caller should proceed
// as normal. If unsatisfied, it resolves the retry target, enforces the
// per-gate redirect limit, clears the completed-node and outcome records for
// every node on the path from the retry target to the failed gate (but never
// the failed gate's own retry counter, which tracks the limit itself), and
// returns the node execution should redirect to.
func (r *Runner) applyGoalGateCheck(graph *Graph, nodeOutcomes map[string]*Outcome, completedNodes *[]string, nodeRetries map[string]int) (*Node, error) {
	gateOK, failedNode := checkGoalGates(graph, nodeOutcomes)
	if gateOK {
		return nil, nil
	}

	retryTarget := getRetryTarget(failedNode, graph)
	if retryTarget == "" {
		return nil, newRunnerError(failedNode.ID, "goal gate unsatisfied, no retry target available", nil)
	}
	targetNode := graph.FindNode(retryTarget)
	if targetNode == nil {
		return nil, newRunnerError(failedNode.ID, "goal gate unsatisfied, no retry target available", nil)
	}

	nodeRetries[failedNode.ID]++
	if limit := r.goalGateRetryLimit(); nodeRetries[failedNode.ID] > limit {
		return nil, newRunnerError(failedNode.ID, fmt.Sprintf("goal gate exceeded retry limit (%d)", limit), nil)
	}

	cleared := nodesOnPaths(graph, retryTarget, failedNode.ID)
	*completedNodes = removeNodeIDs(*completedNodes, cleared)
	for id := range cleared {
		delete(nodeOutcomes, id)
		if id != failedNode.ID {
			delete(nodeRetries, id)
		}
	}

	return targetNode, nil
}

// emit sends a timestamped event to the configured emitter, if any.
func (r *Runner) emit(pipelineID string, kind emit.Kind, data map[string]any) {
	if r.config.Emitter == nil {
		return
	}
	r.config.Emitter.Emit(emit.Event{Kind: kind, Timestamp: time.Now(), PipelineID: pipelineID, Data: data})
}

// GetHandler returns the handler registered for typeName, initializing a
// default registry first if none was configured.
func (r *Runner) GetHandler(typeName string) NodeHandler {
	if r.config.Handlers == nil {
		r.config.Handlers = DefaultHandlerRegistry()
	}
	return r.config.Handlers.Get(typeName)
}

// SetHandler registers a handler, initializing a default registry first if
// none was configured.
func (r *Runner) SetHandler(handler NodeHandler) {
	if r.config.Handlers == nil {
		r.config.Handlers = DefaultHandlerRegistry()
	}
	r.config.Handlers.Register(handler)
}

// sanitizeNodeID replaces path separators and other unsafe characters in a
// node ID so it can be used in a checkpoint filename without risk of path
// traversal.
func sanitizeNodeID(id string) string {
	out := make([]rune, 0, len(id))
	for _, c := range id {
		switch c {
		case '/', '\\':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
	}
	return string(out)
}

// removeNodeIDs returns completed with every ID present in cleared removed,
// preserving relative order.
func removeNodeIDs(completed []string, cleared map[string]bool) []string {
	if len(cleared) == 0 {
		return completed
	}
	out := make([]string, 0, len(completed))
	for _, id := range completed {
		if !cleared[id] {
			out = append(out, id)
		}
	}
	return out
}

// snapshotOutcomes converts a map of outcome pointers into a map of outcome
// values suitable for checkpoint serialization.
func snapshotOutcomes(m map[string]*Outcome) map[string]Outcome {
	out := make(map[string]Outcome, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}
