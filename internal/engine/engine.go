// Package engine drives workflow runs: it schedules batches of ready nodes,
// dispatches processing nodes to external operations, polls them to
// completion, and cascades failures to downstream dependents.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/graph"
	"github.com/eleven-am/strand/internal/ports"
)

type Engine struct {
	runner   ports.OperationRunner
	history  ports.HistoryStore
	listener ports.StatusListener
	config   *domain.Config
	logger   *slog.Logger
}

func New(runner ports.OperationRunner, history ports.HistoryStore, listener ports.StatusListener, config *domain.Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if listener == nil {
		listener = ports.NopListener{}
	}
	config.Normalize()
	return &Engine{
		runner:   runner,
		history:  history,
		listener: listener,
		config:   config,
		logger:   logger.With("component", "engine"),
	}
}

// Report summarizes one finished run.
type Report struct {
	RunID    string
	Status   domain.RunStatus
	Duration string

	// Results holds the output value of every node that completed
	// successfully, keyed by node id. Append-only during the run.
	Results map[string]string

	// Failed maps failed node ids to the recorded error message.
	Failed map[string]string
}

// runState is the per-run scratchpad. It is only ever touched by the
// orchestrator loop; external operations report back exclusively through
// poll results.
type runState struct {
	results   map[string]string
	completed map[string]struct{}
	failed    map[string]string
	polls     int
}

type inflightOp struct {
	nodeID    string
	handle    string
	startedAt time.Time
}

// Execute runs the plan to completion and seals the run record. The
// returned error is non-nil only for invariant violations (stall) or
// context cancellation; ordinary node failures are reported through the
// Report with run status failed.
func (e *Engine) Execute(ctx context.Context, g *domain.Graph, plan *graph.Plan, run *domain.Run) (*Report, error) {
	start := time.Now()
	state := &runState{
		results:   make(map[string]string),
		completed: make(map[string]struct{}),
		failed:    make(map[string]string),
	}

	e.logger.Info("run started",
		"run_id", run.ID,
		"workflow_id", run.WorkflowID,
		"trigger", string(run.TriggerType),
		"active_nodes", len(plan.Active),
	)

	for id := range plan.Active {
		if node, ok := g.Node(id); ok && !node.Kind.IsStatic() {
			e.listener.OnNodeStatus(id, domain.NodeStatusPending, "")
		}
	}

	var fatal error

	for {
		remaining := e.incomplete(plan, state)
		if len(remaining) == 0 {
			break
		}

		ready := e.readySet(g, plan, state, remaining)
		if len(ready) == 0 {
			fatal = &domain.StallError{Remaining: remaining}
			e.logger.Error("scheduler stalled",
				"run_id", run.ID,
				"incomplete_nodes", len(remaining),
			)
			for _, id := range remaining {
				e.failNode(ctx, g, run, state, id, fatal.Error(), nil)
			}
			break
		}

		inflight := e.dispatchBatch(ctx, g, plan, run, state, ready)

		if err := e.pollBatch(ctx, g, run, state, inflight); err != nil {
			fatal = err
			break
		}
	}

	status := domain.RunStatusSuccess
	if len(state.failed) > 0 || fatal != nil {
		status = domain.RunStatusFailed
	}
	duration := domain.FormatDuration(time.Since(start))

	if err := e.history.FinishRun(ctx, run.ID, status, duration); err != nil {
		e.logger.Error("failed to seal run record",
			"run_id", run.ID,
			"error", err.Error(),
		)
	}

	e.logger.Info("run finished",
		"run_id", run.ID,
		"status", string(status),
		"duration", duration,
		"failed_nodes", len(state.failed),
	)

	return &Report{
		RunID:    run.ID,
		Status:   status,
		Duration: duration,
		Results:  state.results,
		Failed:   state.failed,
	}, fatal
}

func (e *Engine) incomplete(plan *graph.Plan, state *runState) []string {
	var out []string
	for id := range plan.Active {
		if _, done := state.completed[id]; !done {
			out = append(out, id)
		}
	}
	return out
}

// readySet returns the incomplete active nodes whose upstream edges all
// originate from completed nodes.
func (e *Engine) readySet(g *domain.Graph, plan *graph.Plan, state *runState, remaining []string) []string {
	var ready []string
	for _, id := range remaining {
		met := true
		for _, edge := range g.Incoming(id) {
			if _, done := state.completed[edge.Source]; !done {
				met = false
				break
			}
		}
		if met {
			ready = append(ready, id)
		}
	}
	return ready
}

// dispatchBatch resolves static nodes synchronously and submits processing
// nodes to the operation runner. Siblings within a batch have no ordering
// guarantee.
func (e *Engine) dispatchBatch(ctx context.Context, g *domain.Graph, plan *graph.Plan, run *domain.Run, state *runState, ready []string) []inflightOp {
	var inflight []inflightOp

	for _, id := range ready {
		node, ok := g.Node(id)
		if !ok {
			e.failNode(ctx, g, run, state, id, domain.ErrNodeNotFound.Error(), nil)
			continue
		}

		if node.Kind.IsStatic() {
			e.resolveStatic(ctx, g, run, state, node)
			continue
		}

		e.listener.OnNodeStatus(id, domain.NodeStatusRunning, "")
		e.recordResult(ctx, run, domain.NodeExecutionResult{
			NodeID:    id,
			NodeLabel: node.Label(),
			Status:    domain.NodeStatusRunning,
			Duration:  "...",
			CreatedAt: time.Now(),
		})

		req, inputData, err := buildRequest(g, node, state.results)
		if err != nil {
			e.failNode(ctx, g, run, state, id, err.Error(), inputData)
			continue
		}

		handle, err := e.runner.Submit(ctx, req)
		if err != nil {
			e.failNode(ctx, g, run, state, id, err.Error(), inputData)
			continue
		}

		e.logger.Debug("operation submitted",
			"run_id", run.ID,
			"node_id", id,
			"kind", string(req.Kind),
			"handle", handle,
		)
		inflight = append(inflight, inflightOp{nodeID: id, handle: handle, startedAt: time.Now()})
	}

	return inflight
}

// resolveStatic completes a static node from its stored value, or fails it
// (and its descendants) when the node holds nothing.
func (e *Engine) resolveStatic(ctx context.Context, g *domain.Graph, run *domain.Run, state *runState, node *domain.Node) {
	value, ok := node.StaticValue()
	if !ok {
		err := domain.NewMissingDataError(node.ID, node.Label())
		e.failNode(ctx, g, run, state, node.ID, err.Error(), nil)
		return
	}
	state.results[node.ID] = value
	state.completed[node.ID] = struct{}{}
}

// pollBatch waits for every in-flight operation to reach a terminal state.
// A sibling failure cascades immediately but does not abort the remaining
// handles; they are drained so external resources are never orphaned.
func (e *Engine) pollBatch(ctx context.Context, g *domain.Graph, run *domain.Run, state *runState, inflight []inflightOp) error {
	pending := make(map[string]inflightOp, len(inflight))
	for _, op := range inflight {
		pending[op.handle] = op
	}

	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			e.abandonPending(ctx, g, run, state, pending, "run canceled: "+ctx.Err().Error())
			return ctx.Err()
		case <-time.After(e.config.PollInterval):
		}

		state.polls++
		if state.polls > e.config.MaxPollIterations {
			e.abandonPending(ctx, g, run, state, pending, "operation polling abandoned: poll limit exceeded")
			return nil
		}

		for handle, op := range pending {
			update, err := e.runner.Poll(ctx, handle)
			if err != nil {
				delete(pending, handle)
				e.failNode(ctx, g, run, state, op.nodeID, err.Error(), nil)
				continue
			}

			if !update.State.Terminal() {
				continue
			}
			delete(pending, handle)

			if update.State.Success() {
				e.completeNode(ctx, g, run, state, op, update)
				continue
			}

			message := update.Error
			if message == "" {
				message = "task failed: " + string(update.State)
			}
			e.failNode(ctx, g, run, state, op.nodeID, message, nil)
		}
	}

	return nil
}

func (e *Engine) completeNode(ctx context.Context, g *domain.Graph, run *domain.Run, state *runState, op inflightOp, update ports.OperationUpdate) {
	state.results[op.nodeID] = update.Output
	state.completed[op.nodeID] = struct{}{}

	duration := update.Duration
	if duration <= 0 {
		duration = time.Since(op.startedAt)
	}

	label := op.nodeID
	if node, ok := g.Node(op.nodeID); ok {
		label = node.Label()
	}

	e.recordResult(ctx, run, domain.NodeExecutionResult{
		NodeID:     op.nodeID,
		NodeLabel:  label,
		Status:     domain.NodeStatusSuccess,
		Duration:   domain.FormatDuration(duration),
		OutputData: map[string]any{"result": update.Output},
		CreatedAt:  time.Now(),
	})

	e.listener.OnNodeOutput(op.nodeID, update.Output)
	e.listener.OnNodeStatus(op.nodeID, domain.NodeStatusSuccess, "")

	e.logger.Debug("node completed",
		"run_id", run.ID,
		"node_id", op.nodeID,
	)
}

// failNode records a node failure and cascades it to every incomplete
// downstream dependent.
func (e *Engine) failNode(ctx context.Context, g *domain.Graph, run *domain.Run, state *runState, nodeID, message string, inputData map[string]any) {
	if _, done := state.completed[nodeID]; done {
		return
	}

	state.failed[nodeID] = message
	state.completed[nodeID] = struct{}{}

	label := nodeID
	if node, ok := g.Node(nodeID); ok {
		label = node.Label()
	}

	e.recordResult(ctx, run, domain.NodeExecutionResult{
		NodeID:       nodeID,
		NodeLabel:    label,
		Status:       domain.NodeStatusFailed,
		Duration:     domain.FormatDuration(0),
		InputData:    inputData,
		ErrorMessage: message,
		CreatedAt:    time.Now(),
	})
	e.listener.OnNodeStatus(nodeID, domain.NodeStatusFailed, message)

	e.logger.Warn("node failed",
		"run_id", run.ID,
		"node_id", nodeID,
		"error", message,
	)

	e.cascadeFailure(ctx, g, run, state, nodeID)
}

// cascadeFailure marks every incomplete node reachable from the failed
// parent as failed without dispatching it.
func (e *Engine) cascadeFailure(ctx context.Context, g *domain.Graph, run *domain.Run, state *runState, parentID string) {
	for _, edge := range g.Outgoing(parentID) {
		childID := edge.Target
		if _, done := state.completed[childID]; done {
			continue
		}

		state.failed[childID] = domain.CascadeMessage
		state.completed[childID] = struct{}{}

		label := childID
		if node, ok := g.Node(childID); ok {
			label = node.Label()
		}

		e.recordResult(ctx, run, domain.NodeExecutionResult{
			NodeID:       childID,
			NodeLabel:    label,
			Status:       domain.NodeStatusFailed,
			Duration:     domain.FormatDuration(0),
			ErrorMessage: domain.CascadeMessage,
			CreatedAt:    time.Now(),
		})
		e.listener.OnNodeStatus(childID, domain.NodeStatusFailed, domain.CascadeMessage)

		e.cascadeFailure(ctx, g, run, state, childID)
	}
}

func (e *Engine) abandonPending(ctx context.Context, g *domain.Graph, run *domain.Run, state *runState, pending map[string]inflightOp, message string) {
	for handle, op := range pending {
		delete(pending, handle)
		e.failNode(ctx, g, run, state, op.nodeID, message, nil)
	}
}

func (e *Engine) recordResult(ctx context.Context, run *domain.Run, result domain.NodeExecutionResult) {
	if err := e.history.RecordNodeResult(ctx, run.ID, result); err != nil {
		e.logger.Error("failed to record node result",
			"run_id", run.ID,
			"node_id", result.NodeID,
			"error", err.Error(),
		)
	}
}
