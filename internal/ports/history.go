package ports

import (
	"context"

	"github.com/eleven-am/strand/internal/domain"
)

// HistoryStore persists runs and their per-node execution records. The run
// log is the source of truth for node results; live node state is a derived
// cache reconciled from it.
type HistoryStore interface {
	// StartRun creates a run record in status running.
	StartRun(ctx context.Context, workflowID string, trigger domain.TriggerType) (*domain.Run, error)

	// RecordNodeResult upserts the execution record for one node within a
	// run, keyed by node id. The first record for a node fixes its creation
	// order; later writes for the same node update status and outputs.
	RecordNodeResult(ctx context.Context, runID string, result domain.NodeExecutionResult) error

	// FinishRun seals a run with its terminal status and total duration.
	FinishRun(ctx context.Context, runID string, status domain.RunStatus, duration string) error

	// Run loads a single run with its node executions, oldest-first.
	Run(ctx context.Context, runID string) (*domain.Run, error)

	// History returns a workflow's runs newest-first, each with node
	// executions ordered by creation.
	History(ctx context.Context, workflowID string) ([]domain.Run, error)

	Close() error
}

// StatusListener observes live node state transitions during a run, letting
// the editing session mirror engine progress without sharing memory with it.
type StatusListener interface {
	OnNodeStatus(nodeID string, status domain.NodeStatus, errorMessage string)
	OnNodeOutput(nodeID string, output string)
}

// NopListener discards all notifications.
type NopListener struct{}

func (NopListener) OnNodeStatus(string, domain.NodeStatus, string) {}

func (NopListener) OnNodeOutput(string, string) {}
