package domain

import (
	"fmt"
	"time"
)

type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// TriggerType records how a run was requested.
type TriggerType string

const (
	TriggerFull    TriggerType = "Full Run"
	TriggerPartial TriggerType = "Partial Run"
	TriggerSingle  TriggerType = "Single Node"
	TriggerChain   TriggerType = "Chain"
)

// DeriveTriggerType maps a target set to the trigger type logged with the run.
func DeriveTriggerType(targetCount int) TriggerType {
	switch targetCount {
	case 0:
		return TriggerFull
	case 1:
		return TriggerSingle
	default:
		return TriggerPartial
	}
}

// Run is one end-to-end execution attempt of a workflow or a subset of it.
// Created when the run starts, appended to as nodes finish, sealed exactly
// once when the run reaches a terminal status.
type Run struct {
	ID             string                `json:"id"`
	WorkflowID     string                `json:"workflowId"`
	TriggerType    TriggerType           `json:"triggerType"`
	Status         RunStatus             `json:"status"`
	StartedAt      time.Time             `json:"startedAt"`
	Duration       string                `json:"duration"`
	NodeExecutions []NodeExecutionResult `json:"nodeExecutions"`
}

// NodeExecutionResult is the per-node record inside a run, ordered by
// creation time. Immutable once the run finalizes.
type NodeExecutionResult struct {
	NodeID       string         `json:"nodeId"`
	NodeLabel    string         `json:"nodeLabel"`
	Status       NodeStatus     `json:"status"`
	Duration     string         `json:"duration"`
	InputData    map[string]any `json:"inputData,omitempty"`
	OutputData   map[string]any `json:"outputData,omitempty"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// FormatDuration renders durations the way run history displays them, e.g. "1.4s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
