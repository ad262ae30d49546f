package strand

import (
	"github.com/eleven-am/strand/internal/domain"
)

// Node is one canvas element: a static input or a processing step.
type Node = domain.Node

// NodeData carries the per-node payload; which fields matter depends on the
// node's kind.
type NodeData = domain.NodeData

// NodeKind identifies what a node is and how it resolves during a run.
type NodeKind = domain.NodeKind

// NodeStatus is a node's live run state as shown on the canvas.
type NodeStatus = domain.NodeStatus

// Edge connects a source node's output to a target node's input handle.
type Edge = domain.Edge

// Graph is a snapshot of the canvas used for one run.
type Graph = domain.Graph

// Position is canvas placement.
type Position = domain.Position

// FileRef is an uploaded or linked media file.
type FileRef = domain.FileRef

// Document is the portable export format for a canvas.
type Document = domain.Document

// Run is one recorded execution attempt.
type Run = domain.Run

// NodeExecutionResult is the per-node record inside a run.
type NodeExecutionResult = domain.NodeExecutionResult

// RunStatus is a run's terminal or in-flight state.
type RunStatus = domain.RunStatus

// TriggerType records how a run was requested.
type TriggerType = domain.TriggerType

const (
	KindText         = domain.KindText
	KindImage        = domain.KindImage
	KindVideo        = domain.KindVideo
	KindLLM          = domain.KindLLM
	KindCrop         = domain.KindCrop
	KindExtractFrame = domain.KindExtractFrame
)

const (
	NodeStatusIdle    = domain.NodeStatusIdle
	NodeStatusPending = domain.NodeStatusPending
	NodeStatusRunning = domain.NodeStatusRunning
	NodeStatusSuccess = domain.NodeStatusSuccess
	NodeStatusFailed  = domain.NodeStatusFailed
)

const (
	RunStatusRunning = domain.RunStatusRunning
	RunStatusSuccess = domain.RunStatusSuccess
	RunStatusFailed  = domain.RunStatusFailed
)

// Error predicates, re-exported so embedders can branch on rejection causes
// without importing internal packages.
var (
	IsValidationError  = domain.IsValidationError
	IsMissingDataError = domain.IsMissingDataError
	IsStallError       = domain.IsStallError
)
