package domain

import (
	"errors"
	"fmt"
)

// CascadeMessage is the fixed error recorded on every node failed because an
// ancestor failed.
const CascadeMessage = "Parent node failed"

var (
	ErrNodeNotFound    = errors.New("node not found")
	ErrRunNotFound     = errors.New("run not found")
	ErrEmptyGraph      = errors.New("graph has no nodes")
	ErrStoreClosed     = errors.New("history store closed")
	ErrUnknownNodeKind = errors.New("unknown node kind")
)

// ValidationError rejects a proposed connection or an execution request
// before any run record exists.
type ValidationError struct {
	NodeID  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("validation failed for node %s: %s", e.NodeID, e.Message)
	}
	return "validation failed: " + e.Message
}

func NewValidationError(nodeID, message string) *ValidationError {
	return &ValidationError{NodeID: nodeID, Message: message}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// MissingDataError marks a static node that has no content to contribute.
type MissingDataError struct {
	NodeID string
	Label  string
}

func (e *MissingDataError) Error() string {
	return fmt.Sprintf("node %q has no input data", e.Label)
}

func NewMissingDataError(nodeID, label string) *MissingDataError {
	return &MissingDataError{NodeID: nodeID, Label: label}
}

func IsMissingDataError(err error) bool {
	var me *MissingDataError
	return errors.As(err, &me)
}

// OperationError wraps a failure surfaced by an external operation. The
// message is preserved verbatim for diagnostics.
type OperationError struct {
	NodeID  string
	Message string
}

func (e *OperationError) Error() string {
	return e.Message
}

func NewOperationError(nodeID, message string) *OperationError {
	return &OperationError{NodeID: nodeID, Message: message}
}

func IsOperationError(err error) bool {
	var oe *OperationError
	return errors.As(err, &oe)
}

// CascadeError is the synthetic failure applied to descendants of a failed
// node. Its message is always CascadeMessage.
type CascadeError struct {
	NodeID string
}

func (e *CascadeError) Error() string {
	return CascadeMessage
}

func IsCascadeError(err error) bool {
	var ce *CascadeError
	return errors.As(err, &ce)
}

// StallError reports that the scheduler could make no progress while active
// nodes remained incomplete. This indicates a graph invariant violation and
// is fatal to the run.
type StallError struct {
	Remaining []string
}

func (e *StallError) Error() string {
	return fmt.Sprintf("execution stalled with %d incomplete nodes", len(e.Remaining))
}

func IsStallError(err error) bool {
	var se *StallError
	return errors.As(err, &se)
}
