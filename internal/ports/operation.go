package ports

import (
	"context"
	"time"
)

// OperationKind selects which backing operation a request is dispatched to.
type OperationKind string

const (
	OperationLLMGenerate  OperationKind = "llm-generate"
	OperationMediaCrop    OperationKind = "media-crop"
	OperationMediaExtract OperationKind = "media-extract"
)

// MediaParams carries crop bounds (normalized percentages) or an extraction
// timestamp (seconds, or a "%"-suffixed fraction of the video length).
type MediaParams struct {
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Width     float64 `json:"width,omitempty"`
	Height    float64 `json:"height,omitempty"`
	Timestamp string  `json:"timestamp,omitempty"`
}

// OperationRequest is the input contract for one external operation.
type OperationRequest struct {
	Kind OperationKind `json:"kind"`

	// llm-generate
	System string   `json:"system,omitempty"`
	Prompt string   `json:"prompt,omitempty"`
	Images []string `json:"images,omitempty"`
	Model  string   `json:"model,omitempty"`

	// media-crop / media-extract
	InputURL string      `json:"inputUrl,omitempty"`
	Params   MediaParams `json:"params,omitempty"`
}

// OperationState is the lifecycle of a submitted operation as seen by the
// poll loop. Everything but Pending is terminal.
type OperationState string

const (
	OperationPending   OperationState = "pending"
	OperationCompleted OperationState = "completed"
	OperationFailed    OperationState = "failed"
	OperationCanceled  OperationState = "canceled"
	OperationCrashed   OperationState = "crashed"
	OperationTimedOut  OperationState = "timed_out"
	OperationExpired   OperationState = "expired"
)

func (s OperationState) Terminal() bool {
	return s != OperationPending
}

func (s OperationState) Success() bool {
	return s == OperationCompleted
}

// OperationUpdate is one poll observation of a submitted operation.
type OperationUpdate struct {
	State    OperationState `json:"state"`
	Output   string         `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
}

// OperationRunner is the collaborator boundary for asynchronous external
// work. Submit must return quickly with an opaque handle; Poll reports the
// operation's current state and is safe to call repeatedly. The orchestrator
// never cancels a handle; runners enforce their own timeouts.
type OperationRunner interface {
	Submit(ctx context.Context, req OperationRequest) (handle string, err error)
	Poll(ctx context.Context, handle string) (OperationUpdate, error)
}
