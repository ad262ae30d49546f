package domain

// NodeKind is the closed set of node types a graph may contain. The executor
// switches exhaustively over this set; adding a kind is a compile-time change.
type NodeKind string

const (
	KindText         NodeKind = "text"
	KindImage        NodeKind = "image"
	KindVideo        NodeKind = "video"
	KindLLM          NodeKind = "llm"
	KindCrop         NodeKind = "crop"
	KindExtractFrame NodeKind = "extractFrame"
)

// IsStatic reports whether the kind carries user-supplied data rather than a
// computed result. Static nodes resolve synchronously from their stored value.
func (k NodeKind) IsStatic() bool {
	return k == KindText || k == KindImage || k == KindVideo
}

// IsImageProducer reports whether the kind yields an image URL as its output.
func (k NodeKind) IsImageProducer() bool {
	return k == KindImage || k == KindCrop || k == KindExtractFrame
}

// IsTextProducer reports whether the kind yields text as its output.
func (k NodeKind) IsTextProducer() bool {
	return k == KindText || k == KindLLM
}

type NodeStatus string

const (
	NodeStatusIdle    NodeStatus = "idle"
	NodeStatusPending NodeStatus = "pending"
	NodeStatusRunning NodeStatus = "running"
	NodeStatusSuccess NodeStatus = "success"
	NodeStatusFailed  NodeStatus = "failed"
)

// Target handle names understood by the validator and the executor.
const (
	HandlePrompt       = "prompt"
	HandleSystemPrompt = "system-prompt"
	HandleImageIn      = "image-in"
	HandleVideoIn      = "video-in"
	HandleImagePrefix  = "image"
	HandleDefault      = "default"
)

// Position is canvas placement. Volatile for undo purposes: two graph states
// differing only in positions are considered equal.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// FileRef is an uploaded or linked media file on an image/video node.
type FileRef struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
	URL  string `json:"url"`
}

// LLMOutput is one prior generation kept on an llm node.
type LLMOutput struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}

// NodeData carries the per-node payload. It is a flat struct rather than a
// per-kind union so documents round-trip unchanged; which fields a node
// actually uses is determined by its kind.
type NodeData struct {
	Label        string     `json:"label,omitempty"`
	Status       NodeStatus `json:"status"`
	ErrorMessage string     `json:"errorMessage,omitempty"`

	// text
	Text string `json:"text,omitempty"`

	// image / video
	File *FileRef `json:"file,omitempty"`

	// crop: normalized percentage bounds
	CropX      float64 `json:"cropX,omitempty"`
	CropY      float64 `json:"cropY,omitempty"`
	CropWidth  float64 `json:"cropWidth,omitempty"`
	CropHeight float64 `json:"cropHeight,omitempty"`

	// extractFrame: seconds ("12.5") or a percentage ("50%")
	Timestamp string `json:"timestamp,omitempty"`

	// crop / extractFrame result
	OutputURL string `json:"outputUrl,omitempty"`

	// llm
	Model            string      `json:"model,omitempty"`
	Temperature      float64     `json:"temperature,omitempty"`
	SystemPrompt     string      `json:"systemPrompt,omitempty"`
	UserPrompt       string      `json:"userPrompt,omitempty"`
	ImageHandleCount int         `json:"imageHandleCount,omitempty"`
	Outputs          []LLMOutput `json:"outputs,omitempty"`
	Response         string      `json:"response,omitempty"`
}

type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"type"`
	Position Position `json:"position"`
	Data     NodeData `json:"data"`
	Selected bool     `json:"selected,omitempty"`
}

// Label returns the node's display label, falling back to its kind.
func (n *Node) Label() string {
	if n.Data.Label != "" {
		return n.Data.Label
	}
	return string(n.Kind)
}

// StaticValue returns the value a node contributes without executing in the
// current run, and whether one is present: literal text, an uploaded file URL,
// or the output cached from an earlier run.
func (n *Node) StaticValue() (string, bool) {
	switch {
	case n.Data.Text != "":
		return n.Data.Text, true
	case n.Data.File != nil && n.Data.File.URL != "":
		return n.Data.File.URL, true
	case n.Data.OutputURL != "":
		return n.Data.OutputURL, true
	case n.Data.Response != "":
		return n.Data.Response, true
	}
	return "", false
}

type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// Graph is a snapshot of nodes and edges for a single run. The orchestrator
// never mutates it; live node state belongs to the session.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

func (g *Graph) Node(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

// Incoming returns the edges whose target is the given node.
func (g *Graph) Incoming(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Target == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Outgoing returns the edges whose source is the given node.
func (g *Graph) Outgoing(nodeID string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.Source == nodeID {
			out = append(out, e)
		}
	}
	return out
}

// Leaves returns the ids of nodes that are not the source of any edge.
func (g *Graph) Leaves() []string {
	sources := make(map[string]struct{}, len(g.Edges))
	for _, e := range g.Edges {
		sources[e.Source] = struct{}{}
	}
	var leaves []string
	for _, n := range g.Nodes {
		if _, ok := sources[n.ID]; !ok {
			leaves = append(leaves, n.ID)
		}
	}
	return leaves
}
