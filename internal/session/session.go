// Package session holds the live editing state of one workflow canvas:
// its nodes and edges, a bounded undo history, and the status feed coming
// back from runs in flight.
package session

import (
	"log/slog"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/eleven-am/strand/internal/domain"
	"github.com/eleven-am/strand/internal/engine"
	"github.com/eleven-am/strand/internal/graph"
	"github.com/eleven-am/strand/internal/ports"
)

var _ ports.StatusListener = (*Session)(nil)

// importOffset shifts imported nodes so they never land exactly on top of
// existing ones.
const importOffset = 50

type snapshot struct {
	Nodes []domain.Node `json:"nodes"`
	Edges []domain.Edge `json:"edges"`
}

// Session is safe for concurrent use. Run status callbacks mutate node state
// but never the undo history; only explicit edits are undoable.
type Session struct {
	mu     sync.Mutex
	state  domain.Graph
	logger *slog.Logger

	history []snapshot
	cursor  int
	depth   int
}

func New(config *domain.Config, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	config.Normalize()
	s := &Session{
		logger: logger.With("component", "session"),
		depth:  config.UndoDepth,
	}
	s.history = []snapshot{s.snapshot()}
	return s
}

// Graph returns an immutable copy of the current canvas for a run to execute
// against. Edits made after the snapshot do not affect the run.
func (s *Session) Graph() *domain.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	return &domain.Graph{Nodes: snap.Nodes, Edges: snap.Edges}
}

func (s *Session) AddNode(node domain.Node) domain.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	if node.ID == "" {
		node.ID = uuid.New().String()
	}
	if node.Data.Status == "" {
		node.Data.Status = domain.NodeStatusIdle
	}
	s.state.Nodes = append(s.state.Nodes, node)
	s.record()
	return node
}

// DeleteNode removes a node together with every edge touching it.
func (s *Session) DeleteNode(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Node(id); !ok {
		return domain.ErrNodeNotFound
	}

	nodes := s.state.Nodes[:0]
	for _, n := range s.state.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	s.state.Nodes = nodes

	edges := s.state.Edges[:0]
	for _, e := range s.state.Edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	s.state.Edges = edges

	s.record()
	return nil
}

// Connect validates and adds an edge. Rejections leave the canvas untouched.
func (s *Session) Connect(edge domain.Edge) (domain.Edge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := graph.ValidateConnection(edge, &s.state); err != nil {
		return domain.Edge{}, err
	}
	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}
	s.state.Edges = append(s.state.Edges, edge)
	s.record()
	return edge, nil
}

func (s *Session) Disconnect(edgeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	edges := s.state.Edges[:0]
	for _, e := range s.state.Edges {
		if e.ID != edgeID {
			edges = append(edges, e)
		}
	}
	s.state.Edges = edges
	s.record()
}

// UpdateNodeData merges a partial patch into a node's data. Fields absent
// from the patch keep their current values.
func (s *Session) UpdateNodeData(id string, patch json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.state.Node(id)
	if !ok {
		return domain.ErrNodeNotFound
	}

	merged, err := domain.MergeNodeData(node.Data, patch)
	if err != nil {
		return err
	}
	node.Data = merged
	s.record()
	return nil
}

func (s *Session) MoveNode(id string, pos domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.state.Node(id)
	if !ok {
		return domain.ErrNodeNotFound
	}
	node.Position = pos
	// position-only changes fold into the current undo entry
	s.record()
	return nil
}

// Undo steps the canvas back one recorded edit. Returns false at the bottom
// of the history.
func (s *Session) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor == 0 {
		return false
	}
	s.cursor--
	s.restore(s.history[s.cursor])
	return true
}

func (s *Session) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cursor >= len(s.history)-1 {
		return false
	}
	s.cursor++
	s.restore(s.history[s.cursor])
	return true
}

// Export captures the canvas as a portable document.
func (s *Session) Export(name string) domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	return domain.Document{
		Name:    name,
		Nodes:   snap.Nodes,
		Edges:   snap.Edges,
		Version: domain.DocumentVersion,
	}
}

// Import merges a document into the canvas. Every imported node receives a
// fresh id so repeated imports never collide, positions are offset from the
// originals, and run state is reset to idle. Edges referencing nodes outside
// the document are dropped.
func (s *Session) Import(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	remap := make(map[string]string, len(doc.Nodes))
	for _, n := range doc.Nodes {
		remap[n.ID] = uuid.New().String()
	}

	for _, n := range doc.Nodes {
		n.ID = remap[n.ID]
		n.Position.X += importOffset
		n.Position.Y += importOffset
		n.Data.Status = domain.NodeStatusIdle
		n.Data.ErrorMessage = ""
		n.Selected = false
		s.state.Nodes = append(s.state.Nodes, n)
	}

	kept := 0
	for _, e := range doc.Edges {
		source, okS := remap[e.Source]
		target, okT := remap[e.Target]
		if !okS || !okT {
			continue
		}
		e.ID = uuid.New().String()
		e.Source = source
		e.Target = target
		s.state.Edges = append(s.state.Edges, e)
		kept++
	}

	s.logger.Info("document imported",
		"name", doc.Name,
		"nodes", len(doc.Nodes),
		"edges", kept,
	)
	s.record()
	return nil
}

// SyncHistory reconciles the newest persisted run back onto the canvas.
func (s *Session) SyncHistory(runs []domain.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	engine.ApplyLatestRun(&s.state, runs)
}

// OnNodeStatus implements ports.StatusListener.
func (s *Session) OnNodeStatus(nodeID string, status domain.NodeStatus, errorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.state.Node(nodeID)
	if !ok {
		return
	}
	node.Data.Status = status
	node.Data.ErrorMessage = errorMessage
}

// OnNodeOutput implements ports.StatusListener. URLs land on outputUrl,
// anything else is treated as generated text.
func (s *Session) OnNodeOutput(nodeID string, output string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.state.Node(nodeID)
	if !ok {
		return
	}
	if isURL(output) {
		node.Data.OutputURL = output
	} else {
		node.Data.Response = output
	}
}

func isURL(v string) bool {
	return len(v) > 4 && v[:4] == "http"
}

// snapshot deep-copies the canvas state through JSON so restored states never
// alias live slices.
func (s *Session) snapshot() snapshot {
	snap := snapshot{Nodes: s.state.Nodes, Edges: s.state.Edges}
	raw, err := json.Marshal(snap)
	if err != nil {
		return snapshot{}
	}
	var copied snapshot
	if err := json.Unmarshal(raw, &copied); err != nil {
		return snapshot{}
	}
	if copied.Nodes == nil {
		copied.Nodes = []domain.Node{}
	}
	if copied.Edges == nil {
		copied.Edges = []domain.Edge{}
	}
	return copied
}

func (s *Session) restore(snap snapshot) {
	restored := cloneSnapshot(snap)
	s.state.Nodes = restored.Nodes
	s.state.Edges = restored.Edges
}

func cloneSnapshot(snap snapshot) snapshot {
	raw, err := json.Marshal(snap)
	if err != nil {
		return snapshot{}
	}
	var copied snapshot
	_ = json.Unmarshal(raw, &copied)
	if copied.Nodes == nil {
		copied.Nodes = []domain.Node{}
	}
	if copied.Edges == nil {
		copied.Edges = []domain.Edge{}
	}
	return copied
}

// record pushes the current state onto the undo history. A state that only
// moved or selected nodes folds into the current entry instead of creating
// a new one.
func (s *Session) record() {
	snap := s.snapshot()
	current := s.history[s.cursor]

	if equalIgnoringVolatile(snap, current) {
		s.history[s.cursor] = snap
		return
	}

	s.history = append(s.history[:s.cursor+1], snap)
	if len(s.history) > s.depth {
		s.history = s.history[len(s.history)-s.depth:]
	}
	s.cursor = len(s.history) - 1
}

// equalIgnoringVolatile compares two canvas states with positions and
// selection masked out, so pure layout changes are not undoable edits.
func equalIgnoringVolatile(a, b snapshot) bool {
	na, nb := normalize(a), normalize(b)
	ra, errA := json.Marshal(na)
	rb, errB := json.Marshal(nb)
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}

func normalize(snap snapshot) snapshot {
	out := cloneSnapshot(snap)
	for i := range out.Nodes {
		out.Nodes[i].Position = domain.Position{}
		out.Nodes[i].Selected = false
	}
	return out
}
