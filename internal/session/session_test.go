package session

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/strand/internal/domain"
)

func newTestSession() *Session {
	return New(domain.DefaultConfig(), nil)
}

func TestAddNode_AssignsIDAndIdleStatus(t *testing.T) {
	sess := newTestSession()

	node := sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "hi"}})
	assert.NotEmpty(t, node.ID)
	assert.Equal(t, domain.NodeStatusIdle, node.Data.Status)

	g := sess.Graph()
	require.Len(t, g.Nodes, 1)
}

func TestDeleteNode_RemovesAttachedEdges(t *testing.T) {
	sess := newTestSession()

	text := sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "hi"}})
	llm := sess.AddNode(domain.Node{Kind: domain.KindLLM})
	_, err := sess.Connect(domain.Edge{Source: text.ID, Target: llm.ID, TargetHandle: domain.HandlePrompt})
	require.NoError(t, err)

	require.NoError(t, sess.DeleteNode(text.ID))

	g := sess.Graph()
	assert.Len(t, g.Nodes, 1)
	assert.Empty(t, g.Edges)

	assert.ErrorIs(t, sess.DeleteNode("missing"), domain.ErrNodeNotFound)
}

func TestConnect_RejectsInvalidEdges(t *testing.T) {
	sess := newTestSession()

	image := sess.AddNode(domain.Node{Kind: domain.KindImage})
	llm := sess.AddNode(domain.Node{Kind: domain.KindLLM})

	_, err := sess.Connect(domain.Edge{Source: image.ID, Target: llm.ID, TargetHandle: domain.HandlePrompt})
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
	assert.Empty(t, sess.Graph().Edges)

	edge, err := sess.Connect(domain.Edge{Source: image.ID, Target: llm.ID, TargetHandle: "image-0"})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
	assert.Len(t, sess.Graph().Edges, 1)
}

func TestUpdateNodeData_MergesPatch(t *testing.T) {
	sess := newTestSession()
	node := sess.AddNode(domain.Node{Kind: domain.KindLLM, Data: domain.NodeData{SystemPrompt: "keep me"}})

	require.NoError(t, sess.UpdateNodeData(node.ID, json.RawMessage(`{"userPrompt":"new prompt"}`)))

	g := sess.Graph()
	updated, ok := g.Node(node.ID)
	require.True(t, ok)
	assert.Equal(t, "new prompt", updated.Data.UserPrompt)
	assert.Equal(t, "keep me", updated.Data.SystemPrompt)

	assert.ErrorIs(t, sess.UpdateNodeData("missing", json.RawMessage(`{}`)), domain.ErrNodeNotFound)
}

func TestUndoRedo(t *testing.T) {
	sess := newTestSession()

	first := sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "one"}})
	sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "two"}})
	require.Len(t, sess.Graph().Nodes, 2)

	require.True(t, sess.Undo())
	g := sess.Graph()
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, first.ID, g.Nodes[0].ID)

	require.True(t, sess.Redo())
	assert.Len(t, sess.Graph().Nodes, 2)

	// bottom and top of the stack
	require.True(t, sess.Undo())
	require.True(t, sess.Undo())
	assert.Empty(t, sess.Graph().Nodes)
	assert.False(t, sess.Undo())

	require.True(t, sess.Redo())
	require.True(t, sess.Redo())
	assert.False(t, sess.Redo())
}

func TestUndo_NewEditDropsRedoBranch(t *testing.T) {
	sess := newTestSession()

	sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "one"}})
	sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "two"}})

	require.True(t, sess.Undo())
	sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "three"}})

	assert.False(t, sess.Redo())

	g := sess.Graph()
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "three", g.Nodes[1].Data.Text)
}

func TestMoveNode_NotUndoable(t *testing.T) {
	sess := newTestSession()
	node := sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "hi"}})

	require.NoError(t, sess.MoveNode(node.ID, domain.Position{X: 200, Y: 300}))

	// undo reverts the node addition, not the move
	require.True(t, sess.Undo())
	assert.Empty(t, sess.Graph().Nodes)
}

func TestUndoDepthBounded(t *testing.T) {
	sess := New(domain.DefaultConfig().WithUndoDepth(3), nil)

	for i := 0; i < 10; i++ {
		sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "n"}})
	}

	steps := 0
	for sess.Undo() {
		steps++
	}
	assert.Equal(t, 2, steps)
}

func TestExportImport_RoundTrip(t *testing.T) {
	source := newTestSession()

	text := source.AddNode(domain.Node{
		Kind:     domain.KindText,
		Position: domain.Position{X: 10, Y: 20},
		Data:     domain.NodeData{Label: "Prompt", Text: "hi", Status: domain.NodeStatusSuccess},
	})
	llm := source.AddNode(domain.Node{
		Kind: domain.KindLLM,
		Data: domain.NodeData{Status: domain.NodeStatusFailed, ErrorMessage: "old failure"},
	})
	_, err := source.Connect(domain.Edge{Source: text.ID, Target: llm.ID, TargetHandle: domain.HandlePrompt})
	require.NoError(t, err)

	doc := source.Export("my-canvas")
	assert.Equal(t, "my-canvas", doc.Name)
	assert.Equal(t, domain.DocumentVersion, doc.Version)
	require.Len(t, doc.Nodes, 2)
	require.Len(t, doc.Edges, 1)

	dest := newTestSession()
	require.NoError(t, dest.Import(doc))

	g := dest.Graph()
	require.Len(t, g.Nodes, 2)
	require.Len(t, g.Edges, 1)

	for _, n := range g.Nodes {
		// fresh ids, reset run state, offset placement
		assert.NotEqual(t, text.ID, n.ID)
		assert.NotEqual(t, llm.ID, n.ID)
		assert.Equal(t, domain.NodeStatusIdle, n.Data.Status)
		assert.Empty(t, n.Data.ErrorMessage)
	}

	imported, ok := g.Node(g.Edges[0].Source)
	require.True(t, ok)
	assert.Equal(t, "Prompt", imported.Data.Label)
	assert.Equal(t, float64(60), imported.Position.X)
	assert.Equal(t, float64(70), imported.Position.Y)
}

func TestImport_MergesIntoExistingCanvas(t *testing.T) {
	sess := newTestSession()
	existing := sess.AddNode(domain.Node{Kind: domain.KindText, Data: domain.NodeData{Text: "keep"}})

	require.NoError(t, sess.Import(domain.Document{
		Name:    "incoming",
		Nodes:   []domain.Node{{ID: "ext-1", Kind: domain.KindLLM}},
		Edges:   []domain.Edge{{ID: "ext-e", Source: "ext-1", Target: "not-in-doc"}},
		Version: domain.DocumentVersion,
	}))

	g := sess.Graph()
	assert.Len(t, g.Nodes, 2)
	// edges pointing outside the document are dropped
	assert.Empty(t, g.Edges)

	_, ok := g.Node(existing.ID)
	assert.True(t, ok)
}

func TestStatusListenerUpdatesNodes(t *testing.T) {
	sess := newTestSession()
	llm := sess.AddNode(domain.Node{Kind: domain.KindLLM})
	crop := sess.AddNode(domain.Node{Kind: domain.KindCrop})

	sess.OnNodeStatus(llm.ID, domain.NodeStatusRunning, "")
	sess.OnNodeOutput(llm.ID, "a generated poem")
	sess.OnNodeStatus(llm.ID, domain.NodeStatusSuccess, "")
	sess.OnNodeOutput(crop.ID, "http://x/cropped.png")
	sess.OnNodeStatus("ghost", domain.NodeStatusFailed, "ignored")

	g := sess.Graph()
	updated, ok := g.Node(llm.ID)
	require.True(t, ok)
	assert.Equal(t, domain.NodeStatusSuccess, updated.Data.Status)
	assert.Equal(t, "a generated poem", updated.Data.Response)

	cropped, ok := g.Node(crop.ID)
	require.True(t, ok)
	assert.Equal(t, "http://x/cropped.png", cropped.Data.OutputURL)
	assert.Empty(t, cropped.Data.Response)
}

func TestSyncHistory(t *testing.T) {
	sess := newTestSession()
	llm := sess.AddNode(domain.Node{Kind: domain.KindLLM})

	sess.SyncHistory([]domain.Run{{
		NodeExecutions: []domain.NodeExecutionResult{
			{NodeID: llm.ID, Status: domain.NodeStatusSuccess, OutputData: map[string]any{"result": "synced"}},
		},
	}})

	g := sess.Graph()
	node, ok := g.Node(llm.ID)
	require.True(t, ok)
	assert.Equal(t, domain.NodeStatusSuccess, node.Data.Status)
	assert.Equal(t, "synced", node.Data.Response)
}
