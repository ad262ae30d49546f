package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eleven-am/strand/internal/domain"
)

func canvasFixture() *domain.Graph {
	return &domain.Graph{
		Nodes: []domain.Node{
			{ID: "text", Kind: domain.KindText},
			{ID: "image", Kind: domain.KindImage},
			{ID: "video", Kind: domain.KindVideo},
			{ID: "llm", Kind: domain.KindLLM},
			{ID: "crop", Kind: domain.KindCrop},
			{ID: "extract", Kind: domain.KindExtractFrame},
		},
	}
}

func TestValidateConnection(t *testing.T) {
	tests := []struct {
		name    string
		edge    domain.Edge
		wantErr string
	}{
		{
			name: "text to llm prompt",
			edge: domain.Edge{Source: "text", Target: "llm", TargetHandle: domain.HandlePrompt},
		},
		{
			name: "llm to llm prompt",
			edge: domain.Edge{Source: "llm", Target: "llm2", TargetHandle: domain.HandlePrompt},
		},
		{
			name: "image to llm image handle",
			edge: domain.Edge{Source: "image", Target: "llm", TargetHandle: "image-0"},
		},
		{
			name: "crop output to llm image handle",
			edge: domain.Edge{Source: "crop", Target: "llm", TargetHandle: "image-1"},
		},
		{
			name:    "text to llm image handle rejected",
			edge:    domain.Edge{Source: "text", Target: "llm", TargetHandle: "image-0"},
			wantErr: "image-producing source",
		},
		{
			name:    "image to llm prompt rejected",
			edge:    domain.Edge{Source: "image", Target: "llm", TargetHandle: domain.HandlePrompt},
			wantErr: "text-producing source",
		},
		{
			name:    "video to llm system prompt rejected",
			edge:    domain.Edge{Source: "video", Target: "llm", TargetHandle: domain.HandleSystemPrompt},
			wantErr: "text-producing source",
		},
		{
			name: "image to crop input",
			edge: domain.Edge{Source: "image", Target: "crop", TargetHandle: domain.HandleImageIn},
		},
		{
			name: "extract frame output to crop input",
			edge: domain.Edge{Source: "extract", Target: "crop", TargetHandle: domain.HandleImageIn},
		},
		{
			name:    "video to crop input rejected",
			edge:    domain.Edge{Source: "video", Target: "crop", TargetHandle: domain.HandleImageIn},
			wantErr: "image-producing source",
		},
		{
			name: "video to frame extraction",
			edge: domain.Edge{Source: "video", Target: "extract", TargetHandle: domain.HandleVideoIn},
		},
		{
			name:    "image to frame extraction rejected",
			edge:    domain.Edge{Source: "image", Target: "extract", TargetHandle: domain.HandleVideoIn},
			wantErr: "video source",
		},
		{
			name:    "self loop rejected",
			edge:    domain.Edge{Source: "llm", Target: "llm", TargetHandle: domain.HandlePrompt},
			wantErr: "cannot connect to itself",
		},
		{
			name:    "missing source rejected",
			edge:    domain.Edge{Source: "ghost", Target: "llm", TargetHandle: domain.HandlePrompt},
			wantErr: "source node does not exist",
		},
		{
			name:    "missing target rejected",
			edge:    domain.Edge{Source: "text", Target: "ghost", TargetHandle: domain.HandlePrompt},
			wantErr: "target node does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := canvasFixture()
			g.Nodes = append(g.Nodes, domain.Node{ID: "llm2", Kind: domain.KindLLM})

			err := ValidateConnection(tt.edge, g)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, domain.IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateConnection_CycleDetection(t *testing.T) {
	g := &domain.Graph{
		Nodes: []domain.Node{
			{ID: "a", Kind: domain.KindLLM},
			{ID: "b", Kind: domain.KindLLM},
			{ID: "c", Kind: domain.KindLLM},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "a", Target: "b", TargetHandle: domain.HandlePrompt},
			{ID: "e2", Source: "b", Target: "c", TargetHandle: domain.HandlePrompt},
		},
	}

	err := ValidateConnection(domain.Edge{Source: "c", Target: "a", TargetHandle: domain.HandlePrompt}, g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")

	// forward edge along existing paths stays acyclic
	assert.True(t, IsValidConnection(domain.Edge{Source: "a", Target: "c", TargetHandle: domain.HandlePrompt}, g))
}
