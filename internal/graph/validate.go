// Package graph implements the pure topology logic of the engine: admitting
// proposed connections and planning which nodes a run must execute.
package graph

import (
	"strings"

	"github.com/eleven-am/strand/internal/domain"
)

// ValidateConnection decides whether a proposed edge may be added to the
// graph. It is a pure predicate: nil means admissible, otherwise a
// *domain.ValidationError describes the rejection. The executor relies on
// every admitted edge preserving acyclicity.
func ValidateConnection(candidate domain.Edge, g *domain.Graph) error {
	if candidate.Source == candidate.Target {
		return domain.NewValidationError(candidate.Source, "a node cannot connect to itself")
	}

	source, ok := g.Node(candidate.Source)
	if !ok {
		return domain.NewValidationError(candidate.Source, "source node does not exist")
	}
	target, ok := g.Node(candidate.Target)
	if !ok {
		return domain.NewValidationError(candidate.Target, "target node does not exist")
	}

	handle := candidate.TargetHandle

	if strings.HasPrefix(handle, domain.HandleImagePrefix) && !source.Kind.IsImageProducer() {
		return domain.NewValidationError(source.ID, "handle "+handle+" requires an image-producing source")
	}

	if (handle == domain.HandlePrompt || handle == domain.HandleSystemPrompt) && !source.Kind.IsTextProducer() {
		return domain.NewValidationError(source.ID, "handle "+handle+" requires a text-producing source")
	}

	if target.Kind == domain.KindCrop && handle == domain.HandleImageIn && !source.Kind.IsImageProducer() {
		return domain.NewValidationError(source.ID, "crop input requires an image-producing source")
	}

	if target.Kind == domain.KindExtractFrame && handle == domain.HandleVideoIn && source.Kind != domain.KindVideo {
		return domain.NewValidationError(source.ID, "frame extraction input requires a video source")
	}

	if reachable(g, candidate.Target, candidate.Source) {
		return domain.NewValidationError(candidate.Target, "connection would create a cycle")
	}

	return nil
}

// IsValidConnection is the boolean form of ValidateConnection.
func IsValidConnection(candidate domain.Edge, g *domain.Graph) bool {
	return ValidateConnection(candidate, g) == nil
}

// reachable reports whether to can be reached from from by following
// outgoing edges.
func reachable(g *domain.Graph, from, to string) bool {
	visited := make(map[string]struct{})
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == to {
			return true
		}
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		for _, e := range g.Outgoing(id) {
			stack = append(stack, e.Target)
		}
	}
	return false
}
