package graph

import (
	"github.com/eleven-am/strand/internal/domain"
)

// ScopeKind selects how much of the graph a run covers.
type ScopeKind string

const (
	// ScopeFull executes every node reachable upstream of the graph's
	// leaves; with no leaves, every node.
	ScopeFull ScopeKind = "full"

	// ScopeTargets executes exactly the requested nodes, treating their
	// untargeted static parents as cached inputs.
	ScopeTargets ScopeKind = "targets"

	// ScopeChain executes one node together with all of its ancestors.
	ScopeChain ScopeKind = "chain"
)

type Scope struct {
	Kind    ScopeKind
	Targets []string
}

func FullScope() Scope {
	return Scope{Kind: ScopeFull}
}

func TargetScope(ids ...string) Scope {
	return Scope{Kind: ScopeTargets, Targets: ids}
}

func ChainScope(id string) Scope {
	return Scope{Kind: ScopeChain, Targets: []string{id}}
}

// Plan is the resolved execution set for one run.
type Plan struct {
	// Active holds every node id that will be resolved during the run,
	// including static parents pulled in to supply cached values.
	Active map[string]struct{}

	Trigger domain.TriggerType
}

func (p *Plan) Contains(id string) bool {
	_, ok := p.Active[id]
	return ok
}

// Resolve computes the active node set for a scope, applying the pre-flight
// rules that protect partial runs: a selection of only static inputs cannot
// run, processing outputs are never trusted as stale cache, and static
// parents must actually hold data. Violations are reported before any run
// record is created.
func Resolve(g *domain.Graph, scope Scope) (*Plan, error) {
	if len(g.Nodes) == 0 {
		return nil, domain.ErrEmptyGraph
	}

	switch scope.Kind {
	case ScopeFull:
		return resolveFull(g), nil
	case ScopeChain:
		return resolveChain(g, scope.Targets)
	case ScopeTargets:
		return resolveTargets(g, scope.Targets)
	default:
		return nil, domain.NewValidationError("", "unknown execution scope")
	}
}

func resolveFull(g *domain.Graph) *Plan {
	active := make(map[string]struct{}, len(g.Nodes))

	leaves := g.Leaves()
	if len(leaves) == 0 {
		for _, n := range g.Nodes {
			active[n.ID] = struct{}{}
		}
		return &Plan{Active: active, Trigger: domain.TriggerFull}
	}

	collectAncestors(g, leaves, active)
	return &Plan{Active: active, Trigger: domain.TriggerFull}
}

func resolveChain(g *domain.Graph, targets []string) (*Plan, error) {
	if len(targets) != 1 {
		return nil, domain.NewValidationError("", "chain scope requires exactly one target")
	}

	target, ok := g.Node(targets[0])
	if !ok {
		return nil, domain.NewValidationError(targets[0], "target node does not exist")
	}
	if target.Kind.IsStatic() {
		return nil, domain.NewValidationError(target.ID, "static input nodes cannot be run on their own")
	}

	active := make(map[string]struct{})
	collectAncestors(g, targets, active)
	return &Plan{Active: active, Trigger: domain.TriggerChain}, nil
}

func resolveTargets(g *domain.Graph, targets []string) (*Plan, error) {
	if len(targets) == 0 {
		return nil, domain.NewValidationError("", "no target nodes selected")
	}

	targetSet := make(map[string]struct{}, len(targets))
	allStatic := true
	for _, id := range targets {
		node, ok := g.Node(id)
		if !ok {
			return nil, domain.NewValidationError(id, "target node does not exist")
		}
		targetSet[id] = struct{}{}
		if !node.Kind.IsStatic() {
			allStatic = false
		}
	}

	if allStatic {
		return nil, domain.NewValidationError(targets[0], "static input nodes cannot be run on their own")
	}

	active := make(map[string]struct{}, len(targetSet))
	for id := range targetSet {
		active[id] = struct{}{}
	}

	for _, id := range targets {
		for _, e := range g.Incoming(id) {
			if _, targeted := targetSet[e.Source]; targeted {
				continue
			}
			parent, ok := g.Node(e.Source)
			if !ok {
				return nil, domain.NewValidationError(e.Source, "edge references a missing node")
			}

			if !parent.Kind.IsStatic() {
				return nil, domain.NewValidationError(parent.ID,
					"upstream node \""+parent.Label()+"\" must be included in the selection")
			}

			if _, has := parent.StaticValue(); !has {
				return nil, domain.NewMissingDataError(parent.ID, parent.Label())
			}

			active[parent.ID] = struct{}{}
		}
	}

	return &Plan{Active: active, Trigger: domain.DeriveTriggerType(len(targets))}, nil
}

// collectAncestors walks incoming edges from the seed set and marks every
// node it visits, seeds included.
func collectAncestors(g *domain.Graph, seeds []string, out map[string]struct{}) {
	stack := append([]string(nil), seeds...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := out[id]; seen {
			continue
		}
		out[id] = struct{}{}
		for _, e := range g.Incoming(id) {
			stack = append(stack, e.Source)
		}
	}
}
