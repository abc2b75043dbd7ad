package graph

import (
	"fmt"

	"marketscreener/internal/domain"
)

// Graph owns the id-keyed set of ComputeNodes for one compile call. It is
// never shared across calls (spec §5).
type Graph struct {
	nodes    map[string]Node
	order    []string // insertion order, so iteration is deterministic (spec §9)
	counters map[Kind]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[string]Node),
		counters: make(map[Kind]int),
	}
}

// NextID allocates the next deterministic id for kind, of the form
// "<kind>_<counter>" with a per-kind counter (spec §4.1). Counters are
// never reused, even across RemoveNode calls, and a counter value whose id
// already names a node in the graph is skipped.
func (g *Graph) NextID(kind Kind) string {
	for {
		g.counters[kind]++
		id := fmt.Sprintf("%s_%d", kind, g.counters[kind])
		if _, taken := g.nodes[id]; !taken {
			return id
		}
	}
}

// AddNode inserts n, marks it terminal, and flips each of its inputs to
// non-terminal (spec §4.1).
func (g *Graph) AddNode(n Node) Node {
	g.nodes[n.ID()] = n
	g.order = append(g.order, n.ID())
	n.SetTerminal(true)
	for _, in := range n.Inputs() {
		if inNode, ok := g.nodes[in]; ok {
			inNode.SetTerminal(false)
		}
	}
	return n
}

// Get returns the node with id, or false if it does not exist.
func (g *Graph) Get(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// RemoveNode deletes id from the graph and flips any of its former inputs
// back to terminal if nothing else references them.
func (g *Graph) RemoveNode(id string) {
	n, ok := g.nodes[id]
	if !ok {
		return
	}
	delete(g.nodes, id)
	for i, oid := range g.order {
		if oid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	for _, in := range n.Inputs() {
		if len(g.FindDependents(in)) == 0 {
			if inNode, ok := g.nodes[in]; ok {
				inNode.SetTerminal(true)
			}
		}
	}
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of nodes currently in the graph.
func (g *Graph) Len() int { return len(g.nodes) }

// FindDependents returns every node whose Inputs() list contains id.
func (g *Graph) FindDependents(id string) []Node {
	var deps []Node
	for _, nid := range g.order {
		n := g.nodes[nid]
		for _, in := range n.Inputs() {
			if in == id {
				deps = append(deps, n)
				break
			}
		}
	}
	return deps
}

// ExecutionOrder returns a depth-first post-order topological sort,
// visiting each source node first and then sweeping any remaining nodes
// in insertion order (spec §4.1). Returns CycleDetectedError if a node is
// re-entered while still on the active path, DanglingReferenceError if an
// input names a node that does not exist.
func (g *Graph) ExecutionOrder() ([]Node, error) {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.nodes))
	order := make([]Node, 0, len(g.nodes))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return domain.ErrCycleDetected(id)
		}
		state[id] = visiting
		n, ok := g.nodes[id]
		if !ok {
			return domain.ErrDanglingReference("", id)
		}
		for _, in := range n.Inputs() {
			if _, exists := g.nodes[in]; !exists {
				return domain.ErrDanglingReference(id, in)
			}
			if err := visit(in); err != nil {
				return err
			}
		}
		state[id] = done
		order = append(order, n)
		return nil
	}

	for _, id := range g.order {
		if g.nodes[id].Kind() == KindSource {
			if err := visit(id); err != nil {
				return nil, err
			}
		}
	}
	for _, id := range g.order {
		if err := visit(id); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ReplaceNodeID rewrites every reference to old across the graph — generic
// Inputs lists, filter condition sides, sort criteria, and projection
// column source references — to point at newID instead. When alias is
// non-empty and a rewritten filter side carried a Metric, the side's
// Metric becomes alias; otherwise it is left as-is (spec §4.1). Nodes
// listed in exclude are skipped entirely — used by join inference so the
// join node's own input list (which legitimately names old, the source
// being folded into it) is not rewritten into a self-reference.
func (g *Graph) ReplaceNodeID(old, newID, alias string, exclude ...string) {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	for _, id := range g.order {
		if skip[id] {
			continue
		}
		n := g.nodes[id]
		ins := n.Inputs()
		changed := false
		for i, in := range ins {
			if in == old {
				ins[i] = newID
				changed = true
			}
		}
		if changed {
			n.SetInputs(ins)
		}
		switch v := n.(type) {
		case *FilterNode:
			if v.Left.Input == old {
				v.Left.Input = newID
				if alias != "" && v.Left.Metric != "" {
					v.Left.Metric = alias
				}
			}
			if v.Right.Input == old {
				v.Right.Input = newID
				if alias != "" && v.Right.Metric != "" {
					v.Right.Metric = alias
				}
			}
		case *SortNode:
			for i := range v.Criteria {
				if !v.Criteria[i].IsLiteral && v.Criteria[i].Expression == old {
					v.Criteria[i].Expression = newID
				}
			}
		case *ProjectionNode:
			for i := range v.Columns {
				if v.Columns[i].SourceNode == old {
					v.Columns[i].SourceNode = newID
				}
			}
		}
	}
}

// Sources returns every source node, in insertion order.
func (g *Graph) Sources() []*SourceNode {
	var out []*SourceNode
	for _, id := range g.order {
		if s, ok := g.nodes[id].(*SourceNode); ok {
			out = append(out, s)
		}
	}
	return out
}
