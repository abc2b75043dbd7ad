// Package joininfer implements the single multi-way join inference pass
// (spec §4.3): once a query's filters, projections, and sorts have been
// lowered against every table they reference, this pass ties those
// tables together with one INNER join keyed on whatever primary key they
// share.
package joininfer

import (
	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
)

// Infer is a no-op when the graph references at most one source table.
// Otherwise it builds pairwise equality conditions between every table
// pair over a shared primary key, emits one JoinNode spanning all
// sources, rewires every existing reference to a source node onto the
// join, and leaves the sources themselves in the graph as the join's own
// inputs (non-terminal).
func Infer(g *graph.Graph, cfg *config.Config) error {
	sources := g.Sources()
	if len(sources) <= 1 {
		return nil
	}

	var conditions []graph.JoinCondition
	for i := 0; i < len(sources); i++ {
		for j := i + 1; j < len(sources); j++ {
			key, ok := commonPrimaryKey(cfg, sources[i].Table, sources[j].Table)
			if !ok {
				return domain.ErrNoCommonPrimaryKey(sources[i].Table, sources[j].Table)
			}
			conditions = append(conditions, graph.JoinCondition{
				LeftSource:  sources[i].ID(),
				LeftKey:     key,
				RightSource: sources[j].ID(),
				RightKey:    key,
				Op:          "=",
			})
		}
	}

	inputs := make([]string, len(sources))
	for i, s := range sources {
		inputs[i] = s.ID()
	}

	joinID := g.NextID(graph.KindJoin)
	joinNode := graph.NewJoin(joinID, inputs, graph.JoinInner, conditions)
	g.AddNode(joinNode)

	for _, s := range sources {
		g.ReplaceNodeID(s.ID(), joinID, "", joinID)
		s.SetTerminal(false)
	}

	return nil
}

func commonPrimaryKey(cfg *config.Config, tableA, tableB string) (string, bool) {
	a, ok := cfg.Table(tableA)
	if !ok {
		return "", false
	}
	b, ok := cfg.Table(tableB)
	if !ok {
		return "", false
	}
	bKeys := make(map[string]bool, len(b.PrimaryKeys))
	for _, k := range b.PrimaryKeys {
		bKeys[k] = true
	}
	for _, k := range a.PrimaryKeys {
		if bKeys[k] {
			return k, true
		}
	}
	return "", false
}
