// Package ir lowers a domain.UserQuery into a graph.Graph plus the
// parameter table its constants were allocated into (spec §4.2). The
// builder never mutates the query it is given; every graph node it
// creates is fresh.
package ir

import (
	"marketscreener/internal/config"
	"marketscreener/internal/domain"
	"marketscreener/internal/graph"
	"marketscreener/internal/joininfer"
	"marketscreener/internal/params"
)

// Builder accumulates a Graph and Table for a single Build call. It is
// not safe for concurrent or repeated use — construct one per query.
type Builder struct {
	cfg           *config.Config
	g             *graph.Graph
	params        *params.Table
	sourceByTable map[string]string
}

// NewBuilder returns a Builder that resolves metrics against cfg.
func NewBuilder(cfg *config.Config) *Builder {
	return &Builder{
		cfg:           cfg,
		g:             graph.New(),
		params:        params.New(),
		sourceByTable: make(map[string]string),
	}
}

// Build lowers uq into a graph and parameter table, in the fixed order
// spec §4.2 requires: filter, then each group_by, then sort_by, then a
// terminal limit node, then join inference, then the required-columns
// pass.
func Build(cfg *config.Config, uq *domain.UserQuery) (*graph.Graph, *params.Table, error) {
	b := NewBuilder(cfg)

	if uq.Filter != nil {
		if _, err := b.lowerFilterNode(uq.Filter, nil); err != nil {
			return nil, nil, err
		}
	}

	for _, gc := range uq.GroupBy {
		if err := b.lowerGroupCriterion(gc); err != nil {
			return nil, nil, err
		}
	}

	var topSortID string
	if len(uq.SortBy) > 0 {
		id, err := b.lowerSortBy(uq.SortBy)
		if err != nil {
			return nil, nil, err
		}
		topSortID = id
	}

	if uq.Limit != nil {
		var inputs []string
		if topSortID != "" {
			inputs = []string{topSortID}
		}
		id := b.g.NextID(graph.KindLimit)
		b.g.AddNode(graph.NewLimit(id, inputs, *uq.Limit, 0, false, ""))
	}

	if err := joininfer.Infer(b.g, b.cfg); err != nil {
		return nil, nil, err
	}

	RequiredColumns(b.g, b.cfg)

	return b.g, b.params, nil
}

// findOrCreateSource returns the source node id for table, creating one
// the first time the table is referenced.
func (b *Builder) findOrCreateSource(table string) string {
	if id, ok := b.sourceByTable[table]; ok {
		return id
	}
	var timeColumn string
	if t, ok := b.cfg.Table(table); ok {
		timeColumn = t.TimeColumn
	}
	id := b.g.NextID(graph.KindSource)
	b.g.AddNode(graph.NewSource(id, table, timeColumn))
	b.sourceByTable[table] = id
	return id
}
