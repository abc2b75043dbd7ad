// Package compiler wires the pipeline together: IR builder, optimizer,
// SQL planner, and diagram renderer, behind a single Compile entry point
// (spec §6's "provide a validated UserQuery; receive {sql, parameters,
// diagram}" contract).
package compiler

import (
	"marketscreener/internal/config"
	"marketscreener/internal/diagram"
	"marketscreener/internal/domain"
	"marketscreener/internal/ir"
	"marketscreener/internal/optimize"
	"marketscreener/internal/params"
	"marketscreener/internal/sqlplan"
)

// Options configures a single Compile call.
type Options struct {
	// Risky enables the optimizer's risky simplification pass (spec
	// §4.4.6). Defaults to false: the cross-table prune and duplicate
	// filter removal rewrites are safe only under stated conditions, so
	// callers opt in explicitly rather than the compiler enabling them
	// by default.
	Risky bool
}

// Result is the compiler's output: SQL text, its parameter map, and a
// flow-diagram rendering of the optimized graph. Parameters is a plain
// map for programmatic lookup by name; Ordered carries the same values
// in insertion order for callers (the HTTP handler, the CLI) that must
// serialize them without encoding/json's key-sorting reshuffling them.
type Result struct {
	SQL        string
	Parameters map[string]interface{}
	Ordered    params.OrderedValues
	Diagram    string
}

// Compiler holds an immutable config and compiles UserQuery values
// against it. It carries no other state — every Compile call builds its
// own graph and parameter table (spec §5).
type Compiler struct {
	cfg *config.Config
}

// New returns a Compiler bound to cfg. cfg is never mutated.
func New(cfg *config.Config) *Compiler {
	return &Compiler{cfg: cfg}
}

// Compile lowers uq to a graph, optimizes it, and emits SQL and a
// diagram. uq is checked with domain.UserQuery.Validate first and its
// error is returned as is; after that the compiler raises the domain
// error kinds in spec §7 for anything it cannot resolve against cfg.
func (c *Compiler) Compile(uq *domain.UserQuery, opts Options) (Result, error) {
	if err := uq.Validate(); err != nil {
		return Result{}, err
	}

	g, pt, err := ir.Build(c.cfg, uq)
	if err != nil {
		return Result{}, err
	}

	if err := optimize.Run(g, c.cfg, opts.Risky); err != nil {
		return Result{}, err
	}

	sql, err := sqlplan.Plan(g, c.cfg)
	if err != nil {
		return Result{}, err
	}

	return Result{
		SQL:        sql,
		Parameters: pt.Values(),
		Ordered:    params.NewOrderedValues(pt),
		Diagram:    diagram.Render(g),
	}, nil
}
