// Package optimize implements the six semantics-preserving graph rewrite
// passes the compiler runs between join inference and SQL emission
// (spec §4.4): projection dedup, parameter inlining, filter merging,
// composite-filter simplification, projection-expression dedup, and,
// when enabled, risky cross-table/duplicate-filter simplifications.
package optimize

import (
	"sort"
	"strings"

	"marketscreener/internal/config"
	"marketscreener/internal/graph"
	"marketscreener/internal/ir"
)

// Run applies every pass exactly once, in the fixed order the spec
// requires, then re-runs the required-columns pass so that removals
// earlier in the pipeline never strand a time-based aggregate without
// its time column. It needs nothing from the parameter table: every
// parameter's placeholder text is already resolved on its ExpressionNode
// by the time optimization runs.
func Run(g *graph.Graph, cfg *config.Config, risky bool) error {
	dedupProjections(g)
	inlineParameters(g)
	mergeFilters(g)
	removeUselessComposites(g)
	dedupProjectionExpressions(g)
	if risky {
		crossTablePrune(g, cfg)
		removeDuplicateFilters(g)
	}
	ir.RequiredColumns(g, cfg)
	return nil
}

func sortedJoin(ids []string) string {
	cp := append([]string(nil), ids...)
	sort.Strings(cp)
	return strings.Join(cp, ",")
}

// depsSignature summarizes id's dependents by kind and normalized input
// set, used to compare whether two candidate-duplicate nodes are
// consumed identically downstream.
func depsSignature(g *graph.Graph, id string) []string {
	var sigs []string
	for _, dep := range g.FindDependents(id) {
		ins := append([]string(nil), dep.Inputs()...)
		for i, in := range ins {
			if in == id {
				ins[i] = "SELF"
			}
		}
		sort.Strings(ins)
		sigs = append(sigs, string(dep.Kind())+":"+strings.Join(ins, ","))
	}
	sort.Strings(sigs)
	return sigs
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
