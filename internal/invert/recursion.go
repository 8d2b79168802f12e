package invert

import (
	"fmt"
	"sort"
	"strings"

	"github.com/calyx-lang/calyx/internal/ir"
)

// RecursionWarning flags a recursion group found in a set of function
// definitions.
//
// Self-loops are informational: self-recursive functions are exactly
// what the closure synthesizer exists for, but only the recognized
// `base ∨ recursive` shape inverts; anything else falls back. Groups of
// two or more functions are warnings: the dispatcher rejects mutual
// recursion unconditionally, so every inversion through such a group
// will fall back to exhaustive enumeration.
type RecursionWarning struct {
	Functions []string `json:"functions"` // Members of the recursion group, sorted
	Message   string   `json:"message"`   // Human-readable description
	Level     string   `json:"level"`     // "warning" (mutual) or "info" (self)
}

// AnalyzeRecursion performs static recursion analysis on function
// definitions ahead of any inversion.
//
// The algorithm:
//  1. Build the function → called-functions dependency graph from bodies
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC of size > 1 (mutual recursion) and each self-loop
//
// Definitions with no recursion return an empty list. This analysis is
// advisory only; the dispatcher independently enforces the same limits
// per call via its active set.
func AnalyzeRecursion(defs []*ir.FuncDef) []RecursionWarning {
	if len(defs) == 0 {
		return []RecursionWarning{}
	}

	graph := buildCallGraph(defs)
	sccs := tarjanSCC(graph)

	var warnings []RecursionWarning
	for _, scc := range sccs {
		switch {
		case len(scc) > 1:
			sorted := append([]string(nil), scc...)
			sort.Strings(sorted)
			warnings = append(warnings, RecursionWarning{
				Functions: sorted,
				Message: fmt.Sprintf("mutual recursion among %s: inversion will always fall back",
					strings.Join(sorted, ", ")),
				Level: "warning",
			})
		case hasSelfLoop(scc[0], graph):
			warnings = append(warnings, RecursionWarning{
				Functions: []string{scc[0]},
				Message:   fmt.Sprintf("%s is self-recursive; closure synthesis applies", scc[0]),
				Level:     "info",
			})
		}
	}
	return warnings
}

// callGraph maps function name → functions its body applies.
type callGraph map[string][]string

// buildCallGraph constructs the definition dependency graph. Only edges
// to functions that are themselves defined matter; calls to undefined
// names fail at dispatch time, not here.
func buildCallGraph(defs []*ir.FuncDef) callGraph {
	defined := make(map[string]bool, len(defs))
	for _, def := range defs {
		defined[def.Name] = true
	}

	graph := make(callGraph, len(defs))
	for _, def := range defs {
		called := ir.CalledFunctions(def.Body)
		edges := make([]string, 0, len(called))
		for name := range called {
			if defined[name] {
				edges = append(edges, name)
			}
		}
		sort.Strings(edges)
		graph[def.Name] = edges
	}
	return graph
}

// hasSelfLoop checks if a function applies itself.
func hasSelfLoop(name string, graph callGraph) bool {
	for _, target := range graph[name] {
		if target == name {
			return true
		}
	}
	return false
}

// tarjanSCC finds strongly connected components using Tarjan's
// algorithm. Returns SCCs in reverse topological order.
func tarjanSCC(graph callGraph) [][]string {
	nodes := make([]string, 0, len(graph))
	for n := range graph {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes) // Deterministic traversal order

	t := &tarjanState{
		graph:   graph,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for _, n := range nodes {
		if _, visited := t.index[n]; !visited {
			t.strongConnect(n)
		}
	}
	return t.sccs
}

type tarjanState struct {
	graph   callGraph
	counter int
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	sccs    [][]string
}

func (t *tarjanState) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, w := range t.graph[v] {
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] && t.index[w] < t.lowlink[v] {
			t.lowlink[v] = t.index[w]
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		t.sccs = append(t.sccs, scc)
	}
}
