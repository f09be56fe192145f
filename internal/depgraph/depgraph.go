// Package depgraph holds the mutable outstanding-dependency map (the
// spec's PendingMap) and its cycle check.
package depgraph

import (
	"errors"
	"fmt"

	"github.com/kitware/ctest-go/internal/testmodel"
)

// ErrCycle is wrapped into the error CheckCycles returns when the
// dependency graph is not a DAG.
var ErrCycle = errors.New("dependency cycle")

// Graph holds, per test id, the set of dependencies that have not yet
// finished. A test's key is present in the graph exactly while it is
// pending (declared, not started, not finished) — Erase removes it from
// both the key set and every other test's remaining-dependency set.
type Graph struct {
	pending map[testmodel.ID]map[testmodel.ID]struct{}
}

// New creates an empty dependency graph.
func New() *Graph {
	return &Graph{pending: make(map[testmodel.ID]map[testmodel.ID]struct{})}
}

// Add registers a test with its full dependency set. deps is copied.
func (g *Graph) Add(id testmodel.ID, deps map[testmodel.ID]struct{}) {
	cp := make(map[testmodel.ID]struct{}, len(deps))
	for d := range deps {
		cp[d] = struct{}{}
	}
	g.pending[id] = cp
}

// Has reports whether id is still pending.
func (g *Graph) Has(id testmodel.ID) bool {
	_, ok := g.pending[id]
	return ok
}

// Remaining returns a snapshot copy of id's outstanding dependencies.
// Callers must not rely on it staying accurate across an Erase.
func (g *Graph) Remaining(id testmodel.ID) map[testmodel.ID]struct{} {
	out := make(map[testmodel.ID]struct{}, len(g.pending[id]))
	for d := range g.pending[id] {
		out[d] = struct{}{}
	}
	return out
}

// Len returns the number of tests still pending.
func (g *Graph) Len() int {
	return len(g.pending)
}

// RemoveKey deletes id from the pending key set only, without touching
// any other test's outstanding-dependency set. The scheduler calls this
// the moment a test is dispatched, so it stops being offered as a
// dispatch candidate — its dependents must still wait for it to actually
// finish before Release below unblocks them.
func (g *Graph) RemoveKey(id testmodel.ID) {
	delete(g.pending, id)
}

// Release removes id from every remaining test's outstanding-dependency
// set, without touching the key set. Called once id's test actually
// finishes, unblocking any dependent whose last outstanding dependency
// was id. O(n) in the number of pending tests, which spec.md notes is
// acceptable at this scale.
func (g *Graph) Release(id testmodel.ID) {
	for _, deps := range g.pending {
		delete(deps, id)
	}
}

// Erase performs both RemoveKey and Release: full removal of id from the
// graph, key and dependent references alike. Used by the resume path,
// where a checkpoint-recovered test is already known finished and needs
// no staged two-step removal.
func (g *Graph) Erase(id testmodel.ID) {
	g.RemoveKey(id)
	g.Release(id)
}

// CheckCycles performs a depth-first traversal from every node,
// maintaining a proper ancestor stack (pushed on entry, popped on exit
// of each node) rather than the accumulate-only visited list the
// original C++ used. A cycle is reported only when an edge re-enters the
// *current* ancestor chain, not merely some previously visited node.
// nameOf resolves an id to a display name for the error message.
func (g *Graph) CheckCycles(nameOf func(testmodel.ID) string) error {
	visited := make(map[testmodel.ID]bool, len(g.pending))
	onStack := make(map[testmodel.ID]bool, len(g.pending))

	var visit func(testmodel.ID) (testmodel.ID, bool)
	visit = func(id testmodel.ID) (testmodel.ID, bool) {
		if onStack[id] {
			return id, true
		}
		if visited[id] {
			return 0, false
		}
		onStack[id] = true
		for dep := range g.pending[id] {
			if off, cyc := visit(dep); cyc {
				return off, true
			}
		}
		onStack[id] = false
		visited[id] = true
		return 0, false
	}

	for id := range g.pending {
		if visited[id] {
			continue
		}
		if off, cyc := visit(id); cyc {
			return fmt.Errorf("depgraph: a cycle exists in the test dependency graph for test %q: %w", nameOf(off), ErrCycle)
		}
	}
	return nil
}
