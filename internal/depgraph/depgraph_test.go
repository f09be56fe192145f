package depgraph

import (
	"errors"
	"testing"

	"github.com/kitware/ctest-go/internal/testmodel"
)

func names(n map[testmodel.ID]string) func(testmodel.ID) string {
	return func(id testmodel.ID) string {
		if s, ok := n[id]; ok {
			return s
		}
		return "?"
	}
}

func TestGraphAddRemainingErase(t *testing.T) {
	g := New()
	g.Add(1, map[testmodel.ID]struct{}{})
	g.Add(2, map[testmodel.ID]struct{}{1: {}})

	if !g.Has(2) {
		t.Fatal("expected 2 to be pending")
	}
	rem := g.Remaining(2)
	if _, ok := rem[1]; !ok {
		t.Fatalf("expected 2 to depend on 1, got %v", rem)
	}

	g.Erase(1)
	if g.Has(1) {
		t.Error("expected 1 to be erased")
	}
	rem = g.Remaining(2)
	if len(rem) != 0 {
		t.Errorf("expected 2's deps cleared after erasing 1, got %v", rem)
	}
}

func TestGraphRemainingIsCopy(t *testing.T) {
	g := New()
	g.Add(1, map[testmodel.ID]struct{}{2: {}})
	rem := g.Remaining(1)
	rem[99] = struct{}{}
	if _, ok := g.Remaining(1)[99]; ok {
		t.Error("mutating Remaining()'s result leaked into the graph")
	}
}

func TestGraphRemoveKeyLeavesDependentsBlocked(t *testing.T) {
	g := New()
	g.Add(1, nil)
	g.Add(2, map[testmodel.ID]struct{}{1: {}})

	g.RemoveKey(1) // 1 dispatched, not yet finished
	if g.Has(1) {
		t.Error("expected 1 to leave the pending key set once dispatched")
	}
	rem := g.Remaining(2)
	if _, ok := rem[1]; !ok {
		t.Error("RemoveKey must not release dependents; 2 should still list 1 as outstanding")
	}
}

func TestGraphReleaseUnblocksDependents(t *testing.T) {
	g := New()
	g.Add(1, nil)
	g.Add(2, map[testmodel.ID]struct{}{1: {}})

	g.RemoveKey(1)
	g.Release(1) // 1 has now actually finished
	rem := g.Remaining(2)
	if len(rem) != 0 {
		t.Errorf("expected 2's deps cleared after releasing 1, got %v", rem)
	}
}

func TestGraphLen(t *testing.T) {
	g := New()
	g.Add(1, nil)
	g.Add(2, nil)
	if g.Len() != 2 {
		t.Errorf("Len()=%d, want 2", g.Len())
	}
	g.Erase(1)
	if g.Len() != 1 {
		t.Errorf("Len()=%d, want 1", g.Len())
	}
}

// TestCheckCyclesDiamondIsNotACycle builds a diamond: 4 depends on {2,3};
// 2 depends on {1}; 3 depends on {1}; 1 depends on {}. Node 1 is reachable
// via two distinct branches. A flat accumulate-only visited list (the
// original implementation's approach) would see node 1 revisited and
// could misreport a cycle; the ancestor-stack discipline must not.
func TestCheckCyclesDiamondIsNotACycle(t *testing.T) {
	g := New()
	g.Add(1, nil)
	g.Add(2, map[testmodel.ID]struct{}{1: {}})
	g.Add(3, map[testmodel.ID]struct{}{1: {}})
	g.Add(4, map[testmodel.ID]struct{}{2: {}, 3: {}})

	nm := names(map[testmodel.ID]string{1: "one", 2: "two", 3: "three", 4: "four"})
	if err := g.CheckCycles(nm); err != nil {
		t.Fatalf("diamond graph falsely reported a cycle: %v", err)
	}
}

func TestCheckCyclesDetectsSimpleCycle(t *testing.T) {
	g := New()
	g.Add(1, map[testmodel.ID]struct{}{2: {}})
	g.Add(2, map[testmodel.ID]struct{}{1: {}})

	nm := names(map[testmodel.ID]string{1: "a", 2: "b"})
	err := g.CheckCycles(nm)
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle, got %v", err)
	}
}

func TestCheckCyclesDetectsSelfDependency(t *testing.T) {
	g := New()
	g.Add(1, map[testmodel.ID]struct{}{1: {}})

	err := g.CheckCycles(names(map[testmodel.ID]string{1: "solo"}))
	if !errors.Is(err, ErrCycle) {
		t.Errorf("expected ErrCycle for self-dependency, got %v", err)
	}
}

func TestCheckCyclesAcyclicChain(t *testing.T) {
	g := New()
	g.Add(1, nil)
	g.Add(2, map[testmodel.ID]struct{}{1: {}})
	g.Add(3, map[testmodel.ID]struct{}{2: {}})

	if err := g.CheckCycles(names(map[testmodel.ID]string{1: "a", 2: "b", 3: "c"})); err != nil {
		t.Errorf("unexpected cycle on linear chain: %v", err)
	}
}
