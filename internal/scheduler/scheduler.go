// Package scheduler implements the dependency- and cost-aware dispatch
// loop: StartNext walks the cost-priority index highest-cost-first,
// TryStart recursively launches whatever unfinished dependency blocks a
// candidate, and StartProcess spawns the actual RunTest handle. Ported
// from cmCTestMultiProcessHandler::StartNextTests/StartTest/
// StartTestProcess/GetProcessorsUsed, restructured around the teacher's
// mutex-guarded, constructor-injected Scheduler shape.
package scheduler

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/trace"

	"github.com/kitware/ctest-go/internal/costindex"
	"github.com/kitware/ctest-go/internal/ctestlog"
	"github.com/kitware/ctest-go/internal/depgraph"
	"github.com/kitware/ctest-go/internal/resources"
	"github.com/kitware/ctest-go/internal/runner"
	"github.com/kitware/ctest-go/internal/testmodel"
	"github.com/kitware/ctest-go/internal/tracing"
)

// NewRunTestFunc constructs the RunTest handle for a test about to be
// dispatched. Production code passes runner.NewExecRunTest; tests inject
// a fake to control timing and outcome deterministically.
type NewRunTestFunc func(id testmodel.ID, props *testmodel.Properties) runner.RunTest

// Scheduler owns the dispatch state for a single run: which tests have
// started or finished, which handles are live, and the running tally of
// passed/failed names in completion order.
type Scheduler struct {
	mu sync.Mutex

	store  *testmodel.Store
	graph  *depgraph.Graph
	costs  *costindex.Index
	ledger *resources.ProcessorLedger

	parallelLevel int
	total         int
	newRunTest    NewRunTestFunc

	started  map[testmodel.ID]bool
	finished map[testmodel.ID]bool
	running  map[testmodel.ID]runner.RunTest
	spans    map[testmodel.ID]trace.Span

	completed int
	passed    []string
	failed    []string

	// onCompletion, if set, is invoked once per finished test (from
	// StartProcess on an immediate start failure, or from Poll on a
	// child process exit) so the caller can persist cost/checkpoint
	// records and accumulate timing stats without the scheduler itself
	// depending on the filesystem or the accounting package.
	onCompletion func(id testmodel.ID, props *testmodel.Properties, res runner.Results, passed bool)
}

// New creates a Scheduler. total is the number of tests in the run
// (spec.md's print_test_list / RunTest.start(total) argument).
// onCompletion may be nil.
func New(store *testmodel.Store, graph *depgraph.Graph, costs *costindex.Index, ledger *resources.ProcessorLedger, parallelLevel, total int, newRunTest NewRunTestFunc, onCompletion func(testmodel.ID, *testmodel.Properties, runner.Results, bool)) *Scheduler {
	if parallelLevel < 1 {
		parallelLevel = 1
	}
	return &Scheduler{
		store:         store,
		graph:         graph,
		costs:         costs,
		ledger:        ledger,
		parallelLevel: parallelLevel,
		total:         total,
		newRunTest:    newRunTest,
		started:       make(map[testmodel.ID]bool),
		finished:      make(map[testmodel.ID]bool),
		running:       make(map[testmodel.ID]runner.RunTest),
		spans:         make(map[testmodel.ID]trace.Span),
		onCompletion:  onCompletion,
	}
}

// processorsUsed caps a test's requested processor weight to the run's
// parallel level, and additionally forces the full parallel level when
// the test demands more than that (an oversized request can only ever
// run alone) or when it is marked run_serial (which must reserve the
// entire budget so nothing else overlaps it). Both conditions collapse
// to one expression since Go's int is already fixed-width — no separate
// cast step is needed the way the original's size_t/int mismatch required.
func processorsUsed(props *testmodel.Properties, parallelLevel int) int {
	if props.RunSerial || props.Processors > parallelLevel {
		return parallelLevel
	}
	return props.Processors
}

// StartNext dispatches as many tests as the current processor budget
// allows. It walks cost buckets highest-cost-first; the first candidate
// that cannot fit in the remaining budget aborts the entire pass, which
// preserves the high-cost-first bias across poll cycles rather than
// backfilling with cheaper tests.
//
// slots is a local budget seeded from the ledger's real availability, but
// once the pass starts it is bookkept against the outer candidate's own
// p, not against whatever tryStart's recursion actually dispatched — a
// candidate whose try_start launches an unfinished dependency instead of
// itself still consumes p slots of the outer candidate. This mirrors
// spec.md §4.D literally; the ledger itself remains the sole authority on
// whether a given process is actually allowed to start (see startProcess),
// so the two can diverge without ever letting real usage exceed capacity.
func (s *Scheduler) StartNext() {
	s.mu.Lock()
	defer s.mu.Unlock()

	slots := s.ledger.Available()
	if slots == 0 {
		return
	}

	for _, cost := range s.costs.DescendingCosts() {
		ids := s.costs.Bucket(cost)
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		for _, id := range ids {
			if s.started[id] || s.finished[id] {
				continue
			}
			props, err := s.store.Get(id)
			if err != nil {
				continue
			}
			p := processorsUsed(props, s.parallelLevel)
			if p > slots {
				return
			}
			if s.tryStart(id) {
				slots -= p
				if slots == 0 {
					return
				}
			}
		}
	}
}

// tryStart is the dependency-driven launch: it walks id's outstanding
// dependencies (in ascending id order, for deterministic test behavior),
// skipping ones already running, counting ones already finished as
// satisfied, and recursing into the first one that is neither — the
// recursion's own result is returned immediately without continuing the
// walk, since launching that dependency is the only useful action to
// take on this call. Must be called with s.mu held.
func (s *Scheduler) tryStart(id testmodel.ID) bool {
	remaining := s.graph.Remaining(id)
	unmet := len(remaining)

	deps := make([]testmodel.ID, 0, len(remaining))
	for d := range remaining {
		deps = append(deps, d)
	}
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })

	for _, d := range deps {
		switch {
		case s.started[d]:
			// already running; not yet finished, but nothing to launch
		case s.finished[d]:
			unmet--
		default:
			return s.tryStart(d)
		}
	}

	if unmet == 0 {
		s.startProcess(id)
		return true
	}
	return false
}

// startProcess dispatches id: it leaves the dispatch candidate pool,
// reserves its processor budget, and spawns the RunTest handle. A failed
// spawn is treated as an immediate failing completion, matching
// spec.md's StartFailed error taxonomy entry. Must be called with s.mu
// held.
func (s *Scheduler) startProcess(id testmodel.ID) {
	log := ctestlog.For("scheduler")

	props, err := s.store.Get(id)
	if err != nil {
		log.Error("startProcess on unknown test", "id", id, "error", err)
		return
	}

	s.started[id] = true
	s.graph.RemoveKey(id)
	s.costs.Remove(id, props.Cost)

	p := processorsUsed(props, s.parallelLevel)
	if err := s.ledger.Reserve(p); err != nil {
		// The ledger is the sole real-resource authority; StartNext's own
		// slots bookkeeping is only an approximation once tryStart
		// recurses into a dependency with a different processor weight
		// (see StartNext), so it can land here even though the outer
		// candidate looked like it would fit. Treat exactly like a failed
		// rt.Start(): no handle is ever created, nothing was reserved.
		log.Warn("processor budget exceeded at dispatch, treating as a failed start", "test", props.Name, "error", err)
		s.completed++
		s.finished[id] = true
		s.started[id] = false
		s.graph.Release(id)
		s.failed = append(s.failed, props.Name)
		if s.onCompletion != nil {
			s.onCompletion(id, props, runner.Results{}, false)
		}
		return
	}

	_, span := tracing.StartTestDispatch(context.Background(), int(id), props.Name, p)

	rt := s.newRunTest(id, props)
	if rt.Start(s.total) {
		s.running[id] = rt
		s.spans[id] = span
		log.Debug("dispatched test", "test", props.Name, "id", id, "processors", p)
		return
	}
	span.End()

	s.completed++
	s.finished[id] = true
	s.started[id] = false
	s.ledger.Release(p)
	s.graph.Release(id)
	s.failed = append(s.failed, props.Name)
	log.Warn("test failed to start", "test", props.Name, "id", id)

	if s.onCompletion != nil {
		s.onCompletion(id, props, rt.Results(), false)
	}
}

// Completed returns the number of tests finished so far (pass or fail).
func (s *Scheduler) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Passed returns the names of tests that have passed, in completion order.
func (s *Scheduler) Passed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.passed))
	copy(out, s.passed)
	return out
}

// Failed returns the names of tests that have failed, in completion order.
func (s *Scheduler) Failed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.failed))
	copy(out, s.failed)
	return out
}

// RunningCount reports the current sum of processor weights in use.
func (s *Scheduler) RunningCount() int {
	return s.ledger.Used()
}

// Pending reports how many tests are still awaiting dispatch.
func (s *Scheduler) Pending() int {
	return s.graph.Len()
}
