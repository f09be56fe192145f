// Package engine wires the test model, dependency graph, cost index,
// scheduler, and persistence together into the coordinator's main loop:
// setup, then alternating dispatch/poll until every test has finished,
// then a final drain and checkpoint cleanup. Ported from
// cmCTestMultiProcessHandler::RunTests.
package engine

import (
	"context"
	"fmt"

	"github.com/kitware/ctest-go/internal/costindex"
	"github.com/kitware/ctest-go/internal/ctestlog"
	"github.com/kitware/ctest-go/internal/depgraph"
	"github.com/kitware/ctest-go/internal/persistence"
	"github.com/kitware/ctest-go/internal/resources"
	"github.com/kitware/ctest-go/internal/runner"
	"github.com/kitware/ctest-go/internal/scheduler"
	"github.com/kitware/ctest-go/internal/testmodel"
	"github.com/kitware/ctest-go/internal/tracing"
)

// Engine owns every subsystem for one run and drives the main loop.
type Engine struct {
	cfg        Config
	store      *testmodel.Store
	graph      *depgraph.Graph
	costs      *costindex.Index
	ledger     *resources.ProcessorLedger
	accountant *resources.RunAccountant
	newRunTest scheduler.NewRunTestFunc

	sched *scheduler.Scheduler

	resumeRemoved int
}

// New creates an Engine. newRunTest constructs the RunTest handle for
// each dispatched test; production callers pass runner.NewExecRunTest.
func New(cfg Config, newRunTest scheduler.NewRunTestFunc) *Engine {
	return &Engine{
		cfg:        cfg,
		store:      testmodel.NewStore(),
		graph:      depgraph.New(),
		costs:      costindex.New(),
		ledger:     resources.NewProcessorLedger(cfg.clampedParallelLevel()),
		accountant: resources.NewRunAccountant(),
		newRunTest: newRunTest,
	}
}

// SetTests loads the full property set. Depends on each Properties value
// being fully populated (including Depends) before this call; the
// dependency graph is built directly from it.
func (e *Engine) SetTests(props map[testmodel.ID]testmodel.Properties) {
	for id, p := range props {
		e.store.Add(id, p)
	}
	for id, p := range props {
		e.graph.Add(id, p.Depends)
	}
}

// MaxID returns the highest test id in the run, published to the
// collaborator before dispatch begins (used for display column width).
func (e *Engine) MaxID() testmodel.ID {
	return e.store.MaxID()
}

// nameOf resolves an id to its test name for cycle-error messages,
// falling back to a synthetic label if the id is somehow unknown.
func (e *Engine) nameOf(id testmodel.ID) string {
	if p, err := e.store.Get(id); err == nil {
		return p.Name
	}
	return fmt.Sprintf("test-%d", id)
}

// removeTest fully erases id: from the dependency graph (both its own
// key and every dependent's reference to it), and from the property
// store, and records it as a resume-removed completion. Used only by the
// checkpoint resume path in Setup, for tests a prior run already
// finished.
func (e *Engine) removeTest(id testmodel.ID) {
	e.graph.Erase(id)
	e.store.Remove(id)
	e.resumeRemoved++
}

// Setup performs the checkpoint resume, cost-history hydration, cost
// index population, and cycle check, in that fixed order: resume removal
// must happen before the cost index is built (removed tests must never
// be bucketed), and cost history must be loaded before bucketing so
// hydrated costs land in the right bucket.
func (e *Engine) Setup() error {
	log := ctestlog.For("engine")
	checkpointPath := e.cfg.CheckpointPath()

	if e.cfg.Failover {
		ids, err := persistence.LoadCheckpoint(checkpointPath)
		if err != nil {
			return err
		}
		for id := range ids {
			e.removeTest(id)
		}
		log.Info("resumed from checkpoint", "removed", len(ids))
		// Left in place: this run's completions extend it (onCompletion),
		// and it is deleted only on a clean finish (see Run), so a second
		// interruption still records everything resumed so far.
	} else if err := persistence.RemoveCheckpoint(checkpointPath); err != nil {
		return err
	}

	parallelLevel := e.cfg.clampedParallelLevel()
	costDataPath := e.cfg.CostDataPath()
	if parallelLevel > 1 {
		history, err := persistence.LoadCostData(costDataPath)
		if err != nil {
			return err
		}
		for id, cost := range history {
			props, err := e.store.Get(id)
			if err != nil {
				continue // unknown id: ignored per spec's persistence contract
			}
			if props.Cost == 0 {
				if err := e.store.SetCost(id, cost); err != nil {
					return err
				}
			}
		}
	}
	if err := persistence.DeleteCostData(costDataPath); err != nil {
		return err
	}

	for _, id := range e.store.IDs() {
		props, err := e.store.Get(id)
		if err != nil {
			continue
		}
		e.costs.Insert(id, props.Cost)
	}

	if err := e.graph.CheckCycles(e.nameOf); err != nil {
		return err
	}

	e.sched = scheduler.New(e.store, e.graph, e.costs, e.ledger, parallelLevel, e.store.Len(), e.newRunTest, e.onCompletion)
	return nil
}

// onCompletion is the scheduler's completion hook: it persists a cost
// sample and a checkpoint entry, and records the duration for the
// end-of-run timing summary.
func (e *Engine) onCompletion(id testmodel.ID, props *testmodel.Properties, res runner.Results, passed bool) {
	log := ctestlog.For("engine")

	seconds := res.Duration.Seconds()
	if err := persistence.AppendCostSample(e.cfg.CostDataPath(), id, seconds); err != nil {
		log.Error("failed to append cost sample", "test", props.Name, "error", err)
	}
	if err := persistence.AppendCheckpoint(e.cfg.CheckpointPath(), id); err != nil {
		log.Error("failed to append checkpoint", "test", props.Name, "error", err)
	}
	e.accountant.Record(id, props.Name, res.Duration, passed)
}

// Run executes Setup followed by the dispatch/poll main loop, then
// drains any still-live handles and deletes the checkpoint on a clean
// finish. It returns the passed and failed test names in completion
// order.
func (e *Engine) Run(ctx context.Context) (passed, failed []string, err error) {
	if err := e.Setup(); err != nil {
		return nil, nil, err
	}

	shutdown, err := tracing.Setup(ctx, e.cfg.SpanLogPath, "ctest-go")
	if err != nil {
		return nil, nil, err
	}
	defer shutdown(ctx)

	ctx, runSpan := tracing.StartRun(ctx, e.store.Len())
	defer runSpan.End()

	e.sched.StartNext()
	for e.graph.Len() > 0 {
		_, pollSpan := tracing.StartPollCycle(ctx, e.sched.RunningCount(), e.graph.Len())
		e.sched.Poll()
		pollSpan.End()
		e.sched.StartNext()
	}
	for e.sched.Poll() {
	}

	if err := persistence.RemoveCheckpoint(e.cfg.CheckpointPath()); err != nil {
		return nil, nil, err
	}

	return e.sched.Passed(), e.sched.Failed(), nil
}

// Completed returns the total number of tests accounted for: those the
// scheduler ran to a pass/fail verdict plus any removed on resume.
func (e *Engine) Completed() int {
	if e.sched == nil {
		return e.resumeRemoved
	}
	return e.sched.Completed() + e.resumeRemoved
}

// Summary returns the end-of-run timing summary (a supplemented feature
// beyond spec.md's original scope).
func (e *Engine) Summary() resources.Summary {
	return e.accountant.Summarize()
}

// PrintTestList prints each test's index and name, one per line, using a
// column width derived the way the original's getNumWidth display did:
// the decimal digit count of the highest id plus one for punctuation.
// It never spawns a child process.
func (e *Engine) PrintTestList(w interface{ Write([]byte) (int, error) }) error {
	width := numWidth(int(e.store.MaxID()))
	ids := e.store.IDs()
	sortIDs(ids)
	for _, id := range ids {
		props, err := e.store.Get(id)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("  Test %*d: %s\n", width, id, props.Name)
		if _, err := w.Write([]byte(line)); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte(fmt.Sprintf("\nTotal Tests: %d\n", e.store.Len())))
	return err
}
