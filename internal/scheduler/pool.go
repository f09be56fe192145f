package scheduler

import (
	"sort"

	"github.com/kitware/ctest-go/internal/ctestlog"
	"github.com/kitware/ctest-go/internal/testmodel"
)

// Poll checks every live handle once, finalizes any that have exited,
// and returns false only when the pool has nothing left to check.
// Individual CheckOutput calls may block briefly on their own I/O
// readiness, but Poll as a whole does not wait for a specific handle to
// finish before moving to the next — ported from
// cmCTestMultiProcessHandler::CheckOutput.
func (s *Scheduler) Poll() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.running) == 0 {
		return false
	}

	ids := make([]testmodel.ID, 0, len(s.running))
	for id := range s.running {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	log := ctestlog.For("scheduler")

	for _, id := range ids {
		rt := s.running[id]
		if rt.CheckOutput() {
			continue
		}

		s.completed++
		props := rt.Properties()
		passed := rt.EndTest(s.completed, s.total, true)

		if passed {
			s.passed = append(s.passed, props.Name)
		} else {
			s.failed = append(s.failed, props.Name)
		}

		s.graph.Release(id)
		s.finished[id] = true
		s.started[id] = false
		s.ledger.Release(processorsUsed(props, s.parallelLevel))
		delete(s.running, id)
		if span, ok := s.spans[id]; ok {
			span.End()
			delete(s.spans, id)
		}

		log.Debug("test completed", "test", props.Name, "id", id, "passed", passed,
			"completed", s.completed, "total", s.total)

		if s.onCompletion != nil {
			s.onCompletion(id, props, rt.Results(), passed)
		}
	}

	return true
}
