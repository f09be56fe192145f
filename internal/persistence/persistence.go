// Package persistence implements the two on-disk logs the scheduler
// keeps across runs: cost history (for cost-priority dispatch on the
// next run) and a checkpoint of completed tests (for resuming after a
// coordinator crash). Formats and load/save ordering
// are ported directly from cmCTestMultiProcessHandler's
// ReadCostData/WriteCostData/WriteCheckpoint/MarkFinished/RemoveTest.
package persistence

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kitware/ctest-go/internal/testmodel"
)

// LoadCostData reads a cost_data file into an id→cost map. A missing
// file is not an error: it means no history exists yet, and the run
// proceeds with all costs at their zero default. Malformed lines are
// skipped rather than aborting the whole load, matching the original's
// tolerance for a hand-edited or partially-written history file.
func LoadCostData(path string) (map[testmodel.ID]float64, error) {
	costs := make(map[testmodel.ID]float64)

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return costs, nil
		}
		return nil, fmt.Errorf("persistence: opening cost data %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		cost, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			continue
		}
		costs[testmodel.ID(id)] = cost
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("persistence: reading cost data %q: %w", path, err)
	}
	return costs, nil
}

// AppendCostSample records one test's execution time, appending a single
// "<id> <cost>" line. Called once per completion from the runner pool's
// poll step, matching spec's "append on every completion" rule rather
// than the original's end-of-run full rewrite.
func AppendCostSample(path string, id testmodel.ID, cost float64) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("persistence: opening cost data %q: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d %s\n", id, strconv.FormatFloat(cost, 'g', -1, 64)); err != nil {
		return fmt.Errorf("persistence: appending cost data %q: %w", path, err)
	}
	return nil
}

// DeleteCostData removes the cost_data file, used both when a fresh
// history read starts a new record and when ParallelLevel == 1 skips the
// read but must still clear a stale file.
func DeleteCostData(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persistence: removing cost data %q: %w", path, err)
	}
	return nil
}

// LoadCheckpoint reads the set of test ids recorded as completed as of
// the last checkpoint write. A missing file means
// there is nothing to resume, matching CheckResume finding no prior
// checkpoint and proceeding with the full test list.
func LoadCheckpoint(path string) (map[testmodel.ID]struct{}, error) {
	ids := make(map[testmodel.ID]struct{})

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, fmt.Errorf("persistence: opening checkpoint %q: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		id, err := strconv.Atoi(line)
		if err != nil {
			continue
		}
		ids[testmodel.ID(id)] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("persistence: reading checkpoint %q: %w", path, err)
	}
	return ids, nil
}

// AppendCheckpoint records that id has completed, appending a single
// "<id>" line. Called once per completion, from the engine's completion
// hook.
func AppendCheckpoint(path string, id testmodel.ID) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("persistence: opening checkpoint %q: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d\n", id); err != nil {
		return fmt.Errorf("persistence: appending checkpoint %q: %w", path, err)
	}
	return nil
}

// RemoveCheckpoint deletes the checkpoint file. Called when a run
// finishes cleanly (MarkFinished's cleanup) and, at setup, to clear a
// stale checkpoint when failover is disabled. On the resume path the
// loaded checkpoint is left in place, so the resumed run extends it.
func RemoveCheckpoint(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("persistence: removing checkpoint %q: %w", path, err)
	}
	return nil
}
