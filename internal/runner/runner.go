// Package runner provides the default os/exec-backed implementation of
// the RunTest handle the scheduler dispatches and polls.
package runner

import (
	"context"
	"errors"
	"os/exec"
	"time"

	"github.com/kitware/ctest-go/internal/ctestlog"
	"github.com/kitware/ctest-go/internal/testmodel"
)

// Results captures what a finished test produced.
type Results struct {
	ExitCode int
	Output   string
	Passed   bool
	Started  time.Time
	Duration time.Duration
}

// RunTest is the capability set the scheduler needs from a live test
// process: start it, poll its output without blocking, and finalize it
// once the coordinator decides it's done (either because the child
// exited or because the run is being torn down early).
type RunTest interface {
	Start(total int) bool
	CheckOutput() bool
	EndTest(completed, total int, finished bool) bool
	Index() testmodel.ID
	Properties() *testmodel.Properties
	Results() Results
}

// ExecRunTest runs a test as a child process via os/exec, with its
// working directory set directly on the command (never on the
// coordinator's process-wide cwd) and its combined output captured
// through a non-blocking outputPipe.
type ExecRunTest struct {
	id    testmodel.ID
	props *testmodel.Properties

	cmd    *exec.Cmd
	cancel context.CancelFunc
	pipe   *outputPipe
	waitCh chan error

	started time.Time
	results Results
}

// NewExecRunTest creates a runner for the given test. CommandArgv[0] is
// the command, CommandArgv[1:] its arguments.
func NewExecRunTest(id testmodel.ID, props *testmodel.Properties) *ExecRunTest {
	return &ExecRunTest{id: id, props: props}
}

// Start launches the child process. total is the number of tests in this
// run, used only for the log line. It returns false if the process could
// not be spawned at all (e.g. command not found), in which case
// Results() already reflects a failure.
func (r *ExecRunTest) Start(total int) bool {
	log := ctestlog.For("runner")
	if len(r.props.CommandArgv) == 0 {
		log.Error("test has no command", "test", r.props.Name)
		r.results = Results{Passed: false, Output: "no command configured"}
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.pipe = newOutputPipe()

	cmd := exec.CommandContext(ctx, r.props.CommandArgv[0], r.props.CommandArgv[1:]...)
	cmd.Dir = r.props.Directory
	cmd.Stdout = r.pipe
	cmd.Stderr = r.pipe
	r.cmd = cmd
	r.started = time.Now()

	if err := cmd.Start(); err != nil {
		cancel()
		log.Error("failed to start test", "test", r.props.Name, "error", err)
		r.results = Results{Passed: false, Output: err.Error(), Started: r.started}
		return false
	}

	r.waitCh = make(chan error, 1)
	go func() {
		err := cmd.Wait()
		r.pipe.close()
		r.waitCh <- err
	}()

	log.Debug("started test", "test", r.props.Name, "id", r.id, "total", total)
	return true
}

// CheckOutput drains whatever output has arrived since the last call and
// reports whether the process may still produce more (true) or has
// closed its output stream (false). It never blocks.
func (r *ExecRunTest) CheckOutput() bool {
	r.results.Output = r.pipe.Drain()
	return r.pipe.Open()
}

// EndTest finalizes the test's result. If finished is false the caller is
// tearing the run down early (e.g. a fatal scheduling error) and the
// child is killed rather than waited on. It returns whether the test
// passed.
func (r *ExecRunTest) EndTest(completed, total int, finished bool) bool {
	log := ctestlog.For("runner")
	r.results.Output = r.pipe.Drain()

	if !finished {
		if r.cancel != nil {
			r.cancel()
		}
		if r.waitCh != nil {
			<-r.waitCh
		}
		r.results.Passed = false
		r.results.Duration = time.Since(r.started)
		log.Warn("test aborted before completion", "test", r.props.Name, "completed", completed, "total", total)
		return false
	}

	err := <-r.waitCh
	r.results.Duration = time.Since(r.started)
	r.results.Started = r.started

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		r.results.ExitCode = 0
		r.results.Passed = true
	case errors.As(err, &exitErr):
		r.results.ExitCode = exitErr.ExitCode()
		r.results.Passed = false
	default:
		r.results.ExitCode = -1
		r.results.Passed = false
	}

	log.Info("test finished", "test", r.props.Name, "passed", r.results.Passed,
		"completed", completed, "total", total, "duration", r.results.Duration)
	return r.results.Passed
}

// Index returns the test's id.
func (r *ExecRunTest) Index() testmodel.ID { return r.id }

// Properties returns the test's immutable properties.
func (r *ExecRunTest) Properties() *testmodel.Properties { return r.props }

// Results returns the test's outcome so far. Safe to call before the test
// finishes; Output will reflect only what has been drained.
func (r *ExecRunTest) Results() Results { return r.results }

var _ RunTest = (*ExecRunTest)(nil)
