package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/kitware/ctest-go/internal/ctestlog"
	"github.com/kitware/ctest-go/internal/engine"
	"github.com/kitware/ctest-go/internal/fixture"
	"github.com/kitware/ctest-go/internal/runner"
	"github.com/kitware/ctest-go/internal/testmodel"
)

func main() {
	testsFile := flag.String("tests", "", "path to a JSON test-set fixture (required)")
	parallel := flag.Int("parallel", 1, "maximum sum of processor weights running concurrently")
	binaryDir := flag.String("binary-dir", ".", "directory holding Testing/Temporary cost data and checkpoint files")
	failover := flag.Bool("failover", false, "resume a previously interrupted run from its checkpoint")
	spanLog := flag.String("span-log", "", "path to write OpenTelemetry spans as JSON Lines (empty disables tracing)")
	showOnly := flag.Bool("N", false, "list the tests that would run, without running them")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	ctestlog.Init(*logLevel, "")
	log.SetFlags(log.Ltime | log.Lmicroseconds)

	if *testsFile == "" {
		log.Fatal("ctestsched: -tests is required")
	}

	props, err := fixture.Load(*testsFile)
	if err != nil {
		log.Fatalf("ctestsched: %v", err)
	}

	cfg := engine.DefaultConfig()
	cfg.ParallelLevel = *parallel
	cfg.BinaryDir = *binaryDir
	cfg.Failover = *failover
	cfg.SpanLogPath = *spanLog

	eng := engine.New(cfg, func(id testmodel.ID, p *testmodel.Properties) runner.RunTest {
		return runner.NewExecRunTest(id, p)
	})
	eng.SetTests(props)

	if *showOnly {
		if err := eng.PrintTestList(os.Stdout); err != nil {
			log.Fatalf("ctestsched: %v", err)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("ctestsched: received %s, cancelling run", sig)
		cancel()
	}()

	passed, failed, err := eng.Run(ctx)
	if err != nil {
		log.Fatalf("ctestsched: run failed: %v", err)
	}

	summary := eng.Summary()
	log.Printf("ctestsched: %d passed, %d failed, total time %s, slowest %q (%s)",
		len(passed), len(failed), summary.Total, summary.Longest.Name, summary.Longest.Duration)

	if len(failed) > 0 {
		os.Exit(1)
	}
}
