package engine

import "path/filepath"

// Config holds the run-wide settings the coordinator needs, modeled on
// the teacher's DefaultConfig() constructor pattern for kernel startup.
type Config struct {
	// ParallelLevel is the maximum sum of processor weights running
	// concurrently. Values below 1 are clamped to 1.
	ParallelLevel int
	// BinaryDir is the root the two fixed persistence paths are derived
	// from, mirroring ctest's -B binary directory.
	BinaryDir string
	// Failover enables checkpoint-based resume of a prior interrupted run.
	Failover bool
	// SpanLogPath, if non-empty, is where per-run/per-poll/per-test
	// OpenTelemetry spans are written as JSON Lines. Empty disables
	// tracing entirely.
	SpanLogPath string
}

// DefaultConfig returns the zero-value-safe defaults: ParallelLevel
// clamped to 1, no failover, no tracing.
func DefaultConfig() Config {
	return Config{ParallelLevel: 1}
}

// CostDataPath returns the fixed cost-history file location.
func (c Config) CostDataPath() string {
	return filepath.Join(c.BinaryDir, "Testing", "Temporary", "CTestCostData.txt")
}

// CheckpointPath returns the fixed checkpoint/resume file location.
func (c Config) CheckpointPath() string {
	return filepath.Join(c.BinaryDir, "Testing", "Temporary", "CTestCheckpoint.txt")
}

// clampedParallelLevel returns ParallelLevel clamped to a minimum of 1.
func (c Config) clampedParallelLevel() int {
	if c.ParallelLevel < 1 {
		return 1
	}
	return c.ParallelLevel
}
