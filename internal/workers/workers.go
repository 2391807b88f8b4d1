package workers

import (
	"os"
	"runtime"
	"strconv"
)

// OverrideEnv is the environment variable that pins the intake worker count.
const OverrideEnv = "INTAKE_WORKERS"

// Count returns the number of workers for a given task type.
// It respects container CPU limits via GOMAXPROCS.
//
// The multiplier adjusts for task characteristics:
//   - 1.0 for CPU-bound tasks
//   - 2.0 for I/O-bound tasks
//   - 1.5 for mixed tasks (decode, resize, move, insert)
//
// The limit caps the result; 0 means no limit. INTAKE_WORKERS overrides the
// calculation but is still capped by limit.
func Count(multiplier float64, limit int) int {
	return countWith(os.Getenv(OverrideEnv), runtime.GOMAXPROCS(0), multiplier, limit)
}

func countWith(override string, available int, multiplier float64, limit int) int {
	if override != "" {
		if count, err := strconv.Atoi(override); err == nil && count > 0 {
			return capAt(count, limit)
		}
	}

	workers := int(float64(available) * multiplier)
	if workers < 1 {
		workers = 1
	}
	return capAt(workers, limit)
}

func capAt(n, limit int) int {
	if limit > 0 && n > limit {
		return limit
	}
	return n
}

// ForCPU returns worker count for CPU-bound tasks (1 per CPU).
func ForCPU(limit int) int {
	return Count(1.0, limit)
}

// ForIO returns worker count for I/O-bound tasks (2 per CPU).
func ForIO(limit int) int {
	return Count(2.0, limit)
}

// ForMixed returns worker count for mixed tasks (1.5 per CPU).
func ForMixed(limit int) int {
	return Count(1.5, limit)
}
