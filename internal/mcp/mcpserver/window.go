package mcpserver

import (
	"slices"
	"sync"
)

// defaultWindowSize is the capacity of each tool's rolling window.
const defaultWindowSize = 100

// rollingWindow tracks the most recent tool call latencies and outcomes in a
// ring buffer. All methods are safe for concurrent use.
type rollingWindow struct {
	mu      sync.Mutex
	samples []int64
	failed  []bool
	pos     int
	count   int
}

// newRollingWindow creates a window holding size samples. A size of 0 or
// less uses [defaultWindowSize].
func newRollingWindow(size int) *rollingWindow {
	if size <= 0 {
		size = defaultWindowSize
	}
	return &rollingWindow{
		samples: make([]int64, size),
		failed:  make([]bool, size),
	}
}

// Record adds one call, overwriting the oldest once the window is full.
func (w *rollingWindow) Record(latencyMs int64, isError bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.pos] = latencyMs
	w.failed[w.pos] = isError
	w.pos = (w.pos + 1) % len(w.samples)
	w.count++
}

func (w *rollingWindow) windowLen() int {
	return min(w.count, len(w.samples))
}

// Snapshot returns the median and 99th-percentile latency, the error rate
// within the window and the total number of calls ever recorded.
func (w *rollingWindow) Snapshot() (p50, p99 int64, errRate float64, count int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.windowLen()
	if n == 0 {
		return 0, 0, 0, 0
	}
	sorted := slices.Clone(w.samples[:n])
	slices.Sort(sorted)

	errs := 0
	for _, f := range w.failed[:n] {
		if f {
			errs++
		}
	}
	return sorted[n/2], sorted[int(float64(n-1)*0.99)], float64(errs) / float64(n), w.count
}
