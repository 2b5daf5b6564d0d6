// Package stats accumulates request outcomes from all workers into a
// single shared SimulationStats under one mutex, and serves point-in-time
// snapshots while outcomes keep arriving.
package stats

import (
	"sort"
	"sync"
	"time"
)

// Outcome is the recorded result of one executed request. Transport
// failures arrive already normalized to the 500 sentinel by the executor.
type Outcome struct {
	Endpoint string
	Method   string
	Status   int
	Latency  time.Duration
	Err      string
}

// Key is the endpoint-hit histogram key, "METHOD /path".
func (o Outcome) Key() string {
	return o.Method + " " + o.Endpoint
}

// Success reports whether the outcome counts as successful. Status < 400
// is the sole criterion.
func (o Outcome) Success() bool {
	return o.Status < 400
}

// Observer receives every recorded outcome, already serialized by the
// Aggregator. Used to feed the prometheus collectors.
type Observer interface {
	Observe(Outcome)
}

// Aggregator owns the shared counters. All mutation goes through Record
// under a single lock so no increment can be lost.
type Aggregator struct {
	observer Observer

	mu          sync.Mutex
	startTime   time.Time
	total       uint64
	success     uint64
	failed      uint64
	statusCodes map[int]uint64
	endpoints   map[string]uint64
	errors      []string
	errorCount  uint64
	latency     *latencyHistogram
}

// maxStoredErrors bounds the retained error texts; the count keeps growing.
const maxStoredErrors = 1000

func NewAggregator(start time.Time, observer Observer) *Aggregator {
	return &Aggregator{
		observer:    observer,
		startTime:   start,
		statusCodes: make(map[int]uint64),
		endpoints:   make(map[string]uint64),
		latency:     newLatencyHistogram(),
	}
}

// Record merges one outcome into the shared stats.
func (a *Aggregator) Record(o Outcome) {
	a.mu.Lock()
	a.total++
	if o.Success() {
		a.success++
	} else {
		a.failed++
	}
	a.statusCodes[o.Status]++
	a.endpoints[o.Key()]++
	a.latency.record(o.Latency)
	if o.Err != "" {
		a.errorCount++
		if len(a.errors) < maxStoredErrors {
			a.errors = append(a.errors, o.Err)
		}
	}
	a.mu.Unlock()

	if a.observer != nil {
		a.observer.Observe(o)
	}
}

// EndpointHits is one row of the top-endpoints report.
type EndpointHits struct {
	Endpoint string
	Count    uint64
}

// Snapshot is a point-in-time read of the derived metrics.
type Snapshot struct {
	Elapsed      time.Duration
	Total        uint64
	Success      uint64
	Failed       uint64
	RPS          float64
	AvgLatencyMs float64
	P50LatencyMs float64
	P90LatencyMs float64
	P99LatencyMs float64
	MaxLatencyMs float64
	StatusCodes  map[int]uint64
	TopEndpoints []EndpointHits
	ErrorCount   uint64
	Errors       []string
}

// Snapshot derives the report metrics without draining anything; workers
// may keep recording concurrently.
func (a *Aggregator) Snapshot(now time.Time) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	elapsed := now.Sub(a.startTime)
	rps := 0.0
	if secs := elapsed.Seconds(); secs > 0 {
		rps = float64(a.total) / secs
	}

	codes := make(map[int]uint64, len(a.statusCodes))
	for code, n := range a.statusCodes {
		codes[code] = n
	}

	top := make([]EndpointHits, 0, len(a.endpoints))
	for key, n := range a.endpoints {
		top = append(top, EndpointHits{Endpoint: key, Count: n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].Endpoint < top[j].Endpoint
	})
	if len(top) > 10 {
		top = top[:10]
	}

	errs := make([]string, len(a.errors))
	copy(errs, a.errors)

	return Snapshot{
		Elapsed:      elapsed,
		Total:        a.total,
		Success:      a.success,
		Failed:       a.failed,
		RPS:          rps,
		AvgLatencyMs: a.latency.meanMs(),
		P50LatencyMs: a.latency.quantileMs(50),
		P90LatencyMs: a.latency.quantileMs(90),
		P99LatencyMs: a.latency.quantileMs(99),
		MaxLatencyMs: a.latency.maxMs(),
		StatusCodes:  codes,
		TopEndpoints: top,
		ErrorCount:   a.errorCount,
		Errors:       errs,
	}
}
