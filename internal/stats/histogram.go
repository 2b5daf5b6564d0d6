package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// latencyHistogram records request latencies in microseconds. It is not
// goroutine-safe on its own; the Aggregator serializes access.
type latencyHistogram struct {
	hist *hdrhistogram.Histogram
}

func newLatencyHistogram() *latencyHistogram {
	// 1us to 10min, 3 significant figures
	return &latencyHistogram{
		hist: hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3),
	}
}

func (h *latencyHistogram) record(d time.Duration) {
	v := d.Microseconds()
	if v < 1 {
		v = 1
	}
	// Out-of-range values are dropped by hdrhistogram; a 10min ceiling
	// is already far beyond any per-call timeout.
	_ = h.hist.RecordValue(v)
}

func (h *latencyHistogram) meanMs() float64 {
	return h.hist.Mean() / 1000.0
}

func (h *latencyHistogram) quantileMs(q float64) float64 {
	return float64(h.hist.ValueAtQuantile(q)) / 1000.0
}

func (h *latencyHistogram) maxMs() float64 {
	return float64(h.hist.Max()) / 1000.0
}
