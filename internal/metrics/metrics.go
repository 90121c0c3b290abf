// Package metrics emits lightweight structured metric events as single
// JSON lines. Each line carries a namespace, dimensions, and named metric
// values with units, so any log pipeline can extract per-call latency and
// token counts without a metrics backend in the process.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

// out is where flushed metric lines go. Guarded by outMu; tests redirect it.
var (
	outMu sync.Mutex
	out   io.Writer = os.Stdout
)

// SetOutput redirects metric emission, returning the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	prev := out
	out = w
	return prev
}

// metricValue is one named measurement.
type metricValue struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

// Recorder accumulates dimensions and metrics for a single flush.
// It is NOT safe for concurrent use from multiple goroutines; create one
// per operation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	metrics    map[string]metricValue
}

// New creates a Recorder with the given namespace.
func New(namespace string) *Recorder {
	return &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		metrics:    make(map[string]metricValue),
	}
}

// Dimension adds a dimension key-value pair.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named metric value with a unit.
// Use the Unit* constants.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = metricValue{Value: value, Unit: unit}
	return r
}

// Count is a convenience for recording a count metric (value = 1).
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Flush serializes the recorded event as a single JSON line.
// After flushing, the Recorder should not be reused.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return // Nothing to emit
	}

	doc := struct {
		Namespace  string                 `json:"namespace"`
		Timestamp  int64                  `json:"timestamp"`
		Dimensions map[string]string      `json:"dimensions,omitempty"`
		Metrics    map[string]metricValue `json:"metrics"`
	}{
		Namespace:  r.namespace,
		Timestamp:  time.Now().UnixMilli(),
		Dimensions: r.dimensions,
		Metrics:    r.metrics,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metrics: failed to marshal event: %v\n", err)
		return
	}

	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, string(data))
}
