// Package usage accumulates token consumption across classification calls
// and estimates the resulting API cost.
package usage

import "sync"

// Usage is the token triple reported by one model call.
type Usage struct {
	Prompt     int
	Completion int
	Total      int
}

// Add returns the element-wise sum of u and v.
func (u Usage) Add(v Usage) Usage {
	return Usage{
		Prompt:     u.Prompt + v.Prompt,
		Completion: u.Completion + v.Completion,
		Total:      u.Total + v.Total,
	}
}

// Accumulator sums usage from concurrent workers. The zero value is ready
// to use. Only freshly classified items are recorded; results replayed
// from a checkpoint contribute nothing.
type Accumulator struct {
	mu     sync.Mutex
	totals Usage
}

// Record adds one call's usage to the running totals.
func (a *Accumulator) Record(u Usage) {
	a.mu.Lock()
	a.totals = a.totals.Add(u)
	a.mu.Unlock()
}

// Snapshot returns the current totals.
func (a *Accumulator) Snapshot() Usage {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.totals
}

// Pricing for the classification model, USD per million tokens.
const (
	inputCostPerMillion  = 0.15
	outputCostPerMillion = 0.60
)

// EstimateCost returns the estimated USD cost for the given totals.
func EstimateCost(u Usage) float64 {
	in := float64(u.Prompt) / 1_000_000 * inputCostPerMillion
	out := float64(u.Completion) / 1_000_000 * outputCostPerMillion
	return in + out
}
