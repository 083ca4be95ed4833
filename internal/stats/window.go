// Package stats derives summary statistics over measurement windows and
// provides formatting helpers for reports.
package stats

import (
	"math"

	"github.com/influxdata/tdigest"

	"github.com/randomizedcoder/go-stream-analysis-suite/internal/sample"
)

// Observation is one windowed measurement outcome.
// Value is only meaningful for successful observations.
type Observation struct {
	Status sample.Status
	Value  *float64
}

// WindowMetrics summarizes a latency window. Numeric fields are nil when no
// successful observation in the window carried a value.
type WindowMetrics struct {
	AvgLatencyMs    *float64 `json:"avg_latency_ms,omitempty"`
	MinLatencyMs    *float64 `json:"min_latency_ms,omitempty"`
	MaxLatencyMs    *float64 `json:"max_latency_ms,omitempty"`
	LatencyVariance *float64 `json:"latency_variance,omitempty"`
	P50LatencyMs    *float64 `json:"p50_latency_ms,omitempty"`
	P95LatencyMs    *float64 `json:"p95_latency_ms,omitempty"`

	TimeoutRate            float64 `json:"timeout_rate"`
	ErrorRate              float64 `json:"error_rate"`
	TotalMeasurements      int     `json:"total_measurements"`
	SuccessfulMeasurements int     `json:"successful_measurements"`
}

// Summarize computes WindowMetrics over obs. It returns nil for an empty window.
//
// Rates are fractions of the whole window. When no successful value exists
// both rates are reported as 1.0 and numeric fields stay nil.
func Summarize(obs []Observation) *WindowMetrics {
	if len(obs) == 0 {
		return nil
	}

	m := &WindowMetrics{TotalMeasurements: len(obs)}

	values := make([]float64, 0, len(obs))
	var timeouts, errs int
	for _, o := range obs {
		switch o.Status {
		case sample.StatusSuccess:
			if o.Value != nil {
				values = append(values, *o.Value)
			}
		case sample.StatusTimeout:
			timeouts++
		default:
			errs++
		}
	}
	m.SuccessfulMeasurements = len(values)

	if len(values) == 0 {
		m.TimeoutRate = 1.0
		m.ErrorRate = 1.0
		return m
	}

	total := float64(len(obs))
	m.TimeoutRate = float64(timeouts) / total
	m.ErrorRate = float64(errs) / total

	mean, variance := MeanVariance(values)
	lo, hi := MinMax(values)
	m.AvgLatencyMs = &mean
	m.LatencyVariance = &variance
	m.MinLatencyMs = &lo
	m.MaxLatencyMs = &hi

	td := tdigest.NewWithCompression(100)
	for _, v := range values {
		td.Add(v, 1)
	}
	p50 := td.Quantile(0.50)
	p95 := td.Quantile(0.95)
	m.P50LatencyMs = &p50
	m.P95LatencyMs = &p95

	return m
}

// MeanVariance returns the mean and population variance of values.
// Both are 0 for an empty slice.
func MeanVariance(values []float64) (mean, variance float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	mean = sum / float64(len(values))

	var sq float64
	for _, v := range values {
		d := v - mean
		sq += d * d
	}
	variance = sq / float64(len(values))
	return mean, variance
}

// MinMax returns the smallest and largest of values (0, 0 when empty).
func MinMax(values []float64) (lo, hi float64) {
	if len(values) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// StabilityScore maps a mean and variance to (0, 1]: 1 / (1 + var/mean²).
// It is 0 when mean <= 0.
func StabilityScore(mean, variance float64) float64 {
	if mean <= 0 {
		return 0
	}
	return 1.0 / (1.0 + variance/(mean*mean))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
