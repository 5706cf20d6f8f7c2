package results

import (
	"sort"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SampleStats summarizes the elapsed times of a case's samples.
type SampleStats struct {
	MinMS    float64
	MaxMS    float64
	MeanMS   float64
	MedianMS float64
}

// LatencySummary carries histogram percentiles of elapsed times, used by the
// CLI summary table.
type LatencySummary struct {
	P50MS float64
	P95MS float64
	P99MS float64
}

// ComputeStats computes min/max/mean/median over elapsed samples.
// Returns nil for empty input. NaN samples are pathological; the function
// still returns a value rather than failing.
func ComputeStats(samplesMS []float64) *SampleStats {
	if len(samplesMS) == 0 {
		return nil
	}

	values := make([]float64, len(samplesMS))
	copy(values, samplesMS)
	sort.Float64s(values)

	sum := 0.0
	for _, v := range values {
		sum += v
	}

	n := len(values)
	var median float64
	if n%2 == 0 {
		median = (values[n/2-1] + values[n/2]) / 2.0
	} else {
		median = values[n/2]
	}

	return &SampleStats{
		MinMS:    values[0],
		MaxMS:    values[n-1],
		MeanMS:   sum / float64(n),
		MedianMS: median,
	}
}

// histogram bounds in microseconds: 1µs to 1h.
const (
	histMinMicros = 1
	histMaxMicros = 3_600_000_000
)

// ComputeLatencySummary records elapsed samples into an HDR histogram at
// microsecond resolution and reports p50/p95/p99. Returns nil for empty
// input.
func ComputeLatencySummary(samplesMS []float64) *LatencySummary {
	if len(samplesMS) == 0 {
		return nil
	}

	h := hdrhistogram.New(histMinMicros, histMaxMicros, 3)
	for _, ms := range samplesMS {
		micros := int64(ms * 1000.0)
		if micros < histMinMicros {
			micros = histMinMicros
		}
		// RecordValue only fails for out-of-range values; clamp instead.
		if micros > histMaxMicros {
			micros = histMaxMicros
		}
		_ = h.RecordValue(micros)
	}

	return &LatencySummary{
		P50MS: float64(h.ValueAtQuantile(50)) / 1000.0,
		P95MS: float64(h.ValueAtQuantile(95)) / 1000.0,
		P99MS: float64(h.ValueAtQuantile(99)) / 1000.0,
	}
}

// ElapsedSamples extracts the elapsed_ms series from a case result in
// temporal order.
func ElapsedSamples(c *CaseResult) []float64 {
	out := make([]float64, 0, len(c.Samples))
	for _, s := range c.Samples {
		out = append(out, s.ElapsedMS)
	}
	return out
}
